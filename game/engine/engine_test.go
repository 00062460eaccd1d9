package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wricardo/race-board-game/game/engine"
	"github.com/wricardo/race-board-game/game/store"
)

func TestResolveTurn_PlainMove(t *testing.T) {
	f := newFixture(t, engine.CardSet(), 0, 0)
	f.rng.push(roll(4))

	outcome := f.resolve()

	assert.Equal(t, 4, outcome.DiceValue)
	assert.Nil(t, outcome.CurrentCard)
	assert.Nil(t, outcome.Winner)
	assert.False(t, outcome.ExtraTurn)
	assert.False(t, outcome.SkippedTurn)
	assert.Equal(t, []int{4, 0}, positions(outcome.Players))
	assert.Equal(t, 1, outcome.Game.CurrentPlayerIndex)
	assert.Equal(t, 2, outcome.Game.CurrentTurn)

	events := f.events()
	require.Len(t, events, 2)
	assert.Equal(t, []engine.EventKind{engine.EventDice, engine.EventMove}, kinds(events))
	assert.Equal(t, "alice rolled a 4", events[0].Message)
	assert.Equal(t, "alice moved to tile 5", events[1].Message)
	assert.Equal(t, fixedClock.UnixMilli(), events[0].Timestamp)
}

func TestResolveTurn_SeatWrapsAround(t *testing.T) {
	f := newFixture(t, engine.CardSet(), 0, 0, 0)
	for i := 0; i < 3; i++ {
		f.rng.push(roll(1))
		f.resolve()
	}

	game := f.stored()
	assert.Equal(t, 0, game.CurrentPlayerIndex)
	assert.Equal(t, 4, game.CurrentTurn)
	assert.Equal(t, []int{1, 1, 1}, positions(f.players()))
}

func TestResolveTurn_ReachingGoalWins(t *testing.T) {
	f := newFixture(t, engine.CardSet(), 27, 12)
	f.rng.push(roll(3))

	outcome := f.resolve()

	assert.Equal(t, engine.StatusCompleted, outcome.Game.Status)
	require.NotNil(t, outcome.Winner)
	assert.Equal(t, "alice", outcome.Winner.Name)
	assert.Equal(t, engine.GoalTile, outcome.Winner.Position)
	// The seat does not advance once the game is over
	assert.Equal(t, 0, outcome.Game.CurrentPlayerIndex)
	assert.Equal(t, 1, outcome.Game.CurrentTurn)

	events := f.events()
	assert.Equal(t, []engine.EventKind{engine.EventDice, engine.EventMove, engine.EventSpecial}, kinds(events))
	assert.Contains(t, events[2].Message, "won the game")

	_, err := f.engine.ResolveTurn(f.ctx, f.game.ID)
	assert.ErrorIs(t, err, engine.ErrInvalidState)
}

func TestResolveTurn_OvershootClampsToGoal(t *testing.T) {
	f := newFixture(t, engine.CardSet(), 26, 0)
	f.rng.push(roll(6))

	outcome := f.resolve()

	assert.Equal(t, engine.GoalTile, outcome.Players[0].Position)
	assert.Equal(t, engine.StatusCompleted, outcome.Game.Status)
	require.NotNil(t, outcome.Winner)
}

func TestResolveTurn_Advance2Tile(t *testing.T) {
	f := newFixture(t, engine.CardSet(), 3, 0)
	f.rng.push(roll(2))

	outcome := f.resolve()

	assert.Equal(t, 7, outcome.Players[0].Position)
	events := f.events()
	require.Len(t, events, 3)
	assert.Equal(t, []engine.EventKind{engine.EventDice, engine.EventMove, engine.EventSpecial}, kinds(events))
	assert.Equal(t, "alice moved to tile 6", events[1].Message)
	assert.Contains(t, events[2].Message, "tile 8")
}

func TestResolveTurn_Retreat3Tile(t *testing.T) {
	f := newFixture(t, engine.CardSet(), 7, 0)
	f.rng.push(roll(3))

	outcome := f.resolve()

	assert.Equal(t, 7, outcome.Players[0].Position)
	assert.Equal(t, 1, outcome.Game.CurrentPlayerIndex)
	assert.Equal(t, []engine.EventKind{engine.EventDice, engine.EventMove, engine.EventSpecial}, kinds(f.events()))
}

func TestResolveTurn_SkipTile(t *testing.T) {
	f := newFixture(t, engine.CardSet(), 12, 0)
	f.rng.push(roll(3))

	outcome := f.resolve()

	assert.Equal(t, 15, outcome.Players[0].Position)
	assert.True(t, outcome.Players[0].SkipNextTurn)
	assert.Equal(t, 1, outcome.Game.CurrentPlayerIndex)
}

func TestResolveTurn_SkippedPlayerLosesTurn(t *testing.T) {
	f := newFixture(t, engine.CardSet(), 15, 4)
	f.update(0, engine.PlayerPatch{SkipNextTurn: engine.Ptr(true)})

	// No draws scripted: a skipped turn never rolls
	outcome := f.resolve()

	assert.True(t, outcome.SkippedTurn)
	assert.Zero(t, outcome.DiceValue)
	assert.Nil(t, outcome.CurrentCard)
	assert.False(t, outcome.Players[0].SkipNextTurn)
	assert.Equal(t, 15, outcome.Players[0].Position)
	assert.Equal(t, 1, outcome.Game.CurrentPlayerIndex)
	assert.Equal(t, 2, outcome.Game.CurrentTurn)

	events := f.events()
	require.Len(t, events, 1)
	assert.Equal(t, engine.EventSpecial, events[0].Kind)
	assert.Equal(t, "alice loses this turn", events[0].Message)

	// Next round the same player rolls normally
	f.rng.push(roll(2))
	f.resolve()
	f.rng.push(roll(1))
	outcome = f.resolve()
	assert.Equal(t, 16, outcome.Players[0].Position)
	assert.False(t, outcome.SkippedTurn)
}

func TestResolveTurn_SkipInTwoPlayerGame(t *testing.T) {
	// bob lands on the skip tile, so alice's next two turns come back to back
	f := newFixture(t, engine.CardSet(), 0, 12)
	f.rng.push(roll(1))
	f.resolve()
	f.rng.push(roll(3))
	f.resolve()
	require.True(t, f.players()[1].SkipNextTurn)

	f.rng.push(roll(1))
	f.resolve()
	outcome := f.resolve()
	assert.True(t, outcome.SkippedTurn)
	assert.Equal(t, 0, outcome.Game.CurrentPlayerIndex)

	f.rng.push(roll(1))
	outcome = f.resolve()
	assert.Equal(t, 3, outcome.Players[0].Position)
}

func TestResolveTurn_SwapRandomTile(t *testing.T) {
	f := newFixture(t, engine.CardSet(), 17, 9, 3)
	// Others in seat order are bob then carol; pick carol
	f.rng.push(roll(3), 1)

	outcome := f.resolve()

	assert.Equal(t, []int{3, 9, 20}, positions(outcome.Players))
	assert.Equal(t, 1, outcome.Game.CurrentPlayerIndex)

	events := f.events()
	require.Len(t, events, 3)
	assert.Equal(t, engine.EventSpecial, events[2].Kind)
	assert.Contains(t, events[2].Message, "carol")
}

func TestResolveTurn_SwapRandomNeverPicksSelf(t *testing.T) {
	f := newFixture(t, engine.CardSet(), 17, 9)
	// With one opponent the only valid pick is index 0
	f.rng.push(roll(3), 0)

	outcome := f.resolve()

	assert.Equal(t, []int{9, 20}, positions(outcome.Players))
}

func TestResolveTurn_DrawPlayAgainGrantsExtraTurn(t *testing.T) {
	f := newFixture(t, []engine.Card{engine.CardAdvance3, engine.CardPlayAgain}, 22, 0)
	f.rng.push(roll(3))

	outcome := f.resolve()

	require.NotNil(t, outcome.CurrentCard)
	assert.Equal(t, engine.CardPlayAgain, *outcome.CurrentCard)
	assert.True(t, outcome.ExtraTurn)
	assert.Equal(t, 25, outcome.Players[0].Position)
	assert.Equal(t, 0, outcome.Game.CurrentPlayerIndex)
	assert.Equal(t, 1, outcome.Game.CurrentTurn)
	assert.Equal(t, []engine.Card{engine.CardAdvance3}, outcome.Game.CardDeck)

	assert.Equal(t, []engine.EventKind{engine.EventDice, engine.EventMove, engine.EventCard, engine.EventCard}, kinds(f.events()))

	// The same player rolls again
	f.rng.push(roll(1))
	outcome = f.resolve()
	assert.Equal(t, 26, outcome.Players[0].Position)
	assert.Nil(t, outcome.CurrentCard)
	assert.Equal(t, 1, outcome.Game.CurrentPlayerIndex)
}

func TestResolveTurn_DrawAdvance3(t *testing.T) {
	f := newFixture(t, []engine.Card{engine.CardAdvance3}, 21, 0)
	f.rng.push(roll(4))

	outcome := f.resolve()

	assert.Equal(t, 28, outcome.Players[0].Position)
	assert.Empty(t, outcome.Game.CardDeck)
	assert.Equal(t, engine.StatusActive, outcome.Game.Status)
	assert.Equal(t, 1, outcome.Game.CurrentPlayerIndex)
}

func TestResolveTurn_DrawRetreat2(t *testing.T) {
	f := newFixture(t, []engine.Card{engine.CardRetreat2}, 20, 0)
	f.rng.push(roll(5))

	outcome := f.resolve()

	assert.Equal(t, 23, outcome.Players[0].Position)
}

func TestResolveTurn_SwapWithLeader(t *testing.T) {
	f := newFixture(t, []engine.Card{engine.CardSwapWithLeader}, 22, 27, 27)
	f.rng.push(roll(3))

	outcome := f.resolve()

	// Ties for the lead go to the lowest seat
	assert.Equal(t, []int{27, 25, 27}, positions(outcome.Players))
	events := f.events()
	assert.Contains(t, events[len(events)-1].Message, "bob")
}

func TestResolveTurn_SwapWithLeaderWhenLeading(t *testing.T) {
	f := newFixture(t, []engine.Card{engine.CardSwapWithLeader}, 24, 10)
	f.rng.push(roll(1))

	outcome := f.resolve()

	assert.Equal(t, []int{25, 10}, positions(outcome.Players))
	assert.Equal(t, []engine.EventKind{engine.EventDice, engine.EventMove, engine.EventCard, engine.EventCard}, kinds(f.events()))
}

func TestResolveTurn_EmptyPileReshuffles(t *testing.T) {
	f := newFixture(t, []engine.Card{}, 22, 0)
	// Fisher-Yates draws for i=3,2,1; the first swap puts Advance 3 on top
	f.rng.push(roll(3), 0, 2, 1)

	outcome := f.resolve()

	require.NotNil(t, outcome.CurrentCard)
	assert.Equal(t, engine.CardAdvance3, *outcome.CurrentCard)
	assert.Equal(t, 28, outcome.Players[0].Position)

	pile := outcome.Game.CardDeck
	assert.Len(t, pile, len(engine.CardSet())-1)
	assert.ElementsMatch(t, engine.CardSet(), append(pile, *outcome.CurrentCard))
}

func TestResolveTurn_SubMovesDoNotChainEffects(t *testing.T) {
	// alice swaps onto the advance tile and bob onto the swap tile; neither fires
	f := newFixture(t, engine.CardSet(), 18, 5)
	f.rng.push(roll(2), 0)

	outcome := f.resolve()

	assert.Equal(t, []int{5, 20}, positions(outcome.Players))
	assert.False(t, outcome.Players[0].SkipNextTurn)
	assert.Len(t, f.events(), 3)
}

func TestResolveTurn_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownGame", func(t *testing.T) {
		eng := engine.NewEngine(store.NewMemoryRepository())
		_, err := eng.ResolveTurn(ctx, 42)
		assert.ErrorIs(t, err, engine.ErrNotFound)
	})

	t.Run("WaitingGame", func(t *testing.T) {
		f := newFixture(t, engine.CardSet(), 0, 0)
		_, err := f.repo.UpdateGame(ctx, f.game.ID, engine.GamePatch{Status: engine.Ptr(engine.StatusWaiting)})
		require.NoError(t, err)

		_, err = f.engine.ResolveTurn(ctx, f.game.ID)
		assert.ErrorIs(t, err, engine.ErrInvalidState)
		assert.Empty(t, f.events())
	})

	t.Run("SeatOutOfRange", func(t *testing.T) {
		f := newFixture(t, engine.CardSet(), 0, 0)
		_, err := f.repo.UpdateGame(ctx, f.game.ID, engine.GamePatch{CurrentPlayerIndex: engine.Ptr(5)})
		require.NoError(t, err)

		_, err = f.engine.ResolveTurn(ctx, f.game.ID)
		assert.ErrorIs(t, err, engine.ErrInternal)
	})

	t.Run("UnknownCardInPile", func(t *testing.T) {
		f := newFixture(t, []engine.Card{"Teleport"}, 22, 0)
		f.rng.push(roll(3))

		_, err := f.engine.ResolveTurn(ctx, f.game.ID)
		assert.ErrorIs(t, err, engine.ErrInternal)
	})

	t.Run("UnknownTileEffect", func(t *testing.T) {
		repo := store.NewMemoryRepository()
		rng := &scriptedRand{t: t, values: []int{roll(2)}}
		eng := engine.NewEngine(repo, engine.WithRand(rng))
		game, err := repo.CreateGame(ctx, &engine.Game{
			Status:       engine.StatusActive,
			SpecialTiles: map[int]engine.TileEffect{2: "teleport"},
		})
		require.NoError(t, err)
		_, err = repo.CreatePlayer(ctx, &engine.Player{GameID: game.ID, Name: "alice"})
		require.NoError(t, err)

		_, err = eng.ResolveTurn(ctx, game.ID)
		assert.ErrorIs(t, err, engine.ErrInternal)
	})
}

func TestResolveTurn_FallsBackToSharedTileTable(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	rng := &scriptedRand{t: t, values: []int{roll(5)}}
	eng := engine.NewEngine(repo, engine.WithRand(rng))

	game, err := repo.CreateGame(ctx, &engine.Game{Status: engine.StatusActive})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = repo.CreatePlayer(ctx, &engine.Player{GameID: game.ID, Name: testNames[i], Order: i})
		require.NoError(t, err)
	}

	outcome, err := eng.ResolveTurn(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, outcome.Players[0].Position)
}

func TestNewGame(t *testing.T) {
	eng := engine.NewEngine(store.NewMemoryRepository(), engine.WithLogger(zap.NewNop()))

	game := eng.NewGame()

	assert.Equal(t, engine.StatusWaiting, game.Status)
	assert.Zero(t, game.CurrentTurn)
	assert.Zero(t, game.CurrentPlayerIndex)
	assert.ElementsMatch(t, engine.CardSet(), game.CardDeck)
	assert.Equal(t, engine.SpecialTiles(), game.SpecialTiles)
	assert.False(t, game.CreatedAt.IsZero())
}

// TestResolveTurn_RandomPlaythroughs plays full games with real randomness and
// checks the invariants that must hold after every turn
func TestResolveTurn_RandomPlaythroughs(t *testing.T) {
	ctx := context.Background()

	for n := 2; n <= engine.MaxPlayers; n++ {
		for round := 0; round < 25; round++ {
			repo := store.NewMemoryRepository()
			eng := engine.NewEngine(repo)

			game, err := repo.CreateGame(ctx, eng.NewGame())
			require.NoError(t, err)
			for i := 0; i < n; i++ {
				_, err := repo.CreatePlayer(ctx, &engine.Player{GameID: game.ID, Name: testNames[i], Order: i})
				require.NoError(t, err)
			}
			_, err = repo.UpdateGame(ctx, game.ID, engine.GamePatch{
				Status:      engine.Ptr(engine.StatusActive),
				CurrentTurn: engine.Ptr(1),
			})
			require.NoError(t, err)

			var outcome *engine.TurnOutcome
			for turns := 0; turns < 2000; turns++ {
				outcome, err = eng.ResolveTurn(ctx, game.ID)
				require.NoError(t, err)

				for _, p := range outcome.Players {
					require.GreaterOrEqual(t, p.Position, 0)
					require.LessOrEqual(t, p.Position, engine.GoalTile)
				}
				require.GreaterOrEqual(t, outcome.Game.CurrentPlayerIndex, 0)
				require.Less(t, outcome.Game.CurrentPlayerIndex, n)
				require.LessOrEqual(t, len(outcome.Game.CardDeck), len(engine.CardSet()))
				if outcome.CurrentCard != nil {
					require.True(t, outcome.CurrentCard.Valid())
				}

				if outcome.Game.Status == engine.StatusCompleted {
					break
				}
			}

			require.Equal(t, engine.StatusCompleted, outcome.Game.Status, "game should finish")
			require.NotNil(t, outcome.Winner)
			assert.Equal(t, engine.GoalTile, outcome.Winner.Position)

			_, err = eng.ResolveTurn(ctx, game.ID)
			assert.ErrorIs(t, err, engine.ErrInvalidState)
		}
	}
}
