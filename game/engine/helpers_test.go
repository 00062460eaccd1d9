package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wricardo/race-board-game/game/engine"
	"github.com/wricardo/race-board-game/game/store"
)

// scriptedRand replays a fixed sequence of draws and fails the test on any
// draw it was not told about
type scriptedRand struct {
	t      *testing.T
	values []int
}

func (r *scriptedRand) IntN(n int) int {
	r.t.Helper()
	require.NotEmpty(r.t, r.values, "unexpected random draw IntN(%d)", n)
	v := r.values[0]
	r.values = r.values[1:]
	require.Less(r.t, v, n, "scripted value out of range for IntN(%d)", n)
	return v
}

func (r *scriptedRand) push(values ...int) {
	r.values = append(r.values, values...)
}

// roll converts a die face into the draw that produces it
func roll(face int) int {
	return face - 1
}

var testNames = []string{"alice", "bob", "carol", "dave"}

var fixedClock = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	repo   *store.MemoryRepository
	rng    *scriptedRand
	engine *engine.Engine
	game   *engine.Game
}

// newFixture seats one player per position in an active game on turn 1 with
// the given pile (top card last)
func newFixture(t *testing.T, deck []engine.Card, positions ...int) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	rng := &scriptedRand{t: t}
	eng := engine.NewEngine(repo,
		engine.WithRand(rng),
		engine.WithClock(func() time.Time { return fixedClock }),
	)

	game, err := repo.CreateGame(ctx, &engine.Game{
		Status:       engine.StatusActive,
		CurrentTurn:  1,
		CardDeck:     deck,
		SpecialTiles: engine.SpecialTiles(),
	})
	require.NoError(t, err)

	for i, pos := range positions {
		_, err := repo.CreatePlayer(ctx, &engine.Player{
			GameID:   game.ID,
			Name:     testNames[i],
			Position: pos,
			Order:    i,
		})
		require.NoError(t, err)
	}

	return &fixture{t: t, ctx: ctx, repo: repo, rng: rng, engine: eng, game: game}
}

func (f *fixture) resolve() *engine.TurnOutcome {
	f.t.Helper()
	outcome, err := f.engine.ResolveTurn(f.ctx, f.game.ID)
	require.NoError(f.t, err)
	require.Empty(f.t, f.rng.values, "scripted draws left unused")
	return outcome
}

func (f *fixture) players() []*engine.Player {
	f.t.Helper()
	players, err := f.repo.GetPlayers(f.ctx, f.game.ID)
	require.NoError(f.t, err)
	return players
}

func (f *fixture) stored() *engine.Game {
	f.t.Helper()
	game, err := f.repo.GetGame(f.ctx, f.game.ID)
	require.NoError(f.t, err)
	return game
}

// events returns the game's events oldest first
func (f *fixture) events() []*engine.Event {
	f.t.Helper()
	events, err := f.repo.ListEvents(f.ctx, f.game.ID)
	require.NoError(f.t, err)
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events
}

func (f *fixture) update(seat int, patch engine.PlayerPatch) {
	f.t.Helper()
	_, err := f.repo.UpdatePlayer(f.ctx, f.players()[seat].ID, patch)
	require.NoError(f.t, err)
}

func kinds(events []*engine.Event) []engine.EventKind {
	out := make([]engine.EventKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func positions(players []*engine.Player) []int {
	out := make([]int, 0, len(players))
	for _, p := range players {
		out = append(out, p.Position)
	}
	return out
}
