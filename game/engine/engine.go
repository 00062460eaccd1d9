package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Engine resolves turns against a Repository. It holds no per-game state;
// callers must guarantee that at most one ResolveTurn runs per game at a time.
type Engine struct {
	repo   Repository
	rng    Rand
	now    func() time.Time
	logger *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithRand overrides the random source used for dice, shuffles and swaps
func WithRand(rng Rand) Option {
	return func(e *Engine) {
		e.rng = rng
	}
}

// WithClock overrides the clock used to timestamp events
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine backed by repo
func NewEngine(repo Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:   repo,
		rng:    SystemRand(),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewGame builds a waiting game with a freshly shuffled deck and the special
// tile table. The game is not stored.
func (e *Engine) NewGame() *Game {
	now := e.now()
	return &Game{
		Status:             StatusWaiting,
		CurrentTurn:        0,
		CurrentPlayerIndex: 0,
		CardDeck:           NewDeck(e.rng).Cards(),
		SpecialTiles:       SpecialTiles(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Record appends an event to a game's log, stamped with the engine clock
func (e *Engine) Record(ctx context.Context, gameID int64, kind EventKind, format string, args ...any) error {
	message := fmt.Sprintf(format, args...)
	if _, err := e.repo.AppendEvent(ctx, gameID, message, kind, e.now().UnixMilli()); err != nil {
		return fmt.Errorf("record %s event for game %d: %w", kind, gameID, err)
	}
	return nil
}

// turn carries the working state of one resolution
type turn struct {
	game     *Game
	players  []*Player
	actor    *Player
	position int
	dice     int
	card     *Card
	extra    bool
}

// ResolveTurn resolves one roll request for the player whose seat is up.
//
// Order: skip check, dice, move, special tile (and card), win check, extra
// turn, seat advance. Each step persists its changes before the next one
// reads state.
func (e *Engine) ResolveTurn(ctx context.Context, gameID int64) (*TurnOutcome, error) {
	game, err := e.repo.GetGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load game %d: %w", gameID, err)
	}
	if game.Status != StatusActive {
		return nil, fmt.Errorf("%w: game %d is %s, not active", ErrInvalidState, gameID, game.Status)
	}

	players, err := e.repo.GetPlayers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load players of game %d: %w", gameID, err)
	}
	seat := game.CurrentPlayerIndex
	if seat < 0 || seat >= len(players) {
		return nil, fmt.Errorf("%w: current player index %d out of range for %d players in game %d",
			ErrInternal, seat, len(players), gameID)
	}

	t := &turn{
		game:     game,
		players:  players,
		actor:    players[seat],
		position: players[seat].Position,
	}

	if t.actor.SkipNextTurn {
		return e.skipTurn(ctx, t)
	}

	t.dice = e.rng.IntN(DiceSides) + 1
	if err := e.Record(ctx, gameID, EventDice, "%s rolled a %d", t.actor.Name, t.dice); err != nil {
		return nil, err
	}

	if err := e.moveTo(ctx, t, t.actor.Position+t.dice); err != nil {
		return nil, err
	}
	if err := e.Record(ctx, gameID, EventMove, "%s moved to tile %d", t.actor.Name, t.position+1); err != nil {
		return nil, err
	}

	// Effects fire once per landing; sub-moves caused by an effect are not re-checked
	if effect, ok := t.tileAt(t.position); ok {
		if err := e.applyTile(ctx, t, effect); err != nil {
			return nil, err
		}
	}

	// The win check runs before an extra turn is granted so that a player
	// standing on the goal always ends the game
	if t.position >= GoalTile {
		return e.declareWinner(ctx, t)
	}

	if t.extra {
		outcome, err := e.outcome(ctx, t)
		if err != nil {
			return nil, err
		}
		outcome.ExtraTurn = true
		return outcome, nil
	}

	if err := e.advanceSeat(ctx, t); err != nil {
		return nil, err
	}
	return e.outcome(ctx, t)
}

// tileAt looks the position up in the game's own table, falling back to the
// shared one for games stored without it
func (t *turn) tileAt(position int) (TileEffect, bool) {
	if t.game.SpecialTiles != nil {
		effect, ok := t.game.SpecialTiles[position]
		return effect, ok
	}
	return LookupTile(position)
}

func (e *Engine) skipTurn(ctx context.Context, t *turn) (*TurnOutcome, error) {
	if _, err := e.repo.UpdatePlayer(ctx, t.actor.ID, PlayerPatch{SkipNextTurn: Ptr(false)}); err != nil {
		return nil, fmt.Errorf("clear skip flag of player %d: %w", t.actor.ID, err)
	}
	t.actor.SkipNextTurn = false

	if err := e.Record(ctx, t.game.ID, EventSpecial, "%s loses this turn", t.actor.Name); err != nil {
		return nil, err
	}
	if err := e.advanceSeat(ctx, t); err != nil {
		return nil, err
	}

	outcome, err := e.outcome(ctx, t)
	if err != nil {
		return nil, err
	}
	outcome.SkippedTurn = true
	return outcome, nil
}

// moveTo persists the acting player's clamped position
func (e *Engine) moveTo(ctx context.Context, t *turn, target int) error {
	position := clampPosition(target)
	if _, err := e.repo.UpdatePlayer(ctx, t.actor.ID, PlayerPatch{Position: Ptr(position)}); err != nil {
		return fmt.Errorf("move player %d: %w", t.actor.ID, err)
	}
	t.actor.Position = position
	t.position = position
	return nil
}

func (e *Engine) applyTile(ctx context.Context, t *turn, effect TileEffect) error {
	landed := t.position + 1

	switch effect {
	case TileAdvance2:
		if err := e.moveTo(ctx, t, t.position+2); err != nil {
			return err
		}
		return e.Record(ctx, t.game.ID, EventSpecial, "%s landed on tile %d (%s) and jumped to tile %d",
			t.actor.Name, landed, effect.DisplayName(), t.position+1)

	case TileRetreat3:
		if err := e.moveTo(ctx, t, t.position-3); err != nil {
			return err
		}
		return e.Record(ctx, t.game.ID, EventSpecial, "%s landed on tile %d (%s) and fell back to tile %d",
			t.actor.Name, landed, effect.DisplayName(), t.position+1)

	case TileSkipTurn:
		if _, err := e.repo.UpdatePlayer(ctx, t.actor.ID, PlayerPatch{SkipNextTurn: Ptr(true)}); err != nil {
			return fmt.Errorf("set skip flag of player %d: %w", t.actor.ID, err)
		}
		t.actor.SkipNextTurn = true
		return e.Record(ctx, t.game.ID, EventSpecial, "%s landed on tile %d (%s) and will lose the next turn",
			t.actor.Name, landed, effect.DisplayName())

	case TileSwapRandom:
		others := make([]*Player, 0, len(t.players))
		for _, p := range t.players {
			if p.ID != t.actor.ID {
				others = append(others, p)
			}
		}
		if len(others) == 0 {
			return e.Record(ctx, t.game.ID, EventSpecial, "%s landed on tile %d (%s) but has nobody to swap with",
				t.actor.Name, landed, effect.DisplayName())
		}
		other := others[e.rng.IntN(len(others))]
		if err := e.swap(ctx, t, other); err != nil {
			return err
		}
		return e.Record(ctx, t.game.ID, EventSpecial, "%s swapped places with %s: %s is now on tile %d, %s on tile %d",
			t.actor.Name, other.Name, t.actor.Name, t.actor.Position+1, other.Name, other.Position+1)

	case TileDrawCard:
		return e.drawCard(ctx, t)

	default:
		return fmt.Errorf("%w: unknown tile effect %q at position %d", ErrInternal, effect, t.position)
	}
}

func (e *Engine) drawCard(ctx context.Context, t *turn) error {
	deck := RestoreDeck(t.game.CardDeck, e.rng)
	card := deck.Draw()
	if !card.Valid() {
		return fmt.Errorf("%w: unknown card %q in the pile of game %d", ErrInternal, card, t.game.ID)
	}

	if _, err := e.repo.UpdateGame(ctx, t.game.ID, GamePatch{CardDeck: deck.Cards()}); err != nil {
		return fmt.Errorf("store card pile of game %d: %w", t.game.ID, err)
	}
	t.game.CardDeck = deck.Cards()
	t.card = &card

	if err := e.Record(ctx, t.game.ID, EventCard, "%s drew the card: %s", t.actor.Name, card); err != nil {
		return err
	}

	switch card {
	case CardAdvance3:
		if err := e.moveTo(ctx, t, t.position+3); err != nil {
			return err
		}
		return e.Record(ctx, t.game.ID, EventCard, "%s advanced 3 tiles to tile %d", t.actor.Name, t.position+1)

	case CardPlayAgain:
		t.extra = true
		return e.Record(ctx, t.game.ID, EventCard, "%s earned an extra turn", t.actor.Name)

	case CardRetreat2:
		if err := e.moveTo(ctx, t, t.position-2); err != nil {
			return err
		}
		return e.Record(ctx, t.game.ID, EventCard, "%s went back 2 tiles to tile %d", t.actor.Name, t.position+1)

	case CardSwapWithLeader:
		leader := leaderOf(t.players)
		if leader.ID == t.actor.ID {
			return e.Record(ctx, t.game.ID, EventCard, "%s is already in the lead and keeps tile %d",
				t.actor.Name, t.position+1)
		}
		if err := e.swap(ctx, t, leader); err != nil {
			return err
		}
		return e.Record(ctx, t.game.ID, EventCard, "%s swapped places with the leader %s and is now on tile %d",
			t.actor.Name, leader.Name, t.position+1)

	default:
		return fmt.Errorf("%w: unhandled card %q", ErrInternal, card)
	}
}

// swap exchanges the acting player's position with other's as one repository call
func (e *Engine) swap(ctx context.Context, t *turn, other *Player) error {
	a, b, err := e.repo.SwapPositions(ctx, t.actor.ID, other.ID)
	if err != nil {
		return fmt.Errorf("swap players %d and %d: %w", t.actor.ID, other.ID, err)
	}
	t.actor.Position = a.Position
	other.Position = b.Position
	t.position = a.Position
	return nil
}

// leaderOf returns the player furthest along the track; ties go to the lowest seat
func leaderOf(players []*Player) *Player {
	var leader *Player
	for _, p := range players {
		if leader == nil || p.Position > leader.Position {
			leader = p
		}
	}
	return leader
}

func (e *Engine) declareWinner(ctx context.Context, t *turn) (*TurnOutcome, error) {
	if _, err := e.repo.UpdateGame(ctx, t.game.ID, GamePatch{Status: Ptr(StatusCompleted)}); err != nil {
		return nil, fmt.Errorf("complete game %d: %w", t.game.ID, err)
	}
	if err := e.Record(ctx, t.game.ID, EventSpecial, "%s reached tile %d and won the game!", t.actor.Name, BoardSize); err != nil {
		return nil, err
	}

	e.logger.Info("game completed",
		zap.Int64("game_id", t.game.ID),
		zap.Int64("winner_id", t.actor.ID),
		zap.String("winner", t.actor.Name),
		zap.Int("turn", t.game.CurrentTurn),
	)

	outcome, err := e.outcome(ctx, t)
	if err != nil {
		return nil, err
	}
	outcome.Winner = t.actor.Clone()
	for _, p := range outcome.Players {
		if p.ID == t.actor.ID {
			outcome.Winner = p
			break
		}
	}
	return outcome, nil
}

// advanceSeat passes the turn to the next seat and bumps the turn counter in one update
func (e *Engine) advanceSeat(ctx context.Context, t *turn) error {
	next := (t.game.CurrentPlayerIndex + 1) % len(t.players)
	patch := GamePatch{
		CurrentPlayerIndex: Ptr(next),
		CurrentTurn:        Ptr(t.game.CurrentTurn + 1),
	}
	if _, err := e.repo.UpdateGame(ctx, t.game.ID, patch); err != nil {
		return fmt.Errorf("advance turn of game %d: %w", t.game.ID, err)
	}
	return nil
}

// outcome re-reads the game and its players after resolution
func (e *Engine) outcome(ctx context.Context, t *turn) (*TurnOutcome, error) {
	game, err := e.repo.GetGame(ctx, t.game.ID)
	if err != nil {
		return nil, fmt.Errorf("reload game %d: %w", t.game.ID, err)
	}
	players, err := e.repo.GetPlayers(ctx, t.game.ID)
	if err != nil {
		return nil, fmt.Errorf("reload players of game %d: %w", t.game.ID, err)
	}

	e.logger.Debug("turn resolved",
		zap.Int64("game_id", game.ID),
		zap.String("player", t.actor.Name),
		zap.Int("dice", t.dice),
		zap.Int("position", t.position),
		zap.Int("next_seat", game.CurrentPlayerIndex),
	)

	return &TurnOutcome{
		Game:        game,
		Players:     players,
		DiceValue:   t.dice,
		CurrentCard: t.card,
	}, nil
}
