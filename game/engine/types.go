package engine

import "time"

// Status is the lifecycle state of a game
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// EventKind classifies a recorded game event
type EventKind string

const (
	EventDice    EventKind = "dice"
	EventMove    EventKind = "move"
	EventCard    EventKind = "card"
	EventSpecial EventKind = "special"
)

const (
	// BoardSize is the number of tiles on the track
	BoardSize = 30
	// GoalTile is the zero-based position that ends the game
	GoalTile = BoardSize - 1
	// DiceSides is the number of faces on the die
	DiceSides = 6

	MinPlayers = 2
	MaxPlayers = 4
)

// Game is the authoritative state of one match
type Game struct {
	ID                 int64              `json:"id"`
	Status             Status             `json:"status"`
	CurrentTurn        int                `json:"current_turn"`
	CurrentPlayerIndex int                `json:"current_player_index"`
	CardDeck           []Card             `json:"card_deck"`
	SpecialTiles       map[int]TileEffect `json:"special_tiles"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Clone returns a deep copy of the game
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	c := *g
	if g.CardDeck != nil {
		c.CardDeck = append(make([]Card, 0, len(g.CardDeck)), g.CardDeck...)
	}
	if g.SpecialTiles != nil {
		c.SpecialTiles = make(map[int]TileEffect, len(g.SpecialTiles))
		for pos, effect := range g.SpecialTiles {
			c.SpecialTiles[pos] = effect
		}
	}
	return &c
}

// Player is a participant seated in exactly one game
type Player struct {
	ID           int64  `json:"id"`
	GameID       int64  `json:"game_id"`
	Name         string `json:"name"`
	Position     int    `json:"position"`
	SkipNextTurn bool   `json:"skip_next_turn"`
	Color        string `json:"color"`
	Order        int    `json:"order"` // Seat in the turn sequence, fixed at join time
}

// Clone returns a copy of the player
func (p *Player) Clone() *Player {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// Event is an append-only, human-readable record of one micro-step
type Event struct {
	ID        int64     `json:"id"`
	GameID    int64     `json:"game_id"`
	Message   string    `json:"message"`
	Kind      EventKind `json:"type"`
	Timestamp int64     `json:"timestamp"` // Unix milliseconds
}

// GamePatch lists the game fields to overwrite. Nil fields are left unchanged.
type GamePatch struct {
	Status             *Status
	CurrentTurn        *int
	CurrentPlayerIndex *int
	CardDeck           []Card
}

// PlayerPatch lists the player fields to overwrite. Nil fields are left unchanged.
type PlayerPatch struct {
	Position     *int
	SkipNextTurn *bool
}

// Apply writes the non-nil fields of the patch onto g
func (p GamePatch) Apply(g *Game) {
	if p.Status != nil {
		g.Status = *p.Status
	}
	if p.CurrentTurn != nil {
		g.CurrentTurn = *p.CurrentTurn
	}
	if p.CurrentPlayerIndex != nil {
		g.CurrentPlayerIndex = *p.CurrentPlayerIndex
	}
	if p.CardDeck != nil {
		g.CardDeck = append(make([]Card, 0, len(p.CardDeck)), p.CardDeck...)
	}
}

// Apply writes the non-nil fields of the patch onto pl
func (p PlayerPatch) Apply(pl *Player) {
	if p.Position != nil {
		pl.Position = *p.Position
	}
	if p.SkipNextTurn != nil {
		pl.SkipNextTurn = *p.SkipNextTurn
	}
}

// TurnOutcome is the result of resolving one roll request. Game and Players
// are re-read from the repository after resolution; the remaining fields are
// transient and only describe this turn.
type TurnOutcome struct {
	Game        *Game     `json:"game"`
	Players     []*Player `json:"players"`
	DiceValue   int       `json:"dice_value,omitempty"`
	CurrentCard *Card     `json:"current_card"`
	Winner      *Player   `json:"winner,omitempty"`
	ExtraTurn   bool      `json:"extra_turn,omitempty"`
	SkippedTurn bool      `json:"skipped_turn,omitempty"`
}

// Ptr returns a pointer to v, handy for building patches
func Ptr[T any](v T) *T {
	return &v
}
