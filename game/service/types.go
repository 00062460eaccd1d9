package service

import (
	"time"

	"github.com/wricardo/race-board-game/game/engine"
)

// PlayerColors are assigned to players by seat
var PlayerColors = [engine.MaxPlayers]string{"#2196F3", "#E91E63", "#9C27B0", "#00BCD4"}

const (
	MaxNameLength = 20

	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// Tile describes one square of the track for rendering
type Tile struct {
	Position  int               `json:"position"`
	Number    int               `json:"number"` // 1-based, as shown to players
	Effect    engine.TileEffect `json:"effect,omitempty"`
	Label     string            `json:"label,omitempty"`
	Occupants []int64           `json:"occupants,omitempty"`
}

// GameState is the full view of one game
type GameState struct {
	Game          *engine.Game     `json:"game"`
	Players       []*engine.Player `json:"players"`
	Events        []*engine.Event  `json:"events"` // most recent first
	Board         []Tile           `json:"board"`
	CurrentPlayer *engine.Player   `json:"current_player,omitempty"`
	Leader        *engine.Player   `json:"leader,omitempty"`
	Winner        *engine.Player   `json:"winner,omitempty"`
}

// RollResult is the state after a roll plus what happened during it
type RollResult struct {
	*GameState
	DiceValue   int          `json:"dice_value,omitempty"`
	CurrentCard *engine.Card `json:"current_card"`
	ExtraTurn   bool         `json:"extra_turn,omitempty"`
	SkippedTurn bool         `json:"skipped_turn,omitempty"`
}

// GameSummary is the short form used in listings
type GameSummary struct {
	ID          int64         `json:"id"`
	Status      engine.Status `json:"status"`
	CurrentTurn int           `json:"current_turn"`
	PlayerCount int           `json:"player_count"`
	Players     []string      `json:"players"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// HistoryOptions configures event history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated event history
type HistoryResponse struct {
	Events      []*engine.Event `json:"events"`
	TotalEvents int             `json:"total_events"`
	Page        int             `json:"page"`
	PageSize    int             `json:"page_size"`
	TotalPages  int             `json:"total_pages"`
	HasNext     bool            `json:"has_next"`
	HasPrevious bool            `json:"has_previous"`
}

// CardInfo describes an effect card
type CardInfo struct {
	Name        engine.Card `json:"name"`
	Description string      `json:"description"`
}

// Rules summarises the fixed rules of the game
type Rules struct {
	BoardSize    int        `json:"board_size"`
	GoalTile     int        `json:"goal_tile"` // 1-based
	DiceSides    int        `json:"dice_sides"`
	MinPlayers   int        `json:"min_players"`
	MaxPlayers   int        `json:"max_players"`
	SpecialTiles []Tile     `json:"special_tiles"`
	Cards        []CardInfo `json:"cards"`
	Summary      string     `json:"summary"`
}
