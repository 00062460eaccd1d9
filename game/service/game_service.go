package service

import (
	"context"
	"errors"

	"github.com/wricardo/race-board-game/game/engine"
)

// ErrInvalidInput reports a request the caller must fix, such as a bad name
var ErrInvalidInput = errors.New("invalid input")

// GameService defines all game-related operations
type GameService interface {
	// Game lifecycle
	CreateGame(ctx context.Context) (*GameState, error)
	GetGame(ctx context.Context, gameID int64) (*GameState, error)
	ListGames(ctx context.Context) ([]*GameSummary, error)
	DeleteGame(ctx context.Context, gameID int64) error
	ResetGame(ctx context.Context, gameID int64) (*GameState, error)

	// Lobby
	AddPlayer(ctx context.Context, gameID int64, name string) (*engine.Player, error)
	StartGame(ctx context.Context, gameID int64) (*GameState, error)

	// Play
	Roll(ctx context.Context, gameID int64) (*RollResult, error)
	GetEvents(ctx context.Context, gameID int64, opts HistoryOptions) (*HistoryResponse, error)

	// Reference
	Rules(ctx context.Context) *Rules
}

// SessionManager serialises mutations per game and tracks game usage
type SessionManager interface {
	Lock(ctx context.Context, gameID int64) (unlock func(), err error)
	Touch(gameID int64)
	Forget(gameID int64)
}
