package engine

import "context"

// Repository persists games, players and events. Implementations must be safe
// for concurrent use and must return errors wrapping ErrNotFound for unknown ids.
//
// Every method that changes more than one field does so as a single unit: a
// concurrent reader sees either all of the change or none of it.
type Repository interface {
	// Games
	CreateGame(ctx context.Context, game *Game) (*Game, error)
	GetGame(ctx context.Context, id int64) (*Game, error)
	UpdateGame(ctx context.Context, id int64, patch GamePatch) (*Game, error)
	ListGames(ctx context.Context) ([]*Game, error)
	DeleteGame(ctx context.Context, id int64) error

	// Players
	CreatePlayer(ctx context.Context, player *Player) (*Player, error)
	GetPlayers(ctx context.Context, gameID int64) ([]*Player, error) // ordered by seat
	UpdatePlayer(ctx context.Context, id int64, patch PlayerPatch) (*Player, error)
	SwapPositions(ctx context.Context, playerA, playerB int64) (*Player, *Player, error)

	// Events
	AppendEvent(ctx context.Context, gameID int64, message string, kind EventKind, timestamp int64) (*Event, error)
	ListEvents(ctx context.Context, gameID int64) ([]*Event, error) // newest first
}
