package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wricardo/race-board-game/game/engine"
)

// MemoryRepository keeps games, players and events in process memory.
// IDs are sequential per entity, starting at 1. Values are cloned on the way
// in and out so callers never share state with the store.
type MemoryRepository struct {
	mu      sync.RWMutex
	games   map[int64]*engine.Game
	players map[int64]*engine.Player
	events  map[int64][]*engine.Event // by game id, insertion order

	nextGameID   int64
	nextPlayerID int64
	nextEventID  int64

	now func() time.Time
}

// NewMemoryRepository creates an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		games:   make(map[int64]*engine.Game),
		players: make(map[int64]*engine.Player),
		events:  make(map[int64][]*engine.Event),
		now:     time.Now,
	}
}

var _ engine.Repository = (*MemoryRepository)(nil)

func (r *MemoryRepository) CreateGame(ctx context.Context, game *engine.Game) (*engine.Game, error) {
	if game == nil {
		return nil, fmt.Errorf("game cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextGameID++
	stored := game.Clone()
	stored.ID = r.nextGameID
	now := r.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.games[stored.ID] = stored

	return stored.Clone(), nil
}

func (r *MemoryRepository) GetGame(ctx context.Context, id int64) (*engine.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	game, ok := r.games[id]
	if !ok {
		return nil, fmt.Errorf("game %d: %w", id, engine.ErrNotFound)
	}
	return game.Clone(), nil
}

func (r *MemoryRepository) UpdateGame(ctx context.Context, id int64, patch engine.GamePatch) (*engine.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	game, ok := r.games[id]
	if !ok {
		return nil, fmt.Errorf("game %d: %w", id, engine.ErrNotFound)
	}
	patch.Apply(game)
	game.UpdatedAt = r.now()
	return game.Clone(), nil
}

// ListGames returns every game, newest first
func (r *MemoryRepository) ListGames(ctx context.Context) ([]*engine.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	games := make([]*engine.Game, 0, len(r.games))
	for _, game := range r.games {
		games = append(games, game.Clone())
	}
	sort.Slice(games, func(i, j int) bool {
		return games[i].ID > games[j].ID
	})
	return games, nil
}

// DeleteGame removes a game together with its players and events
func (r *MemoryRepository) DeleteGame(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.games[id]; !ok {
		return fmt.Errorf("game %d: %w", id, engine.ErrNotFound)
	}
	delete(r.games, id)
	delete(r.events, id)
	for pid, player := range r.players {
		if player.GameID == id {
			delete(r.players, pid)
		}
	}
	return nil
}

func (r *MemoryRepository) CreatePlayer(ctx context.Context, player *engine.Player) (*engine.Player, error) {
	if player == nil {
		return nil, fmt.Errorf("player cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.games[player.GameID]; !ok {
		return nil, fmt.Errorf("game %d: %w", player.GameID, engine.ErrNotFound)
	}

	r.nextPlayerID++
	stored := player.Clone()
	stored.ID = r.nextPlayerID
	r.players[stored.ID] = stored
	return stored.Clone(), nil
}

func (r *MemoryRepository) GetPlayers(ctx context.Context, gameID int64) ([]*engine.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.games[gameID]; !ok {
		return nil, fmt.Errorf("game %d: %w", gameID, engine.ErrNotFound)
	}

	players := make([]*engine.Player, 0, engine.MaxPlayers)
	for _, player := range r.players {
		if player.GameID == gameID {
			players = append(players, player.Clone())
		}
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].Order != players[j].Order {
			return players[i].Order < players[j].Order
		}
		return players[i].ID < players[j].ID
	})
	return players, nil
}

func (r *MemoryRepository) UpdatePlayer(ctx context.Context, id int64, patch engine.PlayerPatch) (*engine.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	player, ok := r.players[id]
	if !ok {
		return nil, fmt.Errorf("player %d: %w", id, engine.ErrNotFound)
	}
	patch.Apply(player)
	return player.Clone(), nil
}

// SwapPositions exchanges the positions of two players under one lock
func (r *MemoryRepository) SwapPositions(ctx context.Context, playerA, playerB int64) (*engine.Player, *engine.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.players[playerA]
	if !ok {
		return nil, nil, fmt.Errorf("player %d: %w", playerA, engine.ErrNotFound)
	}
	b, ok := r.players[playerB]
	if !ok {
		return nil, nil, fmt.Errorf("player %d: %w", playerB, engine.ErrNotFound)
	}
	a.Position, b.Position = b.Position, a.Position
	return a.Clone(), b.Clone(), nil
}

func (r *MemoryRepository) AppendEvent(ctx context.Context, gameID int64, message string, kind engine.EventKind, timestamp int64) (*engine.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.games[gameID]; !ok {
		return nil, fmt.Errorf("game %d: %w", gameID, engine.ErrNotFound)
	}

	r.nextEventID++
	event := &engine.Event{
		ID:        r.nextEventID,
		GameID:    gameID,
		Message:   message,
		Kind:      kind,
		Timestamp: timestamp,
	}
	r.events[gameID] = append(r.events[gameID], event)

	c := *event
	return &c, nil
}

// ListEvents returns a game's events newest first. Events sharing a
// timestamp are ordered by descending id.
func (r *MemoryRepository) ListEvents(ctx context.Context, gameID int64) ([]*engine.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.games[gameID]; !ok {
		return nil, fmt.Errorf("game %d: %w", gameID, engine.ErrNotFound)
	}

	stored := r.events[gameID]
	events := make([]*engine.Event, 0, len(stored))
	for _, event := range stored {
		c := *event
		events = append(events, &c)
	}
	sortNewestFirst(events)
	return events, nil
}

func sortNewestFirst(events []*engine.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp > events[j].Timestamp
		}
		return events[i].ID > events[j].ID
	})
}
