package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wricardo/race-board-game/game/engine"
)

// snapshotData is the JSON layout of a snapshot file
type snapshotData struct {
	Games        []*engine.Game   `json:"games"`
	Players      []*engine.Player `json:"players"`
	Events       []*engine.Event  `json:"events"`
	NextGameID   int64            `json:"next_game_id"`
	NextPlayerID int64            `json:"next_player_id"`
	NextEventID  int64            `json:"next_event_id"`
}

// SaveSnapshot writes the whole repository to a JSON file. The file is
// replaced atomically so a crash never leaves a half-written snapshot.
func (r *MemoryRepository) SaveSnapshot(path string) error {
	r.mu.RLock()
	data := snapshotData{
		Games:        make([]*engine.Game, 0, len(r.games)),
		Players:      make([]*engine.Player, 0, len(r.players)),
		NextGameID:   r.nextGameID,
		NextPlayerID: r.nextPlayerID,
		NextEventID:  r.nextEventID,
	}
	for _, game := range r.games {
		data.Games = append(data.Games, game.Clone())
	}
	for _, player := range r.players {
		data.Players = append(data.Players, player.Clone())
	}
	for _, events := range r.events {
		for _, event := range events {
			c := *event
			data.Events = append(data.Events, &c)
		}
	}
	r.mu.RUnlock()

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}
	return nil
}

// LoadSnapshot replaces the repository contents with a snapshot file.
// A missing file leaves the repository empty and is not an error.
func (r *MemoryRepository) LoadSnapshot(path string) error {
	jsonData, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var data snapshotData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	games := make(map[int64]*engine.Game, len(data.Games))
	for _, game := range data.Games {
		games[game.ID] = game
	}
	players := make(map[int64]*engine.Player, len(data.Players))
	for _, player := range data.Players {
		if _, ok := games[player.GameID]; !ok {
			return fmt.Errorf("snapshot player %d references unknown game %d", player.ID, player.GameID)
		}
		players[player.ID] = player
	}
	events := make(map[int64][]*engine.Event, len(data.Games))
	for _, event := range data.Events {
		if _, ok := games[event.GameID]; !ok {
			return fmt.Errorf("snapshot event %d references unknown game %d", event.ID, event.GameID)
		}
		events[event.GameID] = append(events[event.GameID], event)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.games = games
	r.players = players
	r.events = events
	r.nextGameID = data.NextGameID
	r.nextPlayerID = data.NextPlayerID
	r.nextEventID = data.NextEventID
	return nil
}
