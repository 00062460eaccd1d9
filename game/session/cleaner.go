package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/wricardo/race-board-game/game/engine"
)

// GameStore is the part of the repository the cleaner needs
type GameStore interface {
	ListGames(ctx context.Context) ([]*engine.Game, error)
	DeleteGame(ctx context.Context, id int64) error
}

// Cleaner deletes games nobody has used for a while. A game counts as used
// when it was updated in the store or locked through the manager; completed
// games expire after half the TTL.
type Cleaner struct {
	store   GameStore
	manager *Manager
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewCleaner creates a cleaner for games idle longer than ttl
func NewCleaner(store GameStore, manager *Manager, ttl time.Duration, logger *zap.Logger) *Cleaner {
	return &Cleaner{
		store:   store,
		manager: manager,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

func (c *Cleaner) expired(game *engine.Game, now time.Time) bool {
	last := game.UpdatedAt
	if accessed, err := c.manager.LastAccessed(game.ID); err == nil && accessed.After(last) {
		last = accessed
	}

	ttl := c.ttl
	if game.Status == engine.StatusCompleted {
		ttl /= 2
	}
	return now.Sub(last) > ttl
}

// Sweep deletes every expired game and returns how many were removed.
// Each deletion happens under the game's lock so it never interleaves with
// a turn in progress.
func (c *Cleaner) Sweep(ctx context.Context) (int, error) {
	games, err := c.store.ListGames(ctx)
	if err != nil {
		return 0, fmt.Errorf("list games: %w", err)
	}

	now := c.now()
	removed := 0
	for _, game := range games {
		if !c.expired(game, now) {
			continue
		}

		if err := c.remove(ctx, game.ID); err != nil {
			if errors.Is(err, engine.ErrNotFound) {
				continue
			}
			return removed, err
		}
		removed++
		c.logger.Info("removed idle game",
			zap.Int64("game_id", game.ID),
			zap.String("status", string(game.Status)),
			zap.Time("updated_at", game.UpdatedAt),
		)
	}

	c.forgetUnknown(games)
	return removed, nil
}

// forgetUnknown drops idle lock bookkeeping for ids the store does not hold,
// such as ids a client asked for that never existed
func (c *Cleaner) forgetUnknown(games []*engine.Game) {
	known := make(map[int64]bool, len(games))
	for _, game := range games {
		known[game.ID] = true
	}
	for _, id := range c.manager.Idle(c.ttl) {
		if !known[id] {
			c.manager.Forget(id)
		}
	}
}

func (c *Cleaner) remove(ctx context.Context, gameID int64) error {
	unlock, err := c.manager.Lock(ctx, gameID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := c.store.DeleteGame(ctx, gameID); err != nil {
		return fmt.Errorf("delete game %d: %w", gameID, err)
	}
	c.manager.Forget(gameID)
	return nil
}

// Schedule runs Sweep on a cron spec such as "@hourly" or "*/15 * * * *".
// The returned cron is already started; Stop it on shutdown.
func (c *Cleaner) Schedule(spec string) (*cron.Cron, error) {
	cr := cron.New()
	_, err := cr.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		c.logger.Debug("sweeping idle games")
		removed, err := c.Sweep(ctx)
		if err != nil {
			c.logger.Error("idle game sweep failed", zap.Int("removed", removed), zap.Error(err))
			return
		}
		if removed > 0 {
			c.logger.Info("idle game sweep finished", zap.Int("removed", removed))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}
	cr.Start()
	return cr, nil
}
