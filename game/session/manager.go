package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrGameNotTracked is returned for games the manager has never seen or has
// forgotten
var ErrGameNotTracked = errors.New("game not tracked")

// Locker grants exclusive access to one game. The returned unlock func must
// be called exactly once; extra calls are no-ops.
type Locker interface {
	Lock(ctx context.Context, gameID int64) (unlock func(), err error)
}

// slot is the per-game lock plus access bookkeeping
type slot struct {
	sem          chan struct{}
	lastAccessed time.Time
}

// Manager serialises mutations per game inside one process and tracks when
// each game was last used. Different games never block each other.
type Manager struct {
	games       map[int64]*slot
	distributed Locker
	now         func() time.Time
	mu          sync.Mutex
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithDistributedLocker makes every Lock also take a lock shared between
// processes, after the in-process one
func WithDistributedLocker(l Locker) ManagerOption {
	return func(m *Manager) {
		m.distributed = l
	}
}

// WithClock overrides the clock used for access times
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a new lock manager
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		games: make(map[int64]*slot),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Locker = (*Manager)(nil)

// slotFor returns the slot of a game, creating it on first use
func (m *Manager) slotFor(gameID int64) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.games[gameID]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1), lastAccessed: m.now()}
		m.games[gameID] = s
	}
	return s
}

// Lock blocks until the caller holds the game exclusively or ctx is done.
// Acquiring the lock also touches the game.
func (m *Manager) Lock(ctx context.Context, gameID int64) (func(), error) {
	s := m.slotFor(gameID)

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("lock game %d: %w", gameID, ctx.Err())
	}

	var remoteUnlock func()
	if m.distributed != nil {
		var err error
		remoteUnlock, err = m.distributed.Lock(ctx, gameID)
		if err != nil {
			<-s.sem
			return nil, err
		}
	}

	m.Touch(gameID)

	return sync.OnceFunc(func() {
		if remoteUnlock != nil {
			remoteUnlock()
		}
		<-s.sem
	}), nil
}

// Touch records an access to the game now
func (m *Manager) Touch(gameID int64) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.games[gameID]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		m.games[gameID] = s
	}
	s.lastAccessed = now
}

// LastAccessed returns when the game was last locked or touched
func (m *Manager) LastAccessed(gameID int64) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.games[gameID]
	if !ok {
		return time.Time{}, ErrGameNotTracked
	}
	return s.lastAccessed, nil
}

// Forget drops the bookkeeping of a game, typically after it was deleted.
// A holder of the lock can still release it safely.
func (m *Manager) Forget(gameID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, gameID)
}

// Idle returns the tracked games not accessed within maxAge
func (m *Manager) Idle(maxAge time.Duration) []int64 {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []int64
	for id, s := range m.games {
		if s.lastAccessed.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}
