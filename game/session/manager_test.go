package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestManager_LockIsExclusivePerGame(t *testing.T) {
	manager := NewManager()
	ctx := context.Background()

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := manager.Lock(ctx, 1)
			if err != nil {
				t.Errorf("Lock failed: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("Expected at most one holder at a time, saw %d", maxInside)
	}
}

func TestManager_DifferentGamesDoNotBlock(t *testing.T) {
	manager := NewManager()
	ctx := context.Background()

	unlock1, err := manager.Lock(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to lock game 1: %v", err)
	}
	defer unlock1()

	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlock2, err := manager.Lock(ctx2, 2)
	if err != nil {
		t.Fatalf("Locking game 2 should not wait for game 1: %v", err)
	}
	unlock2()
}

func TestManager_LockRespectsContext(t *testing.T) {
	manager := NewManager()

	unlock, err := manager.Lock(context.Background(), 7)
	if err != nil {
		t.Fatalf("Failed to lock: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = manager.Lock(ctx, 7)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestManager_UnlockIsIdempotent(t *testing.T) {
	manager := NewManager()
	ctx := context.Background()

	unlock, err := manager.Lock(ctx, 3)
	if err != nil {
		t.Fatalf("Failed to lock: %v", err)
	}
	unlock()
	unlock()

	// A double unlock must not free a slot held by someone else
	second, err := manager.Lock(ctx, 3)
	if err != nil {
		t.Fatalf("Failed to relock: %v", err)
	}
	defer second()

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := manager.Lock(short, 3); err == nil {
		t.Error("Expected the lock to still be held")
	}
}

func TestManager_AccessTracking(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	manager := NewManager(WithClock(func() time.Time { return now }))

	if _, err := manager.LastAccessed(1); !errors.Is(err, ErrGameNotTracked) {
		t.Errorf("Expected ErrGameNotTracked, got %v", err)
	}

	manager.Touch(1)
	now = now.Add(time.Hour)
	unlock, err := manager.Lock(context.Background(), 2)
	if err != nil {
		t.Fatalf("Failed to lock: %v", err)
	}
	unlock()

	if _, err := manager.LastAccessed(1); err != nil {
		t.Errorf("Expected game 1 to be tracked after Touch: %v", err)
	}

	last, err := manager.LastAccessed(2)
	if err != nil {
		t.Fatalf("LastAccessed failed: %v", err)
	}
	if !last.Equal(now) {
		t.Errorf("Expected last access %v, got %v", now, last)
	}

	now = now.Add(30 * time.Minute)
	idle := manager.Idle(time.Hour)
	if len(idle) != 1 || idle[0] != 1 {
		t.Errorf("Expected only game 1 to be idle, got %v", idle)
	}

	manager.Forget(1)
	if _, err := manager.LastAccessed(1); !errors.Is(err, ErrGameNotTracked) {
		t.Errorf("Expected game 1 to be forgotten, got %v", err)
	}
	if _, err := manager.LastAccessed(2); err != nil {
		t.Errorf("Expected game 2 to stay tracked: %v", err)
	}
}

type fakeLocker struct {
	mu       sync.Mutex
	locks    int
	unlocks  int
	failWith error
}

func (f *fakeLocker) Lock(ctx context.Context, gameID int64) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.locks++
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unlocks++
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	remote := &fakeLocker{}
	manager := NewManager(WithDistributedLocker(remote))

	unlock, err := manager.Lock(context.Background(), 1)
	if err != nil {
		t.Fatalf("Failed to lock: %v", err)
	}
	unlock()
	unlock()

	if remote.locks != 1 || remote.unlocks != 1 {
		t.Errorf("Expected one remote lock and unlock, got %d/%d", remote.locks, remote.unlocks)
	}

	t.Run("remote failure releases local slot", func(t *testing.T) {
		remote.failWith = errors.New("redis down")
		if _, err := manager.Lock(context.Background(), 1); err == nil {
			t.Fatal("Expected remote failure to surface")
		}

		remote.failWith = nil
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		unlock, err := manager.Lock(ctx, 1)
		if err != nil {
			t.Fatalf("Local slot should be free again: %v", err)
		}
		unlock()
	})
}
