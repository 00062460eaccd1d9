package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("RACEBOARD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RACEBOARD_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	rdb, err := ConnectRedis(ctx, addr, "", 0, zap.NewNop())
	require.NoError(t, err)
	defer rdb.Close()

	prefix := "raceboard:test:" + time.Now().Format("150405.000000") + ":"
	locker := NewRedisLocker(rdb, WithKeyPrefix(prefix), WithLockTTL(2*time.Second), WithRetryDelay(5*time.Millisecond))

	unlock, err := locker.Lock(ctx, 1)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(short, 1)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "second holder must wait, got %v", err)

	other, err := locker.Lock(ctx, 2)
	require.NoError(t, err, "other games are independent")
	other()

	unlock()
	unlock()

	again, err := locker.Lock(ctx, 1)
	require.NoError(t, err)
	again()

	t.Run("expired lock is not released by its old holder", func(t *testing.T) {
		quick := NewRedisLocker(rdb, WithKeyPrefix(prefix), WithLockTTL(30*time.Millisecond))
		stale, err := quick.Lock(ctx, 9)
		require.NoError(t, err)

		time.Sleep(60 * time.Millisecond)
		fresh, err := locker.Lock(ctx, 9)
		require.NoError(t, err)
		defer fresh()

		stale()
		exists, err := rdb.Exists(ctx, prefix+"9").Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), exists)
	})
}
