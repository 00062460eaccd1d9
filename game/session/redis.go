package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the lock key only while it still holds our token, so
// a lock that expired and was taken over by someone else is left alone
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every server instance that talks to the
// same Redis. Locks expire after TTL so a crashed holder cannot wedge a game.
type RedisLocker struct {
	client     redis.UniversalClient
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
	logger     *zap.Logger
}

// RedisOption configures a RedisLocker
type RedisOption func(*RedisLocker)

// WithKeyPrefix sets the key prefix, "raceboard:lock:" by default
func WithKeyPrefix(prefix string) RedisOption {
	return func(l *RedisLocker) {
		l.prefix = prefix
	}
}

// WithLockTTL sets how long a lock lives without being released
func WithLockTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLocker) {
		l.ttl = ttl
	}
}

// WithRetryDelay sets the pause between acquisition attempts
func WithRetryDelay(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		l.retryDelay = d
	}
}

// WithRedisLogger sets the logger
func WithRedisLogger(logger *zap.Logger) RedisOption {
	return func(l *RedisLocker) {
		l.logger = logger
	}
}

// NewRedisLocker creates a locker on top of an existing client
func NewRedisLocker(client redis.UniversalClient, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client:     client,
		prefix:     "raceboard:lock:",
		ttl:        10 * time.Second,
		retryDelay: 25 * time.Millisecond,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ Locker = (*RedisLocker)(nil)

func (l *RedisLocker) key(gameID int64) string {
	return fmt.Sprintf("%s%d", l.prefix, gameID)
}

// Lock polls SET NX until it wins or ctx is done
func (l *RedisLocker) Lock(ctx context.Context, gameID int64) (func(), error) {
	key := l.key(gameID)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock game %d in redis: %w", gameID, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("lock game %d in redis: %w", gameID, ctx.Err())
		case <-timer.C:
		}
	}

	return sync.OnceFunc(func() {
		// The caller's ctx may already be cancelled; releasing must still happen
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("failed to release game lock",
				zap.Int64("game_id", gameID),
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}), nil
}

// ConnectRedis opens a client and checks it with PING
func ConnectRedis(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	logger.Info("connected to redis", zap.String("addr", addr), zap.Int("db", db))
	return rdb, nil
}
