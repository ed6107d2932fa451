// Package lock provides the per-request action lock used to single-flight
// mutations across service instances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/helloviza/approvals/internal/application/port"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deletes the key only while it still holds our token, so a holder whose
// lock expired cannot release somebody else's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock implements port.ActionLock with SET NX PX
type RedisLock struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisLock creates a lock whose keys are namespaced by prefix
func NewRedisLock(client *redis.Client, prefix string, logger *zap.Logger) *RedisLock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLock{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// Acquire takes key for ttl or returns port.ErrLockHeld
func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (port.ReleaseFunc, error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		l.logger.Error("Failed to acquire lock", zap.String("key", fullKey), zap.Error(err))
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return nil, port.ErrLockHeld
	}

	return func(ctx context.Context) error {
		err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Error("Failed to release lock", zap.String("key", fullKey), zap.Error(err))
			return fmt.Errorf("failed to release lock: %w", err)
		}
		return nil
	}, nil
}

// Ping checks connectivity, used by the container health check
func (l *RedisLock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

var _ port.ActionLock = (*RedisLock)(nil)
