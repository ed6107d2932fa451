package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/helloviza/approvals/internal/application/port"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisLock(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	l := NewRedisLock(client, "approvals:lock:", zap.NewNop())
	ctx := context.Background()

	t.Run("AcquireAndRelease", func(t *testing.T) {
		release, err := l.Acquire(ctx, "req-1", time.Minute)
		require.NoError(t, err)
		assert.True(t, s.Exists("approvals:lock:req-1"))

		_, err = l.Acquire(ctx, "req-1", time.Minute)
		assert.ErrorIs(t, err, port.ErrLockHeld)

		require.NoError(t, release(ctx))
		assert.False(t, s.Exists("approvals:lock:req-1"))

		release2, err := l.Acquire(ctx, "req-1", time.Minute)
		require.NoError(t, err)
		require.NoError(t, release2(ctx))
	})

	t.Run("IndependentKeys", func(t *testing.T) {
		r1, err := l.Acquire(ctx, "a", time.Minute)
		require.NoError(t, err)
		r2, err := l.Acquire(ctx, "b", time.Minute)
		require.NoError(t, err)
		require.NoError(t, r1(ctx))
		require.NoError(t, r2(ctx))
	})

	t.Run("StaleReleaseKeepsNewHolder", func(t *testing.T) {
		stale, err := l.Acquire(ctx, "req-2", time.Second)
		require.NoError(t, err)

		s.FastForward(2 * time.Second)

		fresh, err := l.Acquire(ctx, "req-2", time.Minute)
		require.NoError(t, err)

		require.NoError(t, stale(ctx))
		assert.True(t, s.Exists("approvals:lock:req-2"), "stale release must not drop the new holder")

		require.NoError(t, fresh(ctx))
		assert.False(t, s.Exists("approvals:lock:req-2"))
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, l.Ping(ctx))
	})
}

func TestRedisLock_Unavailable(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	defer client.Close()
	s.Close()

	_, err = NewRedisLock(client, "", nil).Acquire(context.Background(), "k", time.Second)
	require.Error(t, err)
	assert.NotErrorIs(t, err, port.ErrLockHeld)
}

func TestMemoryLock(t *testing.T) {
	l := NewMemoryLock()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.nowFn = func() time.Time { return now }
	ctx := context.Background()

	release, err := l.Acquire(ctx, "req-1", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "req-1", time.Minute)
	assert.ErrorIs(t, err, port.ErrLockHeld)

	_, err = l.Acquire(ctx, "req-2", time.Minute)
	assert.NoError(t, err)

	require.NoError(t, release(ctx))
	fresh, err := l.Acquire(ctx, "req-1", time.Minute)
	require.NoError(t, err)

	// Expired entries can be taken over, and the old holder's release is a no-op
	now = now.Add(2 * time.Minute)
	taker, err := l.Acquire(ctx, "req-1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, fresh(ctx))
	_, err = l.Acquire(ctx, "req-1", time.Minute)
	assert.ErrorIs(t, err, port.ErrLockHeld)
	require.NoError(t, taker(ctx))
}

func TestMemoryLock_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryLock().Acquire(ctx, "k", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
