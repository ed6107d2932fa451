package lock

import (
	"context"
	"sync"
	"time"

	"github.com/helloviza/approvals/internal/application/port"
)

// MemoryLock is the single-process fallback used when Redis is not configured
type MemoryLock struct {
	mu    sync.Mutex
	held  map[string]memoryEntry
	seq   uint64
	nowFn func() time.Time
}

type memoryEntry struct {
	token   uint64
	expires time.Time
}

// NewMemoryLock creates an in-process lock
func NewMemoryLock() *MemoryLock {
	return &MemoryLock{
		held:  make(map[string]memoryEntry),
		nowFn: time.Now,
	}
}

// Acquire takes key for ttl or returns port.ErrLockHeld
func (l *MemoryLock) Acquire(ctx context.Context, key string, ttl time.Duration) (port.ReleaseFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if e, ok := l.held[key]; ok && now.Before(e.expires) {
		return nil, port.ErrLockHeld
	}

	l.seq++
	token := l.seq
	l.held[key] = memoryEntry{token: token, expires: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if e, ok := l.held[key]; ok && e.token == token {
			delete(l.held, key)
		}
		return nil
	}, nil
}

var _ port.ActionLock = (*MemoryLock)(nil)
