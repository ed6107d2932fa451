package port

import (
	"context"
	"errors"
	"time"
)

// ErrLockHeld is returned by ActionLock.Acquire when another holder owns the key
var ErrLockHeld = errors.New("lock is held")

// FileInfo describes a stored file
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// FileStorage defines file storage operations. Paths are relative to the storage root.
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, dir string) ([]FileInfo, error)
	GetFullPath(relativePath string) string
}

// ReleaseFunc releases a held lock. Releasing after expiry is a no-op.
type ReleaseFunc func(ctx context.Context) error

// ActionLock serializes actions on one request across service instances
type ActionLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error)
}
