package worker

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/helloviza/approvals/internal/application/port"
	"go.uber.org/zap"
)

// AttachmentSweeperConfig holds configuration for the sweeper
type AttachmentSweeperConfig struct {
	Interval  time.Duration
	Retention time.Duration
	Dir       string
}

// DefaultAttachmentSweeperConfig returns default configuration
func DefaultAttachmentSweeperConfig() AttachmentSweeperConfig {
	return AttachmentSweeperConfig{
		Interval:  time.Hour,
		Retention: 24 * time.Hour,
		Dir:       "uploads",
	}
}

// AttachmentSweeper deletes uploads that no history comment ever referenced
// once they are older than the retention period.
type AttachmentSweeper struct {
	config  AttachmentSweeperConfig
	storage port.FileStorage
	history port.HistoryRepository
	logger  *zap.Logger
	nowFn   func() time.Time

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
	removed   int
}

// NewAttachmentSweeper creates a new sweeper
func NewAttachmentSweeper(
	config AttachmentSweeperConfig,
	storage port.FileStorage,
	history port.HistoryRepository,
	logger *zap.Logger,
) *AttachmentSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttachmentSweeper{
		config:  config,
		storage: storage,
		history: history,
		logger:  logger,
		nowFn:   time.Now,
	}
}

// Name returns the worker name for identification
func (w *AttachmentSweeper) Name() string {
	return "AttachmentSweeper"
}

// Start begins the sweep loop
func (w *AttachmentSweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("attachment sweeper already running")
	}
	if w.config.Interval <= 0 {
		return fmt.Errorf("attachment sweeper interval must be positive")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("AttachmentSweeper started",
		zap.Duration("interval", w.config.Interval),
		zap.Duration("retention", w.config.Retention))

	go w.loop(runCtx, w.done)
	return nil
}

// Stop terminates the loop and waits for an in-flight sweep to finish
func (w *AttachmentSweeper) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("AttachmentSweeper stopped", zap.Int("removed_count", w.Removed()))
	return nil
}

// Removed returns how many files the sweeper deleted since creation
func (w *AttachmentSweeper) Removed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.removed
}

func (w *AttachmentSweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("Attachment sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce removes unreferenced uploads older than the retention period
// and returns how many were deleted
func (w *AttachmentSweeper) SweepOnce(ctx context.Context) (int, error) {
	files, err := w.storage.List(ctx, w.config.Dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list uploads: %w", err)
	}

	cutoff := w.nowFn().Add(-w.config.Retention)
	removed := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if f.ModTime.After(cutoff) {
			continue
		}

		referenced, err := w.isReferenced(ctx, f.Path)
		if err != nil {
			w.logger.Warn("Skipping upload, reference check failed",
				zap.String("path", f.Path),
				zap.Error(err))
			continue
		}
		if referenced {
			continue
		}

		if err := w.storage.Delete(ctx, f.Path); err != nil {
			w.logger.Warn("Failed to delete stale upload",
				zap.String("path", f.Path),
				zap.Error(err))
			continue
		}
		removed++
		w.logger.Info("Deleted unreferenced upload", zap.String("path", f.Path))
	}

	w.mu.Lock()
	w.removed += removed
	w.mu.Unlock()

	return removed, nil
}

// isReferenced matches either the stored URL tail (<id>-<name>) or the
// protected download link, the two forms an admin comment can carry
func (w *AttachmentSweeper) isReferenced(ctx context.Context, p string) (bool, error) {
	rel := strings.TrimPrefix(p, strings.TrimSuffix(w.config.Dir, "/")+"/")
	found, err := w.history.ReferencesFile(ctx, rel)
	if err != nil || found {
		return found, err
	}
	link := "/attachments/" + url.PathEscape(path.Base(p)) + "/download"
	return w.history.ReferencesFile(ctx, link)
}
