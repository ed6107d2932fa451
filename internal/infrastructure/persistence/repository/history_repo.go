package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/helloviza/approvals/internal/application/port"
	"github.com/helloviza/approvals/internal/domain/entity"
	"github.com/helloviza/approvals/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append records a history entry and sets its ID
func (r *HistoryRepository) Append(ctx context.Context, entry *entity.HistoryEntry) error {
	query := `
		INSERT INTO approval_history (request_id, action, occurred_at, actor, comment)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		entry.RequestID,
		entry.Action,
		entry.At.UTC(),
		entry.By,
		entry.Comment,
	)
	if err != nil {
		r.logger.Error("Failed to append history", zap.String("request_id", entry.RequestID), zap.Error(err))
		return fmt.Errorf("failed to append history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// GetByRequestID returns the history of one request in append order
func (r *HistoryRepository) GetByRequestID(ctx context.Context, requestID string) ([]entity.HistoryEntry, error) {
	byRequest, err := r.GetByRequestIDs(ctx, []string{requestID})
	if err != nil {
		return nil, err
	}
	return byRequest[requestID], nil
}

// GetByRequestIDs batches history loading for list views and exports
func (r *HistoryRepository) GetByRequestIDs(ctx context.Context, requestIDs []string) (map[string][]entity.HistoryEntry, error) {
	out := make(map[string][]entity.HistoryEntry, len(requestIDs))
	if len(requestIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT id, request_id, action, occurred_at, actor, comment
		FROM approval_history
		WHERE request_id IN (` + placeholders(len(requestIDs)) + `)
		ORDER BY request_id, id ASC
	`

	args := make([]interface{}, len(requestIDs))
	for i, id := range requestIDs {
		args[i] = id
	}

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to get history", zap.Int("requests", len(requestIDs)), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry entity.HistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.Action,
			&entry.At,
			&entry.By,
			&entry.Comment,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		out[entry.RequestID] = append(out[entry.RequestID], entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return out, nil
}

// ReferencesFile reports whether any comment mentions fileName, e.g. in an
// admin comment's attachment URL
func (r *HistoryRepository) ReferencesFile(ctx context.Context, fileName string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM approval_history WHERE instr(comment, ?) > 0)`

	var found bool
	if err := r.getExecutor(ctx).QueryRowContext(ctx, query, fileName).Scan(&found); err != nil {
		r.logger.Error("Failed to check file reference", zap.String("file", fileName), zap.Error(err))
		return false, fmt.Errorf("failed to check file reference: %w", err)
	}
	return found, nil
}

// FindByFileReference returns every entry whose comment mentions fileName,
// oldest first
func (r *HistoryRepository) FindByFileReference(ctx context.Context, fileName string) ([]entity.HistoryEntry, error) {
	query := `
		SELECT id, request_id, action, occurred_at, actor, comment
		FROM approval_history
		WHERE instr(comment, ?) > 0
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, fileName)
	if err != nil {
		r.logger.Error("Failed to find file references", zap.String("file", fileName), zap.Error(err))
		return nil, fmt.Errorf("failed to find file references: %w", err)
	}
	defer rows.Close()

	var out []entity.HistoryEntry
	for rows.Next() {
		var entry entity.HistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.Action,
			&entry.At,
			&entry.By,
			&entry.Comment,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		out = append(out, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return out, nil
}

func (r *HistoryRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}
