package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/helloviza/approvals/internal/application/port"
	"github.com/helloviza/approvals/internal/domain/entity"
	"github.com/helloviza/approvals/internal/infrastructure/persistence/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RequestRepository implements port.RequestRepository
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

const requestColumns = `id, ticket_id, status, admin_state, comments,
	customer_id, customer_name, frontliner_name, frontliner_email,
	approver_name, approver_email, created_at, updated_at`

// Create inserts the request together with its cart items
func (r *RequestRepository) Create(ctx context.Context, req *entity.ApprovalRequest) error {
	query := `
		INSERT INTO approval_requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		req.ID,
		req.TicketID,
		req.Status,
		req.NormalizedAdminState(),
		req.Comments,
		req.CustomerID,
		req.CustomerName,
		req.FrontlinerName,
		req.FrontlinerEmail,
		req.ApproverName,
		req.ApproverEmail,
		req.CreatedAt.UTC(),
		req.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create request", zap.String("request_id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	return r.insertItems(ctx, req.ID, req.CartItems)
}

// GetByID retrieves a request and its cart items. Returns nil, nil when absent.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE id = ?`

	req, err := scanRequest(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request by ID", zap.String("request_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	items, err := r.loadItems(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	req.CartItems = items[id]

	return req, nil
}

// Update persists the mutable request fields. Cart items go through ReplaceCartItems.
func (r *RequestRepository) Update(ctx context.Context, req *entity.ApprovalRequest) error {
	query := `
		UPDATE approval_requests
		SET status = ?, admin_state = ?, comments = ?,
			approver_name = ?, approver_email = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		req.Status,
		req.NormalizedAdminState(),
		req.Comments,
		req.ApproverName,
		req.ApproverEmail,
		req.UpdatedAt.UTC(),
		req.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update request", zap.String("request_id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to update request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("request not found: %s", req.ID)
	}

	return nil
}

// ReplaceCartItems swaps the full item list of a request
func (r *RequestRepository) ReplaceCartItems(ctx context.Context, requestID string, items []entity.CartItem) error {
	if _, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM cart_items WHERE request_id = ?`, requestID); err != nil {
		r.logger.Error("Failed to clear cart items", zap.String("request_id", requestID), zap.Error(err))
		return fmt.Errorf("failed to clear cart items: %w", err)
	}
	return r.insertItems(ctx, requestID, items)
}

// List returns requests matching q, newest update first
func (r *RequestRepository) List(ctx context.Context, q port.RequestQuery) ([]*entity.ApprovalRequest, error) {
	var (
		where []string
		args  []interface{}
	)

	if q.CustomerID != "" {
		where = append(where, "customer_id = ?")
		args = append(args, q.CustomerID)
	}
	if q.FrontlinerEmail != "" {
		where = append(where, "LOWER(frontliner_email) = LOWER(?)")
		args = append(args, q.FrontlinerEmail)
	}
	if q.ApproverEmail != "" {
		where = append(where, "(approver_email = '' OR LOWER(approver_email) = LOWER(?))")
		args = append(args, q.ApproverEmail)
	}
	if len(q.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(q.Statuses))+")")
		for _, s := range q.Statuses {
			args = append(args, s)
		}
	}

	query := `SELECT ` + requestColumns + ` FROM approval_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC, id ASC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var (
		requests []*entity.ApprovalRequest
		ids      []string
	)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
		ids = append(ids, req.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating requests: %w", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return requests, nil
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, req := range requests {
		req.CartItems = items[req.ID]
	}

	return requests, nil
}

func (r *RequestRepository) insertItems(ctx context.Context, requestID string, items []entity.CartItem) error {
	query := `
		INSERT INTO cart_items (
			request_id, position, type, service, category,
			title, description, qty, price, meta
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for i := range items {
		item := &items[i]
		meta, err := encodeMeta(item.Meta)
		if err != nil {
			return fmt.Errorf("failed to encode meta of item %d: %w", i, err)
		}

		result, err := r.getExecutor(ctx).ExecContext(ctx, query,
			requestID,
			i,
			item.Type,
			item.Service,
			item.Category,
			item.Title,
			item.Description,
			item.Qty,
			item.Price.String(),
			meta,
		)
		if err != nil {
			r.logger.Error("Failed to insert cart item",
				zap.String("request_id", requestID),
				zap.Int("position", i),
				zap.Error(err))
			return fmt.Errorf("failed to insert cart item: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		item.ID = id
	}

	return nil
}

func (r *RequestRepository) loadItems(ctx context.Context, requestIDs []string) (map[string][]entity.CartItem, error) {
	query := `
		SELECT id, request_id, type, service, category, title, description, qty, price, meta
		FROM cart_items
		WHERE request_id IN (` + placeholders(len(requestIDs)) + `)
		ORDER BY request_id, position
	`

	args := make([]interface{}, len(requestIDs))
	for i, id := range requestIDs {
		args[i] = id
	}

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to load cart items", zap.Error(err))
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]entity.CartItem, len(requestIDs))
	for rows.Next() {
		var (
			item      entity.CartItem
			requestID string
			price     string
			meta      string
		)
		if err := rows.Scan(
			&item.ID,
			&requestID,
			&item.Type,
			&item.Service,
			&item.Category,
			&item.Title,
			&item.Description,
			&item.Qty,
			&price,
			&meta,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}

		if item.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("invalid price %q on cart item %d: %w", price, item.ID, err)
		}
		if item.Meta, err = decodeMeta(meta); err != nil {
			return nil, fmt.Errorf("invalid meta on cart item %d: %w", item.ID, err)
		}

		out[requestID] = append(out[requestID], item)
	}

	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*entity.ApprovalRequest, error) {
	var req entity.ApprovalRequest
	err := row.Scan(
		&req.ID,
		&req.TicketID,
		&req.Status,
		&req.AdminState,
		&req.Comments,
		&req.CustomerID,
		&req.CustomerName,
		&req.FrontlinerName,
		&req.FrontlinerEmail,
		&req.ApproverName,
		&req.ApproverEmail,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func encodeMeta(meta map[string]any) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeMeta(raw string) (map[string]any, error) {
	meta := map[string]any{}
	if raw == "" {
		return meta, nil
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (r *RequestRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}
