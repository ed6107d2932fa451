package port

import (
	"context"

	"github.com/helloviza/approvals/internal/domain/entity"
)

// RequestQuery narrows a repository listing. Zero values match everything.
type RequestQuery struct {
	CustomerID      string
	FrontlinerEmail string
	// ApproverEmail matches requests addressed to this approver or to nobody
	ApproverEmail string
	Statuses      []entity.Status
	Limit         int
}

// RequestRepository defines persistence operations for ApprovalRequest.
// Cart items are loaded and stored with their request; history is not.
type RequestRepository interface {
	Create(ctx context.Context, req *entity.ApprovalRequest) error
	GetByID(ctx context.Context, id string) (*entity.ApprovalRequest, error)
	// Update persists status, admin state, comments, approver and updated_at
	Update(ctx context.Context, req *entity.ApprovalRequest) error
	ReplaceCartItems(ctx context.Context, requestID string, items []entity.CartItem) error
	List(ctx context.Context, q RequestQuery) ([]*entity.ApprovalRequest, error)
}

// HistoryRepository is append-only; there is no update or delete
type HistoryRepository interface {
	Append(ctx context.Context, entry *entity.HistoryEntry) error
	GetByRequestID(ctx context.Context, requestID string) ([]entity.HistoryEntry, error)
	GetByRequestIDs(ctx context.Context, requestIDs []string) (map[string][]entity.HistoryEntry, error)
	// ReferencesFile reports whether any history comment mentions fileName
	ReferencesFile(ctx context.Context, fileName string) (bool, error)
	// FindByFileReference returns the entries whose comment mentions fileName
	FindByFileReference(ctx context.Context, fileName string) ([]entity.HistoryEntry, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
