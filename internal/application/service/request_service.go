package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/helloviza/approvals/internal/application/port"
	"github.com/helloviza/approvals/internal/domain/derive"
	"github.com/helloviza/approvals/internal/domain/entity"
	"github.com/helloviza/approvals/internal/domain/event"
	"github.com/helloviza/approvals/internal/domain/workflow"
	"github.com/helloviza/approvals/pkg/utils"
)

// SubmitInput is a new request. When CartItems is empty the items and
// identity fields are read from Payload, the loosely shaped body older
// clients send.
type SubmitInput struct {
	TicketID      string            `json:"ticketId,omitempty"`
	CartItems     []entity.CartItem `json:"cartItems,omitempty"`
	Comments      string            `json:"comments,omitempty"`
	CustomerName  string            `json:"customerName,omitempty"`
	ApproverName  string            `json:"approverName,omitempty"`
	ApproverEmail string            `json:"approverEmail,omitempty"`
	Payload       map[string]any    `json:"-"`
}

// EditInput replaces the cart and comments of an editable request.
// A nil CartItems keeps the current items.
type EditInput struct {
	CartItems []entity.CartItem `json:"cartItems,omitempty"`
	Comments  *string           `json:"comments,omitempty"`
	Note      string            `json:"note,omitempty"`
}

// RequestService covers the requester (L1) operations
type RequestService interface {
	Submit(ctx context.Context, actor entity.Actor, in SubmitInput) (*entity.ApprovalRequest, error)
	Edit(ctx context.Context, actor entity.Actor, id string, in EditInput) (*entity.ApprovalRequest, error)
	Revoke(ctx context.Context, actor entity.Actor, id, comment string) (*entity.ApprovalRequest, error)
	ListMine(ctx context.Context, actor entity.Actor, filter derive.Filter) ([]*entity.ApprovalRequest, error)
	Get(ctx context.Context, actor entity.Actor, id string) (*entity.ApprovalRequest, error)
}

type requestServiceImpl struct {
	core
}

// NewRequestService creates a new RequestService
func NewRequestService(deps Dependencies) RequestService {
	return &requestServiceImpl{core: newCore(deps)}
}

func (s *requestServiceImpl) Submit(ctx context.Context, actor entity.Actor, in SubmitInput) (*entity.ApprovalRequest, error) {
	if err := requireRole(actor, entity.RoleRequester); err != nil {
		return nil, err
	}

	req := s.fromInput(actor, in)
	if err := validateItems(req.CartItems); err != nil {
		return nil, err
	}
	if req.ApproverEmail != "" {
		if err := utils.ValidateEmail(req.ApproverEmail); err != nil {
			return nil, invalid("approverEmail", "%v", err)
		}
	}

	err := s.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.Requests.Create(txCtx, req); err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		return s.appendHistory(txCtx, req, entity.HistoryActionCreated, actor.Label(), req.Comments)
	})
	if err != nil {
		s.Logger.Error("Failed to submit request", "error", err, "requester", actor.Email)
		return nil, err
	}

	s.Logger.Info("Request submitted", "request_id", req.ID, "requester", actor.Email, "items", len(req.CartItems))
	s.publish(ctx, event.NewEvent(event.TypeRequestCreated, req.ID, actor.Email, map[string]interface{}{
		event.KeyStatus: req.Status,
		event.KeyRole:   actor.Role,
	}))
	return req, nil
}

func (s *requestServiceImpl) fromInput(actor entity.Actor, in SubmitInput) *entity.ApprovalRequest {
	now := s.now()
	req := &entity.ApprovalRequest{
		ID:              uuid.NewString(),
		TicketID:        strings.TrimSpace(in.TicketID),
		Status:          entity.StatusPending,
		AdminState:      entity.AdminStatePending,
		CartItems:       in.CartItems,
		Comments:        utils.SanitizeString(in.Comments),
		CustomerID:      actor.CustomerID,
		CustomerName:    strings.TrimSpace(in.CustomerName),
		FrontlinerName:  actor.Name,
		FrontlinerEmail: actor.Email,
		ApproverName:    strings.TrimSpace(in.ApproverName),
		ApproverEmail:   strings.TrimSpace(in.ApproverEmail),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if len(req.CartItems) == 0 && in.Payload != nil {
		p := derive.RequestFromPayload(in.Payload)
		req.CartItems = p.CartItems
		req.TicketID = firstNonEmpty(req.TicketID, p.TicketID)
		req.CustomerName = firstNonEmpty(req.CustomerName, p.CustomerName)
		req.ApproverName = firstNonEmpty(req.ApproverName, p.ApproverName)
		req.ApproverEmail = firstNonEmpty(req.ApproverEmail, p.ApproverEmail)
		req.Comments = firstNonEmpty(req.Comments, utils.SanitizeString(p.Comments))
		if req.CustomerID == "" {
			req.CustomerID = p.CustomerID
		}
	}
	return req
}

func (s *requestServiceImpl) Edit(ctx context.Context, actor entity.Actor, id string, in EditInput) (*entity.ApprovalRequest, error) {
	if err := requireRole(actor, entity.RoleRequester); err != nil {
		return nil, err
	}
	if in.CartItems != nil {
		if err := validateItems(in.CartItems); err != nil {
			return nil, err
		}
	}

	var req *entity.ApprovalRequest
	err := s.withActionLock(ctx, id, func() error {
		var err error
		req, err = s.ownRequest(ctx, actor, id)
		if err != nil {
			return err
		}

		m := workflow.NewStatusMachine(req.Status)
		if err := m.Fire(ctx, workflow.ActionEdit); err != nil {
			return fmt.Errorf("edit request in status %s: %w", req.Status, err)
		}

		req.Status = m.State()
		if in.Comments != nil {
			req.Comments = utils.SanitizeString(*in.Comments)
		}
		if in.CartItems != nil {
			req.CartItems = in.CartItems
		}
		req.UpdatedAt = s.now()

		return s.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.Requests.Update(txCtx, req); err != nil {
				return fmt.Errorf("update request: %w", err)
			}
			if in.CartItems != nil {
				if err := s.Requests.ReplaceCartItems(txCtx, req.ID, req.CartItems); err != nil {
					return fmt.Errorf("replace cart items: %w", err)
				}
			}
			return s.appendHistory(txCtx, req, entity.HistoryActionEdited, actor.Label(), utils.SanitizeString(in.Note))
		})
	})
	if err != nil {
		s.Logger.Error("Failed to edit request", "error", err, "request_id", id)
		return nil, err
	}

	s.Logger.Info("Request edited", "request_id", id, "requester", actor.Email)
	s.publish(ctx, event.NewEvent(event.TypeRequestEdited, req.ID, actor.Email, map[string]interface{}{
		event.KeyStatus: req.Status,
		event.KeyRole:   actor.Role,
	}))
	return req, nil
}

func (s *requestServiceImpl) Revoke(ctx context.Context, actor entity.Actor, id, comment string) (*entity.ApprovalRequest, error) {
	if err := requireRole(actor, entity.RoleRequester); err != nil {
		return nil, err
	}

	var req *entity.ApprovalRequest
	err := s.withActionLock(ctx, id, func() error {
		var err error
		req, err = s.ownRequest(ctx, actor, id)
		if err != nil {
			return err
		}

		m := workflow.NewStatusMachine(req.Status)
		if err := m.Fire(ctx, workflow.ActionRevoke); err != nil {
			return fmt.Errorf("revoke request in status %s: %w", req.Status, err)
		}

		req.Status = m.State()
		req.UpdatedAt = s.now()

		return s.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.Requests.Update(txCtx, req); err != nil {
				return fmt.Errorf("update request: %w", err)
			}
			return s.appendHistory(txCtx, req, entity.HistoryActionRevoked, actor.Label(), utils.SanitizeString(comment))
		})
	})
	if err != nil {
		s.Logger.Error("Failed to revoke request", "error", err, "request_id", id)
		return nil, err
	}

	s.Logger.Info("Request revoked", "request_id", id, "requester", actor.Email)
	s.publish(ctx, event.NewEvent(event.TypeRequestRevoked, req.ID, actor.Email, map[string]interface{}{
		event.KeyStatus: req.Status,
		event.KeyAction: workflow.ActionRevoke,
		event.KeyRole:   actor.Role,
	}))
	return req, nil
}

func (s *requestServiceImpl) ListMine(ctx context.Context, actor entity.Actor, filter derive.Filter) ([]*entity.ApprovalRequest, error) {
	if err := requireRole(actor, entity.RoleRequester); err != nil {
		return nil, err
	}

	rows, err := s.Requests.List(ctx, port.RequestQuery{
		CustomerID:      actor.CustomerID,
		FrontlinerEmail: actor.Email,
	})
	if err != nil {
		s.Logger.Error("Failed to list requests", "error", err, "requester", actor.Email)
		return nil, err
	}
	if err := s.attachHistory(ctx, rows); err != nil {
		return nil, err
	}

	rows = filter.Apply(rows)
	derive.SortByUpdatedDesc(rows)
	return rows, nil
}

// Get returns one request. Requesters only see their own; approvers and
// admins see anything in their workspace.
func (s *requestServiceImpl) Get(ctx context.Context, actor entity.Actor, id string) (*entity.ApprovalRequest, error) {
	if !actor.Role.IsValid() {
		return nil, ErrForbidden
	}
	req, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == entity.RoleRequester && !sameEmail(actor.Email, req.FrontlinerEmail) {
		return nil, ErrNotFound
	}
	return req, nil
}

func (s *requestServiceImpl) ownRequest(ctx context.Context, actor entity.Actor, id string) (*entity.ApprovalRequest, error) {
	req, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !sameEmail(actor.Email, req.FrontlinerEmail) {
		return nil, fmt.Errorf("%w: only the requester can change this request", ErrForbidden)
	}
	return req, nil
}

func validateItems(items []entity.CartItem) error {
	if len(items) == 0 {
		return invalid("cartItems", "at least one item is required")
	}
	for i, item := range items {
		field := fmt.Sprintf("cartItems[%d]", i)
		if err := utils.ValidateQty(item.Qty); err != nil {
			return invalid(field+".qty", "%v", err)
		}
		if err := utils.ValidatePrice(item.Price); err != nil {
			return invalid(field+".price", "%v", err)
		}
		if strings.TrimSpace(item.Title) == "" && strings.TrimSpace(item.Type) == "" {
			return invalid(field, "title or type is required")
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
