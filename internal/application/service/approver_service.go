package service

import (
	"context"
	"fmt"

	"github.com/helloviza/approvals/internal/application/port"
	"github.com/helloviza/approvals/internal/domain/derive"
	"github.com/helloviza/approvals/internal/domain/entity"
	"github.com/helloviza/approvals/internal/domain/event"
	"github.com/helloviza/approvals/internal/domain/workflow"
	"github.com/helloviza/approvals/pkg/utils"
)

// ApproverService covers the approver (L2) operations
type ApproverService interface {
	Inbox(ctx context.Context, actor entity.Actor, filter derive.Filter) ([]*entity.ApprovalRequest, error)
	Act(ctx context.Context, actor entity.Actor, id string, action workflow.Action, comment string) (*entity.ApprovalRequest, error)
}

type approverServiceImpl struct {
	core
}

// NewApproverService creates a new ApproverService
func NewApproverService(deps Dependencies) ApproverService {
	return &approverServiceImpl{core: newCore(deps)}
}

// Inbox lists requests addressed to the approver or to nobody in particular
func (s *approverServiceImpl) Inbox(ctx context.Context, actor entity.Actor, filter derive.Filter) ([]*entity.ApprovalRequest, error) {
	if err := requireRole(actor, entity.RoleApprover); err != nil {
		return nil, err
	}

	rows, err := s.Requests.List(ctx, port.RequestQuery{
		CustomerID:    actor.CustomerID,
		ApproverEmail: actor.Email,
	})
	if err != nil {
		s.Logger.Error("Failed to list inbox", "error", err, "approver", actor.Email)
		return nil, err
	}
	if err := s.attachHistory(ctx, rows); err != nil {
		return nil, err
	}

	rows = filter.Apply(rows)
	derive.SortByUpdatedDesc(rows)
	return rows, nil
}

// Act applies an approver decision: approved, declined or on_hold
func (s *approverServiceImpl) Act(ctx context.Context, actor entity.Actor, id string, action workflow.Action, comment string) (*entity.ApprovalRequest, error) {
	if err := requireRole(actor, entity.RoleApprover); err != nil {
		return nil, err
	}
	if !action.IsApproverAction() {
		return nil, invalid("action", "unsupported approver action %q", action)
	}

	var req *entity.ApprovalRequest
	err := s.withActionLock(ctx, id, func() error {
		var err error
		req, err = s.load(ctx, actor, id)
		if err != nil {
			return err
		}
		if req.ApproverEmail != "" && !sameEmail(actor.Email, req.ApproverEmail) {
			return fmt.Errorf("%w: request is addressed to another approver", ErrForbidden)
		}

		m := workflow.NewStatusMachine(req.Status)
		if err := m.Fire(ctx, action); err != nil {
			return fmt.Errorf("%s request in status %s: %w", action, req.Status, err)
		}

		req.Status = m.State()
		if req.ApproverEmail == "" {
			req.ApproverEmail = actor.Email
			req.ApproverName = actor.Name
		}
		req.UpdatedAt = s.now()

		return s.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.Requests.Update(txCtx, req); err != nil {
				return fmt.Errorf("update request: %w", err)
			}
			return s.appendHistory(txCtx, req, string(action), actor.Label(), utils.SanitizeString(comment))
		})
	})
	if err != nil {
		s.Logger.Error("Failed to apply approver action", "error", err, "request_id", id, "action", action)
		return nil, err
	}

	s.Logger.Info("Approver action applied", "request_id", id, "action", action, "status", req.Status)
	s.publish(ctx, event.NewEvent(event.TypeRequestDecided, req.ID, actor.Email, map[string]interface{}{
		event.KeyStatus: req.Status,
		event.KeyAction: action,
		event.KeyRole:   actor.Role,
	}))
	return req, nil
}
