package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/helloviza/approvals/internal/application/port"
	"github.com/helloviza/approvals/internal/domain/admincomment"
	"github.com/helloviza/approvals/internal/domain/derive"
	"github.com/helloviza/approvals/internal/domain/entity"
	"github.com/helloviza/approvals/internal/domain/event"
	"github.com/helloviza/approvals/internal/domain/workflow"
	"github.com/helloviza/approvals/pkg/utils"
)

// AdminInput is the structured metadata recorded with an admin action
type AdminInput struct {
	Service       string               `json:"service,omitempty"`
	Reason        *admincomment.Reason `json:"reason,omitempty"`
	BookingAmount *float64             `json:"bookingAmount,omitempty"`
	ActualPrice   *float64             `json:"actualPrice,omitempty"`
	Note          string               `json:"note,omitempty"`
	AttachmentURL string               `json:"attachmentUrl,omitempty"`
}

// QueueFilter narrows the admin queue
type QueueFilter struct {
	derive.Filter
	// IncludeClosed keeps done and cancelled requests in the queue
	IncludeClosed bool
}

// AdminService covers the admin (L0) processing of approved requests
type AdminService interface {
	Queue(ctx context.Context, actor entity.Actor, filter QueueFilter) ([]*entity.ApprovalRequest, error)
	Act(ctx context.Context, actor entity.Actor, id string, action workflow.Action, in AdminInput) (*entity.ApprovalRequest, error)
	Assign(ctx context.Context, actor entity.Actor, id string, in AdminInput) (*entity.ApprovalRequest, error)
	Hold(ctx context.Context, actor entity.Actor, id string, in AdminInput) (*entity.ApprovalRequest, error)
	UnderProcess(ctx context.Context, actor entity.Actor, id string, in AdminInput) (*entity.ApprovalRequest, error)
	Done(ctx context.Context, actor entity.Actor, id string, in AdminInput) (*entity.ApprovalRequest, error)
	Cancel(ctx context.Context, actor entity.Actor, id string, in AdminInput) (*entity.ApprovalRequest, error)
}

type adminServiceImpl struct {
	core
}

// NewAdminService creates a new AdminService
func NewAdminService(deps Dependencies) AdminService {
	return &adminServiceImpl{core: newCore(deps)}
}

func (s *adminServiceImpl) Queue(ctx context.Context, actor entity.Actor, filter QueueFilter) ([]*entity.ApprovalRequest, error) {
	if err := requireRole(actor, entity.RoleAdmin); err != nil {
		return nil, err
	}

	customerID := actor.CustomerID
	if customerID == "" {
		customerID = filter.CustomerID
	}

	rows, err := s.Requests.List(ctx, port.RequestQuery{
		CustomerID: customerID,
		Statuses:   []entity.Status{entity.StatusApproved},
	})
	if err != nil {
		s.Logger.Error("Failed to list admin queue", "error", err)
		return nil, err
	}

	// asking for a closed admin state is asking for closed requests
	if !filter.IncludeClosed && !filter.AdminState.IsClosed() {
		open := rows[:0]
		for _, r := range rows {
			if !r.NormalizedAdminState().IsClosed() {
				open = append(open, r)
			}
		}
		rows = open
	}

	if err := s.attachHistory(ctx, rows); err != nil {
		return nil, err
	}

	rows = filter.Apply(rows)
	derive.SortByUpdatedDesc(rows)
	return rows, nil
}

func (s *adminServiceImpl) Assign(ctx context.Context, actor entity.Actor, id string, in AdminInput) (*entity.ApprovalRequest, error) {
	return s.Act(ctx, actor, id, workflow.ActionAssign, in)
}

func (s *adminServiceImpl) Hold(ctx context.Context, actor entity.Actor, id string, in AdminInput) (*entity.ApprovalRequest, error) {
	return s.Act(ctx, actor, id, workflow.ActionHold, in)
}

func (s *adminServiceImpl) UnderProcess(ctx context.Context, actor entity.Actor, id string, in AdminInput) (*entity.ApprovalRequest, error) {
	return s.Act(ctx, actor, id, workflow.ActionUnderProcess, in)
}

func (s *adminServiceImpl) Done(ctx context.Context, actor entity.Actor, id string, in AdminInput) (*entity.ApprovalRequest, error) {
	return s.Act(ctx, actor, id, workflow.ActionDone, in)
}

func (s *adminServiceImpl) Cancel(ctx context.Context, actor entity.Actor, id string, in AdminInput) (*entity.ApprovalRequest, error) {
	return s.Act(ctx, actor, id, workflow.ActionCancel, in)
}

// Act moves the admin state and appends exactly one history entry carrying
// the encoded admin comment
func (s *adminServiceImpl) Act(ctx context.Context, actor entity.Actor, id string, action workflow.Action, in AdminInput) (*entity.ApprovalRequest, error) {
	if err := requireRole(actor, entity.RoleAdmin); err != nil {
		return nil, err
	}
	mode, ok := admincomment.ModeFor(action)
	if !ok {
		return nil, invalid("action", "unsupported admin action %q", action)
	}
	if err := admincomment.ValidateReason(mode, in.Reason); err != nil {
		return nil, invalid("reason", "%v", err)
	}
	if in.BookingAmount != nil && *in.BookingAmount < 0 {
		return nil, invalid("bookingAmount", "must not be negative")
	}
	if in.ActualPrice != nil && *in.ActualPrice < 0 {
		return nil, invalid("actualPrice", "must not be negative")
	}
	attachment := strings.TrimSpace(in.AttachmentURL)
	if attachment != "" && !admincomment.ValidAttachmentURL(attachment) {
		return nil, invalid("attachmentUrl", "must be a single http(s), /uploads/ or .pdf link without spaces")
	}

	var req *entity.ApprovalRequest
	err := s.withActionLock(ctx, id, func() error {
		var err error
		req, err = s.load(ctx, actor, id)
		if err != nil {
			return err
		}

		m := workflow.NewAdminMachine(req)
		if err := m.Fire(ctx, action); err != nil {
			return fmt.Errorf("%s request in admin state %s: %w", action, req.NormalizedAdminState(), err)
		}

		service := strings.TrimSpace(in.Service)
		if service == "" {
			service = string(derive.ServiceKind(req))
		}
		comment := admincomment.Build(admincomment.Comment{
			Mode:          mode,
			Service:       service,
			Reason:        in.Reason,
			BookingAmount: in.BookingAmount,
			ActualPrice:   in.ActualPrice,
			Note:          utils.SanitizeString(in.Note),
			AttachmentURL: attachment,
		})

		req.AdminState = m.State()
		req.UpdatedAt = s.now()

		return s.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.Requests.Update(txCtx, req); err != nil {
				return fmt.Errorf("update request: %w", err)
			}
			return s.appendHistory(txCtx, req, string(action), actor.Label(), comment)
		})
	})
	if err != nil {
		s.Logger.Error("Failed to apply admin action", "error", err, "request_id", id, "action", action)
		return nil, err
	}

	s.Logger.Info("Admin action applied", "request_id", id, "action", action, "admin_state", req.AdminState)
	s.publish(ctx, event.NewEvent(event.TypeRequestAdminUpdated, req.ID, actor.Email, map[string]interface{}{
		event.KeyAdminState: req.AdminState,
		event.KeyAction:     action,
		event.KeyRole:       actor.Role,
	}))
	return req, nil
}
