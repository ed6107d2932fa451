package workflow

import (
	"context"

	"github.com/helloviza/approvals/internal/domain/entity"
)

var statusRules = func() StateMachineBuilder[entity.Status] {
	b := NewBuilder[entity.Status]()

	// on_hold accepts the same actions as pending so a held request can
	// still be re-approved or edited by its owner
	for _, from := range []entity.Status{entity.StatusPending, entity.StatusOnHold} {
		b.Configure(from).
			Permit(ActionEdit, entity.StatusPending).
			Permit(ActionRevoke, entity.StatusDeclined).
			Permit(ActionApprove, entity.StatusApproved).
			Permit(ActionDecline, entity.StatusDeclined).
			Permit(ActionPutOnHold, entity.StatusOnHold)
	}
	b.Configure(entity.StatusApproved)
	b.Configure(entity.StatusDeclined)

	return b
}()

// NewStatusMachine returns a machine over the requester/approver status axis
func NewStatusMachine(initial entity.Status) StateMachine[entity.Status] {
	return statusRules.Build(initial)
}

// NewAdminMachine returns a machine over the admin axis of req. Every admin
// action is guarded on req being approved; a failed guard yields ErrGuardFailed.
func NewAdminMachine(req *entity.ApprovalRequest) StateMachine[entity.AdminState] {
	approved := func(ctx context.Context) bool {
		return req.Status == entity.StatusApproved
	}

	b := NewBuilder[entity.AdminState]()
	for _, from := range []entity.AdminState{entity.AdminStatePending, entity.AdminStateAssigned, entity.AdminStateOnHold} {
		b.Configure(from).
			PermitIf(ActionAssign, entity.AdminStateAssigned, approved).
			PermitIf(ActionHold, entity.AdminStateOnHold, approved).
			PermitIf(ActionUnderProcess, entity.AdminStateOnHold, approved).
			PermitIf(ActionDone, entity.AdminStateDone, approved).
			PermitIf(ActionCancel, entity.AdminStateCancelled, approved)
	}
	b.Configure(entity.AdminStateDone)
	b.Configure(entity.AdminStateCancelled)

	return b.Build(req.NormalizedAdminState())
}

// AvailableActions returns exactly the actions a client may offer role for req
func AvailableActions(ctx context.Context, role entity.Role, req *entity.ApprovalRequest) []Action {
	if req == nil || !req.Status.IsValid() {
		return []Action{}
	}

	switch role {
	case entity.RoleRequester:
		return filterActions(NewStatusMachine(req.Status).PermittedActions(ctx), func(a Action) bool {
			return a == ActionEdit || a == ActionRevoke
		})
	case entity.RoleApprover:
		return filterActions(NewStatusMachine(req.Status).PermittedActions(ctx), Action.IsApproverAction)
	case entity.RoleAdmin:
		if !req.NormalizedAdminState().IsValid() {
			return []Action{}
		}
		return NewAdminMachine(req).PermittedActions(ctx)
	default:
		return []Action{}
	}
}

func filterActions(actions []Action, keep func(Action) bool) []Action {
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}
