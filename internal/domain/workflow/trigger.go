package workflow

// Action is a named operation that can cause a state transition.
// Values match the wire action names used by the HTTP routes.
type Action string

// Requester actions
const (
	ActionEdit   Action = "edit"
	ActionRevoke Action = "revoked"
)

// Approver actions
const (
	ActionApprove   Action = "approved"
	ActionDecline   Action = "declined"
	ActionPutOnHold Action = "on_hold"
)

// Admin actions. ActionUnderProcess has its own route and history action but
// lands in the same on_hold state as ActionHold.
const (
	ActionAssign       Action = "assign"
	ActionHold         Action = "on-hold"
	ActionUnderProcess Action = "under-process"
	ActionDone         Action = "done"
	ActionCancel       Action = "cancel"
)

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}

// IsApproverAction reports whether the action is an approver decision
func (a Action) IsApproverAction() bool {
	switch a {
	case ActionApprove, ActionDecline, ActionPutOnHold:
		return true
	default:
		return false
	}
}

// IsAdminAction reports whether the action is an admin processing action
func (a Action) IsAdminAction() bool {
	switch a {
	case ActionAssign, ActionHold, ActionUnderProcess, ActionDone, ActionCancel:
		return true
	default:
		return false
	}
}
