package entity

// Status is the requester/approver-facing state of an approval request
type Status string

// Status constants for ApprovalRequest
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
	StatusOnHold   Status = "on_hold"
)

// IsValid returns true if the status is one of the defined constants
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDeclined, StatusOnHold:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// AdminState is the admin-facing processing state, tracked once a request is approved
type AdminState string

// AdminState constants for ApprovalRequest
const (
	AdminStatePending   AdminState = "pending"
	AdminStateAssigned  AdminState = "assigned"
	AdminStateOnHold    AdminState = "on_hold"
	AdminStateDone      AdminState = "done"
	AdminStateCancelled AdminState = "cancelled"
)

// IsValid returns true if the admin state is one of the defined constants
func (s AdminState) IsValid() bool {
	switch s {
	case AdminStatePending, AdminStateAssigned, AdminStateOnHold, AdminStateDone, AdminStateCancelled:
		return true
	default:
		return false
	}
}

// IsClosed reports whether the admin state is terminal
func (s AdminState) IsClosed() bool {
	return s == AdminStateDone || s == AdminStateCancelled
}

// String returns the string representation of the admin state
func (s AdminState) String() string {
	return string(s)
}

// ServiceKind classifies a request by the service of its first cart item
type ServiceKind string

// ServiceKind constants
const (
	ServiceFlight  ServiceKind = "flight"
	ServiceHotel   ServiceKind = "hotel"
	ServiceVisa    ServiceKind = "visa"
	ServiceCab     ServiceKind = "cab"
	ServiceRail    ServiceKind = "rail"
	ServiceHoliday ServiceKind = "holiday"
	ServiceMICE    ServiceKind = "mice"
	ServiceOther   ServiceKind = "other"
)

// Label returns the display label used in exports
func (k ServiceKind) Label() string {
	switch k {
	case ServiceFlight:
		return "Flight"
	case ServiceHotel:
		return "Hotel"
	case ServiceVisa:
		return "Visa"
	case ServiceCab:
		return "Cab"
	case ServiceRail:
		return "Rail"
	case ServiceHoliday:
		return "Holiday"
	case ServiceMICE:
		return "MICE"
	default:
		return "Other"
	}
}

// Role identifies which workspace role an actor holds
type Role string

// Role constants
const (
	RoleAdmin     Role = "L0" // workspace leader / admin
	RoleRequester Role = "L1" // frontliner creating requests
	RoleApprover  Role = "L2" // manager approving requests
)

// IsValid returns true if the role is one of the defined constants
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleRequester, RoleApprover:
		return true
	default:
		return false
	}
}

// AdminEquivalent reports whether the role may see unmasked cost fields
func (r Role) AdminEquivalent() bool {
	return r == RoleAdmin
}

// History action constants
const (
	HistoryActionCreated = "created"
	HistoryActionEdited  = "edited"
	HistoryActionRevoked = "revoked"
)
