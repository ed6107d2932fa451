package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequestCreated      Type = "request.created"
	TypeRequestEdited       Type = "request.edited"
	TypeRequestRevoked      Type = "request.revoked"
	TypeRequestDecided      Type = "request.decided"
	TypeRequestAdminUpdated Type = "request.admin_updated"
	TypeAttachmentUploaded  Type = "attachment.uploaded"
)

// AllTypes lists every event type, in lifecycle order
var AllTypes = []Type{
	TypeRequestCreated,
	TypeRequestEdited,
	TypeRequestRevoked,
	TypeRequestDecided,
	TypeRequestAdminUpdated,
	TypeAttachmentUploaded,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}
