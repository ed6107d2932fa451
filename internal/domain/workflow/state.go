package workflow

// StateType is the constraint satisfied by the request's state axes
// (entity.Status and entity.AdminState).
type StateType interface {
	~string
	IsValid() bool
}
