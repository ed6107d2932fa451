package workflow

import "context"

// StateMachine tracks the current state and validates transitions
type StateMachine[S StateType] interface {
	// State returns the current state
	State() S

	// CanFire returns true if the action is permitted in the current state
	CanFire(ctx context.Context, action Action) bool

	// Fire attempts to execute the action, transitioning to the new state if allowed
	Fire(ctx context.Context, action Action) error

	// PermittedActions returns all actions that can be fired in the current state
	PermittedActions(ctx context.Context) []Action
}
