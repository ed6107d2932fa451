package workflow

import (
	"context"
	"fmt"
)

// GuardFunc is a function that evaluates whether a transition should be allowed
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder[S StateType] interface {
	// Configure returns a state configuration for the given state
	Configure(state S) StateConfiguration[S]

	// Build creates a new state machine instance with the given initial state
	Build(initialState S) StateMachine[S]
}

// StateConfiguration configures transitions for a specific state
type StateConfiguration[S StateType] interface {
	// Permit allows an action to transition to the target state
	Permit(action Action, toState S) StateConfiguration[S]

	// PermitIf allows an action to transition to the target state if the guard condition passes
	PermitIf(action Action, toState S, guard GuardFunc) StateConfiguration[S]
}

type transition[S StateType] struct {
	toState S
	guard   GuardFunc
}

type stateConfig[S StateType] struct {
	fromState   S
	transitions map[Action][]transition[S]
	// declaration order, so PermittedActions is stable
	order []Action
}

type stateMachineBuilder[S StateType] struct {
	configurations map[S]*stateConfig[S]
}

type stateMachine[S StateType] struct {
	currentState   S
	configurations map[S]*stateConfig[S]
}

// NewBuilder creates a new state machine builder
func NewBuilder[S StateType]() StateMachineBuilder[S] {
	return &stateMachineBuilder[S]{
		configurations: make(map[S]*stateConfig[S]),
	}
}

// Configure returns a state configuration for the given state
func (b *stateMachineBuilder[S]) Configure(state S) StateConfiguration[S] {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", string(state)))
	}

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig[S]{
			fromState:   state,
			transitions: make(map[Action][]transition[S]),
		}
		b.configurations[state] = config
	}

	return config
}

// Build creates a new state machine instance with the given initial state
func (b *stateMachineBuilder[S]) Build(initialState S) StateMachine[S] {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", string(initialState)))
	}

	// Copy so machines built from one builder never share transition tables
	configsCopy := make(map[S]*stateConfig[S], len(b.configurations))
	for state, config := range b.configurations {
		transitionsCopy := make(map[Action][]transition[S], len(config.transitions))
		for action, transitions := range config.transitions {
			transitionsCopy[action] = append([]transition[S]{}, transitions...)
		}
		configsCopy[state] = &stateConfig[S]{
			fromState:   state,
			transitions: transitionsCopy,
			order:       append([]Action{}, config.order...),
		}
	}

	return &stateMachine[S]{
		currentState:   initialState,
		configurations: configsCopy,
	}
}

// Permit allows an action to transition to the target state
func (c *stateConfig[S]) Permit(action Action, toState S) StateConfiguration[S] {
	return c.PermitIf(action, toState, nil)
}

// PermitIf allows an action to transition to the target state if the guard condition passes
func (c *stateConfig[S]) PermitIf(action Action, toState S, guard GuardFunc) StateConfiguration[S] {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", string(toState)))
	}

	if _, seen := c.transitions[action]; !seen {
		c.order = append(c.order, action)
	}
	c.transitions[action] = append(c.transitions[action], transition[S]{
		toState: toState,
		guard:   guard,
	})

	return c
}

// State returns the current state
func (m *stateMachine[S]) State() S {
	return m.currentState
}

// CanFire returns true if the action is permitted in the current state and
// at least one of its guards passes
func (m *stateMachine[S]) CanFire(ctx context.Context, action Action) bool {
	_, ok := m.resolve(ctx, action)
	return ok
}

// Fire attempts to execute the action, transitioning to the new state if allowed
func (m *stateMachine[S]) Fire(ctx context.Context, action Action) error {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return fmt.Errorf("%w: cannot %s from state %s (no configuration)", ErrInvalidTransition, action, string(m.currentState))
	}

	if transitions := config.transitions[action]; len(transitions) == 0 {
		return fmt.Errorf("%w: cannot %s from state %s", ErrInvalidTransition, action, string(m.currentState))
	}

	next, ok := m.resolve(ctx, action)
	if !ok {
		return fmt.Errorf("%w: %s from state %s", ErrGuardFailed, action, string(m.currentState))
	}

	m.currentState = next
	return nil
}

// PermittedActions returns the actions that can be fired in the current
// state, in the order they were configured
func (m *stateMachine[S]) PermittedActions(ctx context.Context) []Action {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return []Action{}
	}

	actions := make([]Action, 0, len(config.order))
	for _, action := range config.order {
		if _, ok := m.resolve(ctx, action); ok {
			actions = append(actions, action)
		}
	}

	return actions
}

// resolve returns the target state of the first transition whose guard passes
func (m *stateMachine[S]) resolve(ctx context.Context, action Action) (S, bool) {
	var zero S
	config, exists := m.configurations[m.currentState]
	if !exists {
		return zero, false
	}

	for _, t := range config.transitions[action] {
		if t.guard == nil || t.guard(ctx) {
			return t.toState, true
		}
	}

	return zero, false
}
