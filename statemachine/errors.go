package statemachine

import (
	"errors"
	"fmt"
	"strings"
)

// Predefined error types.
var (
	// ErrDanglingTarget indicates that an action targets a state that is neither
	// registered nor part of the same registration batch.
	ErrDanglingTarget = errors.New("target state does not exist")
	// ErrMissingInitialState indicates that the configured initial state is not registered.
	ErrMissingInitialState = errors.New("initial state does not exist, add that state before initializing")
	// ErrUnknownTarget indicates a transition towards a state that is not registered.
	ErrUnknownTarget = errors.New("target state is not registered")
	// ErrIllegalTransition indicates a transition the current state does not declare.
	ErrIllegalTransition = errors.New("transition is not declared by the current state")
	// ErrNotInitialized indicates an operation that needs Init to have succeeded.
	ErrNotInitialized = errors.New("state machine is not initialized")
	// ErrAlreadyInitialized indicates a second call to Init.
	ErrAlreadyInitialized = errors.New("state machine is already initialized")
	// ErrStateNotFound indicates that the current state was removed from the registry.
	ErrStateNotFound = errors.New("state not found")
	// ErrInvalidAction indicates an action with neither a target nor an effect.
	ErrInvalidAction = errors.New("action must declare a target, an effect, or both")
	// ErrStateNameRequired indicates that a state name is required.
	ErrStateNameRequired = errors.New("state name is required")

	// ErrDuplicateStateName indicates that a definition declares a state twice.
	ErrDuplicateStateName = errors.New("duplicate state name")
	// ErrStateRequired indicates that a definition has no states.
	ErrStateRequired = errors.New("at least one state is required")
	// ErrEventRequired indicates an action definition without an event.
	ErrEventRequired = errors.New("action event is required")
	// ErrUnknownEffect indicates an effect name missing from the catalog.
	ErrUnknownEffect = errors.New("unknown effect")
	// ErrUnknownHook indicates a hook name missing from the catalog.
	ErrUnknownHook = errors.New("unknown hook")
	// ErrNoDefinitionLoader indicates that no definition loader is registered.
	ErrNoDefinitionLoader = errors.New("no definition loader registered; use SetDefinitionLoader() or provide a file path")
)

// DanglingTargetError reports the states of a batch that point at a missing target.
type DanglingTargetError struct {
	States []string
	Target string
}

func (e *DanglingTargetError) Error() string {
	return fmt.Sprintf("states [%s] have a target state %q that does not exist",
		strings.Join(e.States, ","), e.Target)
}

func (e *DanglingTargetError) Unwrap() error {
	return ErrDanglingTarget
}

// StateError wraps an error with state context.
type StateError struct {
	State string
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state %s: %v", e.State, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// TransitionError wraps an error with transition context.
type TransitionError struct {
	From string
	To   string
	Err  error
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("transition from %s: %v", e.From, e.Err)
	}

	return fmt.Sprintf("transition %s -> %s: %v", e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// WrapStateError wraps an error with state context.
func WrapStateError(state string, err error) error {
	if err == nil {
		return nil
	}

	return &StateError{
		State: state,
		Err:   err,
	}
}

// WrapTransitionError wraps an error with transition context.
func WrapTransitionError(from, to string, err error) error {
	if err == nil {
		return nil
	}

	return &TransitionError{
		From: from,
		To:   to,
		Err:  err,
	}
}
