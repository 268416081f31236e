package statemachine

import (
	"fmt"
	"slices"

	"facette.io/natsort"
)

// registry holds the states of a single machine. It is never shared: every
// state going in or out is copied.
type registry[S, R any] struct {
	states map[string]State[S, R]
}

func newRegistry[S, R any]() *registry[S, R] {
	return &registry[S, R]{
		states: make(map[string]State[S, R]),
	}
}

// register validates the whole batch first and only then inserts it, so a
// rejected batch leaves the registry untouched.
func (r *registry[S, R]) register(batch []State[S, R]) error {
	err := r.validate(batch)
	if err != nil {
		return err
	}

	for _, state := range batch {
		stored := state.clone()
		if stored.Context == nil {
			stored.Context = new(S)
		}

		r.states[stored.Name] = stored
	}

	return nil
}

func (r *registry[S, R]) validate(batch []State[S, R]) error {
	known := make(map[string]bool, len(r.states)+len(batch))

	for name := range r.states {
		known[name] = true
	}

	for _, state := range batch {
		if state.Name == "" {
			return ErrStateNameRequired
		}

		known[state.Name] = true
	}

	// Targets are checked in declaration order so the reported target is stable.
	var targets []string

	for _, state := range batch {
		for idx, action := range state.Actions {
			if action.Kind() == ActionInvalid {
				return WrapStateError(state.Name,
					fmt.Errorf("%w: action %d (event %q)", ErrInvalidAction, idx, action.Event()))
			}

			if target, ok := action.Target(); ok && !slices.Contains(targets, target) {
				targets = append(targets, target)
			}
		}
	}

	for _, target := range targets {
		if known[target] {
			continue
		}

		var offenders []string

		for _, state := range batch {
			if state.HasTarget(target) {
				offenders = append(offenders, state.Name)
			}
		}

		return &DanglingTargetError{
			States: offenders,
			Target: target,
		}
	}

	return nil
}

func (r *registry[S, R]) remove(name string) {
	delete(r.states, name)
}

func (r *registry[S, R]) get(name string) (State[S, R], bool) {
	state, ok := r.states[name]
	if !ok {
		return State[S, R]{}, false
	}

	return state.clone(), true
}

func (r *registry[S, R]) has(name string) bool {
	_, ok := r.states[name]

	return ok
}

// names returns the registered state names in natural order (STATE2 before STATE10).
func (r *registry[S, R]) names() []string {
	names := make([]string, 0, len(r.states))
	for name := range r.states {
		names = append(names, name)
	}

	natsort.Sort(names)

	return names
}
