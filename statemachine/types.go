package statemachine

import (
	"context"
	"slices"
)

// Hook runs when a state is entered or exited. For an enter hook peer is the
// state being left ("" for the initial entry); for an exit hook it is the
// destination state.
type Hook[S, R any] func(ctx context.Context, peer string, stateCtx *S, rootCtx *R) error

// Effect is a side effect bound to an event.
type Effect[S, R any] func(ctx context.Context, stateCtx *S, rootCtx *R, data any) error

// ActionKind tells which parts of an Action are set.
type ActionKind int

const (
	// ActionInvalid is the kind of the zero Action. It is rejected at registration.
	ActionInvalid ActionKind = iota
	// ActionTransition moves to a target and has no effect.
	ActionTransition
	// ActionEffect runs an effect and stays in the same state.
	ActionEffect
	// ActionTransitionWithEffect runs an effect and then moves to a target.
	ActionTransitionWithEffect
)

func (k ActionKind) String() string {
	switch k {
	case ActionTransition:
		return "transition"
	case ActionEffect:
		return "effect"
	case ActionTransitionWithEffect:
		return "transition_with_effect"
	default:
		return "invalid"
	}
}

// Action binds an event to a target state, an effect, or both.
// Use Goto, Do or GotoAndDo to create one.
type Action[S, R any] struct {
	kind       ActionKind
	event      string
	target     string
	effect     Effect[S, R]
	effectName string
}

// Goto creates an action that moves to target when event is triggered.
func Goto[S, R any](event, target string) Action[S, R] {
	if target == "" {
		return Action[S, R]{event: event}
	}

	return Action[S, R]{kind: ActionTransition, event: event, target: target}
}

// Do creates an action that runs effect when event is triggered, without
// leaving the current state.
func Do[S, R any](event string, effect Effect[S, R]) Action[S, R] {
	if effect == nil {
		return Action[S, R]{event: event}
	}

	return Action[S, R]{kind: ActionEffect, event: event, effect: effect}
}

// GotoAndDo creates an action that runs effect and then moves to target.
func GotoAndDo[S, R any](event, target string, effect Effect[S, R]) Action[S, R] {
	switch {
	case effect == nil:
		return Goto[S, R](event, target)
	case target == "":
		return Do(event, effect)
	default:
		return Action[S, R]{kind: ActionTransitionWithEffect, event: event, target: target, effect: effect}
	}
}

// Named returns a copy of the action whose effect carries a name. The name
// shows up in Describe, logs and diagrams.
func (a Action[S, R]) Named(name string) Action[S, R] {
	a.effectName = name

	return a
}

func (a Action[S, R]) Kind() ActionKind {
	return a.kind
}

func (a Action[S, R]) Event() string {
	return a.event
}

// Target returns the destination state, if the action has one.
func (a Action[S, R]) Target() (string, bool) {
	return a.target, a.kind == ActionTransition || a.kind == ActionTransitionWithEffect
}

// Effect returns the side effect, if the action has one.
func (a Action[S, R]) Effect() (Effect[S, R], bool) {
	return a.effect, a.kind == ActionEffect || a.kind == ActionTransitionWithEffect
}

func (a Action[S, R]) EffectName() string {
	return a.effectName
}

// State is a named node of the machine.
type State[S, R any] struct {
	Name    string
	OnEnter Hook[S, R]
	OnExit  Hook[S, R]
	Actions []Action[S, R]

	// Context is handed to this state's own hooks and effects. A nil Context
	// is replaced by a fresh zero value when the state is registered.
	Context *S
}

// Match returns the actions bound to event, in declaration order.
func (s State[S, R]) Match(event string) []Action[S, R] {
	var matches []Action[S, R]

	for _, action := range s.Actions {
		if action.event == event {
			matches = append(matches, action)
		}
	}

	return matches
}

// Targets returns the distinct target states declared by the state, in
// declaration order.
func (s State[S, R]) Targets() []string {
	var targets []string

	for _, action := range s.Actions {
		if target, ok := action.Target(); ok && !slices.Contains(targets, target) {
			targets = append(targets, target)
		}
	}

	return targets
}

// HasTarget reports whether any action of the state moves to name.
func (s State[S, R]) HasTarget(name string) bool {
	for _, action := range s.Actions {
		if target, ok := action.Target(); ok && target == name {
			return true
		}
	}

	return false
}

// clone copies the action slice so later changes by the caller do not leak
// into the registry. The context pointer is shared on purpose: it is live.
func (s State[S, R]) clone() State[S, R] {
	s.Actions = slices.Clone(s.Actions)

	return s
}
