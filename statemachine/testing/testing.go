// Package testing provides testing utilities for state machines.
//
//nolint:varnamelen // short names idiomatic
package testing

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/stretchr/testify/require"
)

// EntryKind tells what a TraceEntry recorded.
type EntryKind string

const (
	EntryEnter   EntryKind = "enter"
	EntryExit    EntryKind = "exit"
	EntryEffect  EntryKind = "effect"
	EntryPublish EntryKind = "publish"
)

// TraceEntry records a single step in execution.
type TraceEntry struct {
	Timestamp time.Time
	Kind      EntryKind
	State     string
	Peer      string // from-state of an enter, to-state of an exit
	Event     string // event of an effect
	Error     error
}

// String renders the entry the way AssertSequence expects it:
// "enter:B<-A", "exit:A->B", "effect:A(event)" or "publish:B".
func (e TraceEntry) String() string {
	switch e.Kind {
	case EntryEnter:
		return fmt.Sprintf("enter:%s<-%s", e.State, e.Peer)
	case EntryExit:
		return fmt.Sprintf("exit:%s->%s", e.State, e.Peer)
	case EntryEffect:
		return fmt.Sprintf("effect:%s(%s)", e.State, e.Event)
	default:
		return fmt.Sprintf("%s:%s", e.Kind, e.State)
	}
}

// Recorder collects trace entries from instrumented states and observers.
type Recorder struct {
	entries []TraceEntry
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(entry TraceEntry) {
	entry.Timestamp = time.Now()
	r.entries = append(r.entries, entry)
}

// Observe is an Observer recording publish entries.
func (r *Recorder) Observe(state string) {
	r.record(TraceEntry{Kind: EntryPublish, State: state})
}

// Entries returns a copy of the recorded entries.
func (r *Recorder) Entries() []TraceEntry {
	return slices.Clone(r.entries)
}

// Lines returns the recorded entries rendered with TraceEntry.String.
func (r *Recorder) Lines() []string {
	lines := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		lines = append(lines, entry.String())
	}

	return lines
}

// Reset drops the recorded entries.
func (r *Recorder) Reset() {
	r.entries = nil
}

// Instrument returns copies of states whose hooks and effects record into r
// before delegating to the original ones.
func Instrument[S, R any](r *Recorder, states ...statemachine.State[S, R]) []statemachine.State[S, R] {
	out := make([]statemachine.State[S, R], 0, len(states))

	for _, state := range states {
		out = append(out, instrumentState(r, state))
	}

	return out
}

func instrumentState[S, R any](r *Recorder, state statemachine.State[S, R]) statemachine.State[S, R] {
	name := state.Name
	onEnter, onExit := state.OnEnter, state.OnExit

	state.OnEnter = func(ctx context.Context, from string, stateCtx *S, rootCtx *R) error {
		var err error
		if onEnter != nil {
			err = onEnter(ctx, from, stateCtx, rootCtx)
		}

		r.record(TraceEntry{Kind: EntryEnter, State: name, Peer: from, Error: err})

		return err
	}

	state.OnExit = func(ctx context.Context, to string, stateCtx *S, rootCtx *R) error {
		var err error
		if onExit != nil {
			err = onExit(ctx, to, stateCtx, rootCtx)
		}

		r.record(TraceEntry{Kind: EntryExit, State: name, Peer: to, Error: err})

		return err
	}

	actions := make([]statemachine.Action[S, R], 0, len(state.Actions))

	for _, action := range state.Actions {
		effect, ok := action.Effect()
		if !ok {
			actions = append(actions, action)

			continue
		}

		event := action.Event()
		target, _ := action.Target()

		wrapped := func(ctx context.Context, stateCtx *S, rootCtx *R, data any) error {
			err := effect(ctx, stateCtx, rootCtx, data)
			r.record(TraceEntry{Kind: EntryEffect, State: name, Event: event, Error: err})

			return err
		}

		actions = append(actions, statemachine.GotoAndDo(event, target, wrapped).Named(action.EffectName()))
	}

	state.Actions = actions

	return state
}

// TestMachine wraps a Machine whose states are instrumented by a Recorder.
type TestMachine[S, R any] struct {
	*statemachine.Machine[S, R]

	t        *testing.T
	recorder *Recorder
}

// NewTestMachine creates a machine from cfg with every state instrumented and
// a recording observer subscribed. Metrics are off unless opts enable them.
func NewTestMachine[S, R any](
	t *testing.T, cfg statemachine.Config[S, R], opts ...statemachine.Option,
) *TestMachine[S, R] {
	t.Helper()

	recorder := NewRecorder()
	cfg.States = Instrument(recorder, cfg.States...)

	m, err := statemachine.New(cfg, append([]statemachine.Option{statemachine.WithMetrics(false)}, opts...)...)
	require.NoError(t, err, "failed to create machine")

	m.States().Subscribe(recorder.Observe)

	return &TestMachine[S, R]{
		Machine:  m,
		t:        t,
		recorder: recorder,
	}
}

// NewTestMachineFromDefinition builds a test machine from a declarative definition.
func NewTestMachineFromDefinition[S, R any](
	t *testing.T, def *statemachine.Definition, catalog *statemachine.Catalog[S, R], root R,
) *TestMachine[S, R] {
	t.Helper()

	require.NoError(t, def.Validate(), "invalid definition")

	states, err := statemachine.BuildStates(def, catalog)
	require.NoError(t, err, "failed to build states")

	return NewTestMachine(t, statemachine.Config[S, R]{
		Name:         def.Name,
		InitialState: def.InitialState,
		States:       states,
		RootContext:  root,
		Extra:        def.Extra,
	})
}

// Recorder returns the recorder of the machine.
func (tm *TestMachine[S, R]) Recorder() *Recorder {
	return tm.recorder
}

// MustInit initializes the machine and fails the test on error.
func (tm *TestMachine[S, R]) MustInit() {
	tm.t.Helper()

	require.NoError(tm.t, tm.Init(context.Background()), "init failed")
}

// MustTrigger triggers event and fails the test on error.
func (tm *TestMachine[S, R]) MustTrigger(event string, data any) {
	tm.t.Helper()

	require.NoError(tm.t, tm.Trigger(context.Background(), event, data), "trigger %q failed", event)
}

// TriggerAll triggers each event in order with no data, failing on the first error.
func (tm *TestMachine[S, R]) TriggerAll(events ...string) {
	tm.t.Helper()

	for _, event := range events {
		tm.MustTrigger(event, nil)
	}
}

// Trace returns the rendered trace so far.
func (tm *TestMachine[S, R]) Trace() []string {
	return tm.recorder.Lines()
}

// Snapshot captures what matchers look at.
func (tm *TestMachine[S, R]) Snapshot() Snapshot {
	return Snapshot{
		Trace:   tm.recorder.Entries(),
		Current: tm.CurrentStateName(),
	}
}

// AssertSequence checks the full rendered trace.
func (tm *TestMachine[S, R]) AssertSequence(expected ...string) {
	tm.t.Helper()

	require.Equal(tm.t, expected, tm.Trace(), "unexpected trace")
}

// AssertCurrentState checks the current state.
func (tm *TestMachine[S, R]) AssertCurrentState(expected string) {
	tm.t.Helper()

	require.Equal(tm.t, expected, tm.CurrentStateName(), "current state should be '%s'", expected)
}

// AssertStateVisited checks if a state was entered.
func (tm *TestMachine[S, R]) AssertStateVisited(name string) {
	tm.t.Helper()

	tm.AssertMatches(StateWasVisited(name))
}

// AssertTransitionTaken checks if a specific transition completed.
func (tm *TestMachine[S, R]) AssertTransitionTaken(from, to string) {
	tm.t.Helper()

	tm.AssertMatches(TransitionWasTaken(from, to))
}

// AssertMatches checks every matcher against the current snapshot.
func (tm *TestMachine[S, R]) AssertMatches(matchers ...Matcher) {
	tm.t.Helper()

	snapshot := tm.Snapshot()

	for _, matcher := range matchers {
		require.NoError(tm.t, matcher.Match(snapshot), matcher.Description())
	}
}
