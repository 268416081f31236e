package statemachine

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	m, err := New(Config[visits, journal]{}, WithMetrics(false))
	require.NoError(t, err)

	assert.Equal(t, DefaultName, m.Name())
	assert.False(t, m.Initialized())
	assert.Empty(t, m.CurrentStateName())
	assert.Empty(t, m.StateNames())

	_, err = uuid.Parse(m.ID())
	require.NoError(t, err)

	other, err := New(Config[visits, journal]{}, WithMetrics(false))
	require.NoError(t, err)
	assert.NotEqual(t, m.ID(), other.ID())
}

func TestNewRejectsInvalidStates(t *testing.T) {
	t.Parallel()

	_, err := New(Config[visits, journal]{
		States: []testState{tracked(DefaultInitialState, goTo("go", "NOWHERE"))},
	}, WithMetrics(false))
	require.ErrorIs(t, err, ErrDanglingTarget)
}

func TestBasicScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	m, err := newBasicMachine()
	require.NoError(t, err)

	seen, _ := collect(m.States())

	require.NoError(t, m.Init(ctx))
	assert.Equal(t, DefaultInitialState, m.CurrentStateName())

	require.NoError(t, m.Trigger(ctx, "foo", nil))
	assert.Equal(t, "FOO", m.CurrentStateName())

	require.NoError(t, m.Trigger(ctx, "bar", nil))
	assert.Equal(t, "BAR", m.CurrentStateName())

	require.NoError(t, m.Trigger(ctx, "end", nil))
	assert.Equal(t, "END", m.CurrentStateName())

	// END declares nothing.
	require.NoError(t, m.Trigger(ctx, "foo", nil))
	assert.Equal(t, "END", m.CurrentStateName())

	assert.Equal(t, []string{DefaultInitialState, "FOO", "BAR", "END"}, *seen)
	assert.Equal(t, []string{
		"enter:DEFAULT<-",
		"exit:DEFAULT->FOO",
		"enter:FOO<-DEFAULT",
		"exit:FOO->BAR",
		"enter:BAR<-FOO",
		"exit:BAR->END",
		"enter:END<-BAR",
	}, m.Context().Entries)
}

func TestEffectOnlyActionStaysInState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	m, err := newBasicMachine()
	require.NoError(t, err)
	require.NoError(t, m.Init(ctx))
	require.NoError(t, m.Trigger(ctx, "bar", nil))

	seen, _ := collect(m.States())

	require.NoError(t, m.Trigger(ctx, "act", nil))

	assert.Equal(t, "BAR", m.CurrentStateName())
	// Only the state replayed on subscribe.
	assert.Equal(t, []string{"BAR"}, *seen, "an internal action publishes nothing")

	entries := m.Context().Entries
	assert.Equal(t, "act", entries[len(entries)-1])

	bar, ok := m.State("BAR")
	require.True(t, ok)
	assert.Equal(t, 1, bar.Context.Enters)
	assert.Equal(t, 0, bar.Context.Exits)
}

func TestAddStatesIsAtomic(t *testing.T) {
	t.Parallel()

	m, err := newBasicMachine()
	require.NoError(t, err)

	before := m.StateNames()

	err = m.AddStates(
		tracked("X", goTo("go", "MISSING")),
		tracked("Y", goTo("go", DefaultInitialState)),
		tracked("Z", goTo("go", "MISSING")),
	)
	require.ErrorIs(t, err, ErrDanglingTarget)

	var dangling *DanglingTargetError
	require.ErrorAs(t, err, &dangling)
	assert.Equal(t, []string{"X", "Z"}, dangling.States)
	assert.Equal(t, "MISSING", dangling.Target)
	assert.Equal(t, `states [X,Z] have a target state "MISSING" that does not exist`, err.Error())

	assert.Equal(t, before, m.StateNames())

	_, ok := m.State("Y")
	assert.False(t, ok)
}

func TestAddStatesResolvesTargetsWithinBatch(t *testing.T) {
	t.Parallel()

	m, err := New(Config[visits, journal]{}, WithMetrics(false))
	require.NoError(t, err)

	err = m.AddStates(
		tracked("PING", goTo("swap", "PONG")),
		tracked("PONG", goTo("swap", "PING")),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"PING", "PONG"}, m.StateNames())
}

func TestAddStatesOverwritesByName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	m, err := newBasicMachine()
	require.NoError(t, err)

	require.NoError(t, m.AddStates(tracked(DefaultInitialState, goTo("jump", "END"))))
	require.NoError(t, m.Init(ctx))

	require.NoError(t, m.Trigger(ctx, "foo", nil))
	assert.Equal(t, DefaultInitialState, m.CurrentStateName())

	require.NoError(t, m.Trigger(ctx, "jump", nil))
	assert.Equal(t, "END", m.CurrentStateName())
}

func TestAddStatesRejectsInvalidActions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		action testAction
	}{
		{name: "zero value", action: testAction{}},
		{name: "goto without target", action: goTo("go", "")},
		{name: "do without effect", action: do("go", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, err := New(Config[visits, journal]{}, WithMetrics(false))
			require.NoError(t, err)

			err = m.AddStates(tracked("A", tt.action))
			require.ErrorIs(t, err, ErrInvalidAction)

			var stateErr *StateError
			require.ErrorAs(t, err, &stateErr)
			assert.Equal(t, "A", stateErr.State)
			assert.Empty(t, m.StateNames())
		})
	}
}

func TestAddStatesRequiresName(t *testing.T) {
	t.Parallel()

	m, err := New(Config[visits, journal]{}, WithMetrics(false))
	require.NoError(t, err)

	require.ErrorIs(t, m.AddStates(testState{}), ErrStateNameRequired)
}

func TestRegisteredStatesAreCopies(t *testing.T) {
	t.Parallel()

	state := tracked("A", goTo("go", "A"))

	m, err := New(Config[visits, journal]{States: []testState{state}}, WithMetrics(false))
	require.NoError(t, err)

	state.Actions[0] = goTo("go", "ELSEWHERE")

	got, ok := m.State("A")
	require.True(t, ok)

	target, _ := got.Actions[0].Target()
	assert.Equal(t, "A", target)

	got.Actions = nil

	again, _ := m.State("A")
	assert.Len(t, again.Actions, 1)
}

func TestInitEntersInitialStateOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	m, err := newBasicMachine()
	require.NoError(t, err)

	seen, _ := collect(m.States())

	require.NoError(t, m.Init(ctx))

	assert.True(t, m.Initialized())
	assert.Equal(t, []string{DefaultInitialState}, *seen)
	assert.Equal(t, []string{"enter:DEFAULT<-"}, m.Context().Entries)

	state, err := m.CurrentState()
	require.NoError(t, err)
	assert.Equal(t, DefaultInitialState, state.Name)
	assert.Equal(t, 1, state.Context.Enters)
	assert.Equal(t, 0, state.Context.Exits)

	require.ErrorIs(t, m.Init(ctx), ErrAlreadyInitialized)
	assert.Equal(t, []string{DefaultInitialState}, *seen)
}

func TestInitCustomInitialState(t *testing.T) {
	t.Parallel()

	m, err := New(Config[visits, journal]{
		InitialState: "BAR",
		States:       basicStates(),
	}, WithMetrics(false))
	require.NoError(t, err)

	require.NoError(t, m.Init(context.Background()))
	assert.Equal(t, "BAR", m.CurrentStateName())
}

func TestInitMissingInitialState(t *testing.T) {
	t.Parallel()

	m, err := New(Config[visits, journal]{
		States: []testState{tracked("ONLY")},
	}, WithMetrics(false))
	require.NoError(t, err)

	seen, _ := collect(m.States())

	err = m.Init(context.Background())
	require.ErrorIs(t, err, ErrMissingInitialState)
	assert.Contains(t, err.Error(), `"DEFAULT"`)

	assert.False(t, m.Initialized())
	assert.Empty(t, *seen)

	_, err = m.CurrentState()
	require.ErrorIs(t, err, ErrNotInitialized)
	assert.Nil(t, m.AvailableTransitions())
}

func TestInitEnterHookFailure(t *testing.T) {
	t.Parallel()

	start := tracked(DefaultInitialState)
	start.OnEnter = func(context.Context, string, *visits, *journal) error {
		return errBoom
	}

	m, err := New(Config[visits, journal]{States: []testState{start}}, WithMetrics(false))
	require.NoError(t, err)

	seen, _ := collect(m.States())

	err = m.Init(context.Background())
	require.ErrorIs(t, err, errBoom)
	assert.False(t, m.Initialized())
	assert.Empty(t, m.CurrentStateName())
	assert.Empty(t, *seen)
}

func TestTriggerBeforeInit(t *testing.T) {
	t.Parallel()

	m, err := newBasicMachine()
	require.NoError(t, err)

	require.ErrorIs(t, m.Trigger(context.Background(), "foo", nil), ErrNotInitialized)
}

func TestTransitionOrdering(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	var order []string

	hook := func(format string) Hook[visits, journal] {
		return func(_ context.Context, peer string, _ *visits, _ *journal) error {
			order = append(order, format+peer)

			return nil
		}
	}

	m, err := New(Config[visits, journal]{
		States: []testState{
			{Name: "A", OnExit: hook("exit:A->"), Actions: []testAction{goTo("go", "B")}},
			{Name: "B", OnEnter: hook("enter:B<-")},
		},
		InitialState: "A",
	}, WithMetrics(false))
	require.NoError(t, err)

	require.NoError(t, m.Init(ctx))

	m.States().Subscribe(func(state string) {
		order = append(order, "publish:"+state)
	})

	order = nil

	require.NoError(t, m.Trigger(ctx, "go", nil))
	assert.Equal(t, []string{"exit:A->B", "enter:B<-A", "publish:B"}, order)
}

func TestTriggerRunsEveryMatchingEffect(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name     string
		actions  []testAction
		wantLog  []string
		expected string
	}{
		{
			name:     "target first",
			actions:  []testAction{goTo("go", "B"), do("go", note("one"))},
			wantLog:  []string{"one"},
			expected: "B",
		},
		{
			name:     "effect first decides no move",
			actions:  []testAction{do("go", note("one")), goTo("go", "B")},
			wantLog:  []string{"one"},
			expected: "A",
		},
		{
			name: "effects in declaration order",
			actions: []testAction{
				GotoAndDo("go", "C", note("one")),
				do("go", note("two")),
				GotoAndDo("go", "B", note("three")),
			},
			wantLog:  []string{"one", "two", "three"},
			expected: "C",
		},
		{
			name:     "first target wins",
			actions:  []testAction{goTo("go", "C"), goTo("go", "B")},
			expected: "C",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, err := New(Config[visits, journal]{
				InitialState: "A",
				States: []testState{
					{Name: "A", Actions: tt.actions},
					{Name: "B"},
					{Name: "C"},
				},
			}, WithMetrics(false))
			require.NoError(t, err)
			require.NoError(t, m.Init(ctx))

			require.NoError(t, m.Trigger(ctx, "go", nil))
			assert.Equal(t, tt.expected, m.CurrentStateName())
			assert.Equal(t, tt.wantLog, m.Context().Entries)
		})
	}
}

func TestEffectReceivesDataAndOwnContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	counter := &visits{Enters: 10}

	var gotData any

	m, err := New(Config[visits, journal]{
		States: []testState{{
			Name:    DefaultInitialState,
			Context: counter,
			Actions: []testAction{
				do("count", func(_ context.Context, s *visits, root *journal, data any) error {
					gotData = data
					s.Exits++
					root.Count++

					return nil
				}),
			},
		}},
	}, WithMetrics(false))
	require.NoError(t, err)
	require.NoError(t, m.Init(ctx))

	require.NoError(t, m.Trigger(ctx, "count", 42))
	require.NoError(t, m.Trigger(ctx, "count", nil))

	assert.Nil(t, gotData)
	assert.Equal(t, 2, counter.Exits)
	assert.Equal(t, 10, counter.Enters)
	assert.Equal(t, 2, m.Context().Count)

	state, _ := m.State(DefaultInitialState)
	assert.Same(t, counter, state.Context)
}

func TestHooksSeeLabels(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	var got []ObservabilityLabels

	hook := func(ctx context.Context, _ string, _ *visits, _ *journal) error {
		got = append(got, GetObservabilityLabels(ctx))

		return nil
	}

	m, err := New(Config[visits, journal]{
		Name:         "labels",
		InitialState: "A",
		States: []testState{
			{Name: "A", OnExit: hook, Actions: []testAction{goTo("go", "B")}},
			{Name: "B", OnEnter: hook},
		},
	}, WithMetrics(false))
	require.NoError(t, err)
	require.NoError(t, m.Init(ctx))
	require.NoError(t, m.Trigger(ctx, "go", nil))

	require.Len(t, got, 2)
	assert.Equal(t, ObservabilityLabels{MachineID: m.ID(), Machine: "labels", CurrentState: "A", Event: "go"}, got[0])
	assert.Equal(t, ObservabilityLabels{MachineID: m.ID(), Machine: "labels", CurrentState: "B", Event: "go"}, got[1])
	assert.Equal(t, ObservabilityLabels{}, GetObservabilityLabels(ctx))
}

func TestIllegalTransitionIsRejected(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	m, err := newBasicMachine()
	require.NoError(t, err)
	require.NoError(t, m.Init(ctx))

	seen, _ := collect(m.States())

	// DEFAULT does not declare END.
	err = m.transition(ctx, "jump", "END")
	require.ErrorIs(t, err, ErrIllegalTransition)

	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, DefaultInitialState, transitionErr.From)
	assert.Equal(t, "END", transitionErr.To)

	assert.Equal(t, DefaultInitialState, m.CurrentStateName())
	assert.Equal(t, []string{DefaultInitialState}, *seen)
	assert.Equal(t, []string{"enter:DEFAULT<-"}, m.Context().Entries)
}

func TestTriggerTowardsRemovedState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	m, err := newBasicMachine()
	require.NoError(t, err)
	require.NoError(t, m.Init(ctx))

	assert.Same(t, m, m.RemoveState("FOO"))

	err = m.Trigger(ctx, "foo", nil)
	require.ErrorIs(t, err, ErrUnknownTarget)
	assert.Equal(t, DefaultInitialState, m.CurrentStateName())

	// Other states are not revalidated.
	_, ok := m.State("BAR")
	assert.True(t, ok)
}

func TestRemoveStateIsNoOpWhenAbsent(t *testing.T) {
	t.Parallel()

	m, err := newBasicMachine()
	require.NoError(t, err)

	before := m.StateNames()
	m.RemoveState("NOPE").RemoveState("")
	assert.Equal(t, before, m.StateNames())
}

func TestRemovingCurrentState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	m, err := newBasicMachine()
	require.NoError(t, err)
	require.NoError(t, m.Init(ctx))

	m.RemoveState(DefaultInitialState)

	_, err = m.CurrentState()
	require.ErrorIs(t, err, ErrStateNotFound)
	require.ErrorIs(t, m.Trigger(ctx, "foo", nil), ErrStateNotFound)
	assert.Nil(t, m.AvailableTransitions())
}

func TestExitHookFailureKeepsState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	states := basicStates()
	states[0].OnExit = func(context.Context, string, *visits, *journal) error {
		return errBoom
	}

	m, err := New(Config[visits, journal]{States: states}, WithMetrics(false))
	require.NoError(t, err)
	require.NoError(t, m.Init(ctx))

	seen, _ := collect(m.States())

	err = m.Trigger(ctx, "foo", nil)
	require.ErrorIs(t, err, errBoom)

	assert.Equal(t, DefaultInitialState, m.CurrentStateName())
	assert.Equal(t, []string{DefaultInitialState}, *seen)
	assert.Equal(t, []string{"enter:DEFAULT<-"}, m.Context().Entries)
}

func TestEnterHookFailureKeepsState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	states := basicStates()
	states[1].OnEnter = func(context.Context, string, *visits, *journal) error {
		return errBoom
	}

	m, err := New(Config[visits, journal]{States: states}, WithMetrics(false))
	require.NoError(t, err)
	require.NoError(t, m.Init(ctx))

	seen, _ := collect(m.States())

	err = m.Trigger(ctx, "foo", nil)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, errBoom, err, "hook errors are returned unchanged")

	assert.Equal(t, DefaultInitialState, m.CurrentStateName())
	assert.Equal(t, []string{DefaultInitialState}, *seen)
	assert.Equal(t, []string{"enter:DEFAULT<-", "exit:DEFAULT->FOO"}, m.Context().Entries)
}

func TestEffectFailureAbortsBeforeHooks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	failing := func(context.Context, *visits, *journal, any) error {
		return errBoom
	}

	states := basicStates()
	states[0].Actions = []testAction{
		GotoAndDo("foo", "FOO", failing),
		do("foo", note("never")),
	}

	m, err := New(Config[visits, journal]{States: states}, WithMetrics(false))
	require.NoError(t, err)
	require.NoError(t, m.Init(ctx))

	err = m.Trigger(ctx, "foo", nil)
	require.True(t, errors.Is(err, errBoom))

	assert.Equal(t, DefaultInitialState, m.CurrentStateName())
	assert.Equal(t, []string{"enter:DEFAULT<-"}, m.Context().Entries)
}

func TestAvailableTransitions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	m, err := newBasicMachine()
	require.NoError(t, err)

	assert.Nil(t, m.AvailableTransitions())

	require.NoError(t, m.Init(ctx))

	actions := m.AvailableTransitions()
	require.Len(t, actions, 2)
	assert.Equal(t, "foo", actions[0].Event())
	assert.Equal(t, "bar", actions[1].Event())

	actions[0] = goTo("foo", "END")

	again := m.AvailableTransitions()
	target, ok := again[0].Target()
	assert.True(t, ok)
	assert.Equal(t, "FOO", target)
}

func TestContextIsSnapshot(t *testing.T) {
	t.Parallel()

	m, err := New(Config[visits, journal]{
		States:      basicStates(),
		RootContext: journal{Count: 7},
	}, WithMetrics(false))
	require.NoError(t, err)

	snapshot := m.Context()
	snapshot.Count = 99

	assert.Equal(t, 7, m.Context().Count)
}

func TestExtraIsPassedThrough(t *testing.T) {
	t.Parallel()

	extra := map[string]any{"owner": "payments"}

	m, err := New(Config[visits, journal]{Extra: extra}, WithMetrics(false))
	require.NoError(t, err)

	extra["owner"] = "changed"

	val, ok := m.Extra("owner")
	require.True(t, ok)
	assert.Equal(t, "payments", val)

	_, ok = m.Extra("missing")
	assert.False(t, ok)
}

func TestStateNamesNaturalOrder(t *testing.T) {
	t.Parallel()

	m, err := New(Config[visits, journal]{
		States: []testState{{Name: "STEP10"}, {Name: "STEP2"}, {Name: "STEP1"}},
	}, WithMetrics(false))
	require.NoError(t, err)

	assert.Equal(t, []string{"STEP1", "STEP2", "STEP10"}, m.StateNames())
}

func TestLateSubscriberReplay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	m, err := newBasicMachine()
	require.NoError(t, err)
	require.NoError(t, m.Init(ctx))

	first, _ := collect(m.States())
	second, _ := collect(m.States())

	assert.Equal(t, []string{DefaultInitialState}, *first)
	assert.Empty(t, *second)

	require.NoError(t, m.Trigger(ctx, "foo", nil))

	assert.Equal(t, []string{DefaultInitialState, "FOO"}, *first)
	assert.Equal(t, []string{"FOO"}, *second)
}

func TestSubscriberBeforeInitSpendsReplay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	m, err := newBasicMachine()
	require.NoError(t, err)

	early, _ := collect(m.States())

	require.NoError(t, m.Init(ctx))

	late, _ := collect(m.States())

	assert.Equal(t, []string{DefaultInitialState}, *early)
	assert.Empty(t, *late)

	require.NoError(t, m.Trigger(ctx, "foo", nil))

	assert.Equal(t, []string{DefaultInitialState, "FOO"}, *early)
	assert.Equal(t, []string{"FOO"}, *late)
}

func TestReplayPolicyOption(t *testing.T) {
	t.Parallel()

	m, err := newBasicMachine(WithReplayPolicy(ReplayEverySubscriber))
	require.NoError(t, err)
	require.NoError(t, m.Init(context.Background()))

	first, _ := collect(m.States())
	second, _ := collect(m.States())

	assert.Equal(t, []string{DefaultInitialState}, *first)
	assert.Equal(t, []string{DefaultInitialState}, *second)
}

func TestOnFiltersByState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	m, err := newBasicMachine()
	require.NoError(t, err)
	require.NoError(t, m.Init(ctx))

	// Spend the replay so the filtered stream only sees live emissions.
	m.States().Subscribe(func(string) {})

	ends, _ := collect(m.On("END"))
	foos, _ := collect(m.On("FOO"))

	for _, event := range []string{"foo", "bar", "foo", "end"} {
		require.NoError(t, m.Trigger(ctx, event, nil))
	}

	assert.Equal(t, []string{"END"}, *ends)
	assert.Equal(t, []string{"FOO", "FOO"}, *foos)
}

func TestOnUnknownStateIsCompleted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	m, err := newBasicMachine()
	require.NoError(t, err)

	stream := m.On("NOPE")
	assert.True(t, stream.Completed())

	// Registering the state later does not revive the stream.
	require.NoError(t, m.AddStates(testState{Name: "NOPE"}))

	seen, sub := collect(stream)
	assert.False(t, sub.Active())

	require.NoError(t, m.Init(ctx))
	assert.Empty(t, *seen)
}

func TestWithLoggerReceivesEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger := &recordingLogger{}

	m, err := newBasicMachine(WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, m.Init(ctx))
	require.NoError(t, m.Trigger(ctx, "bar", nil))
	require.NoError(t, m.Trigger(ctx, "act", nil))
	require.NoError(t, m.Trigger(ctx, "nothing", nil))

	assert.Equal(t, []string{
		"entered:DEFAULT<-",
		"exited:DEFAULT->BAR",
		"entered:BAR<-DEFAULT",
		"transition:DEFAULT->BAR(bar)",
		"effect:BAR(act)",
		"ignored:BAR(nothing)",
	}, logger.lines)
}
