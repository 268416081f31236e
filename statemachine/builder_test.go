package statemachine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	idle := NewState[visits, journal]("IDLE").
		OnEnter(func(_ context.Context, from string, s *visits, _ *journal) error {
			s.Enters++

			return nil
		}).
		Goto("start", "RUNNING").
		Do("ping", note("pong")).
		Build()

	running := NewState[visits, journal]("RUNNING").
		WithContext(&visits{Enters: 5}).
		OnExit(func(_ context.Context, to string, s *visits, _ *journal) error {
			s.Exits++

			return nil
		}).
		GotoAndDo("stop", "IDLE", note("stopping")).
		Action(Do("audit", note("audited")).Named("audit")).
		Build()

	m, err := NewBuilder[visits, journal]("worker").
		WithInitialState("IDLE").
		WithRootContext(journal{Count: 1}).
		WithExtra("queue", "jobs").
		WithOptions(WithMetrics(false)).
		AddState(idle).
		AddStates(running).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "worker", m.Name())
	assert.Equal(t, []string{"IDLE", "RUNNING"}, m.StateNames())

	queue, ok := m.Extra("queue")
	require.True(t, ok)
	assert.Equal(t, "jobs", queue)

	require.NoError(t, m.Init(ctx))
	require.NoError(t, m.Trigger(ctx, "ping", nil))
	require.NoError(t, m.Trigger(ctx, "start", nil))
	require.NoError(t, m.Trigger(ctx, "audit", nil))
	require.NoError(t, m.Trigger(ctx, "stop", nil))

	assert.Equal(t, "IDLE", m.CurrentStateName())
	assert.Equal(t, []string{"pong", "audited", "stopping"}, m.Context().Entries)
	assert.Equal(t, 1, m.Context().Count)

	state, _ := m.State("IDLE")
	assert.Equal(t, 2, state.Context.Enters)

	state, _ = m.State("RUNNING")
	assert.Equal(t, 5, state.Context.Enters)
	assert.Equal(t, 1, state.Context.Exits)
	assert.Equal(t, "audit", state.Actions[1].EffectName())
}

func TestBuilderRejectsDanglingTargets(t *testing.T) {
	t.Parallel()

	_, err := NewBuilder[visits, journal]("broken").
		WithOptions(WithMetrics(false)).
		AddState(NewState[visits, journal](DefaultInitialState).Goto("go", "NOWHERE").Build()).
		Build()
	require.ErrorIs(t, err, ErrDanglingTarget)
}

func TestStateBuilderBuildCopies(t *testing.T) {
	t.Parallel()

	builder := NewState[visits, journal]("A").Goto("go", "A")
	first := builder.Build()
	builder.Goto("again", "A")

	assert.Len(t, first.Actions, 1)
	assert.Len(t, builder.Build().Actions, 2)
}
