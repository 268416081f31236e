package statemachine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTestTracer creates a test tracer with an in-memory exporter.
func setupTestTracer(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(
		trace.WithSyncer(exporter),
	)

	oldProvider := otel.GetTracerProvider()

	otel.SetTracerProvider(tp)

	cleanup := func() {
		otel.SetTracerProvider(oldProvider)
	}

	return exporter, cleanup
}

func spanAttributes(span tracetest.SpanStub) map[string]any {
	attrMap := make(map[string]any)
	for _, attr := range span.Attributes {
		attrMap[string(attr.Key)] = attr.Value.AsInterface()
	}

	return attrMap
}

// TestMachineSpans verifies the spans emitted by Init and Trigger.
// Note: Cannot use t.Parallel() because setupTestTracer modifies global OTEL tracer provider.
//
//nolint:paralleltest // Test modifies global OTEL tracer provider
//nolint:tparallel // Subtests share exporter, must run sequentially
func TestMachineSpans(t *testing.T) {
	exporter, cleanup := setupTestTracer(t)
	t.Cleanup(cleanup)

	ctx := context.Background()

	m, err := newBasicMachine()
	require.NoError(t, err)

	//nolint:paralleltest // Subtests share exporter, must run sequentially
	t.Run("init span", func(t *testing.T) {
		exporter.Reset()

		require.NoError(t, m.Init(ctx))

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, "statemachine.init", spans[0].Name)
		assert.Equal(t, codes.Ok, spans[0].Status.Code)

		attrs := spanAttributes(spans[0])
		assert.Equal(t, "basic", attrs["machine"])
		assert.Equal(t, m.ID(), attrs["machine_id"])
		assert.Equal(t, DefaultInitialState, attrs["state"])
	})

	//nolint:paralleltest // Subtests share exporter, must run sequentially
	t.Run("trigger with transition", func(t *testing.T) {
		exporter.Reset()

		require.NoError(t, m.Trigger(ctx, "foo", nil))

		spans := exporter.GetSpans()
		require.Len(t, spans, 2)

		// Children end first.
		transition, trigger := spans[0], spans[1]
		assert.Equal(t, "transition.DEFAULT->FOO", transition.Name)
		assert.Equal(t, "statemachine.trigger", trigger.Name)
		assert.Equal(t, trigger.SpanContext.SpanID(), transition.Parent.SpanID())

		attrs := spanAttributes(transition)
		assert.Equal(t, DefaultInitialState, attrs["from_state"])
		assert.Equal(t, "FOO", attrs["to_state"])

		assert.Equal(t, "foo", spanAttributes(trigger)["event"])
	})

	//nolint:paralleltest // Subtests share exporter, must run sequentially
	t.Run("ignored trigger", func(t *testing.T) {
		exporter.Reset()

		require.NoError(t, m.Trigger(ctx, "nothing", nil))

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, "statemachine.trigger", spans[0].Name)
		assert.Equal(t, codes.Ok, spans[0].Status.Code)
	})

	//nolint:paralleltest // Subtests share exporter, must run sequentially
	t.Run("failed transition", func(t *testing.T) {
		exporter.Reset()

		m.RemoveState("END")

		err := m.Trigger(ctx, "end", nil)
		require.ErrorIs(t, err, ErrUnknownTarget)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
		require.NotEmpty(t, spans[0].Events)
		assert.Equal(t, "exception", spans[0].Events[0].Name)
	})
}

//nolint:paralleltest // Test modifies environment
func TestIsDebugMode(t *testing.T) {
	t.Setenv("FSM_DEBUG", "")
	assert.False(t, isDebugMode())

	t.Setenv("FSM_DEBUG", "TRUE")
	assert.True(t, isDebugMode())

	t.Setenv("FSM_DEBUG", "1")
	assert.True(t, isDebugMode())
}
