package statemachine

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "statemachine"

// startInitSpan creates the span covering Init.
// The caller is responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller (factory pattern)
func startInitSpan(ctx context.Context, labels ObservabilityLabels) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "statemachine.init")
	addLabelAttributes(span, labels)
	logSpanDebug(ctx, "started", "statemachine.init", span)

	return ctx, span
}

// startTriggerSpan creates the span covering one Trigger call.
// The caller is responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller (factory pattern)
func startTriggerSpan(ctx context.Context, labels ObservabilityLabels) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "statemachine.trigger")
	addLabelAttributes(span, labels)
	span.SetAttributes(attribute.String("event", labels.Event))
	logSpanDebug(ctx, "started", "statemachine.trigger", span)

	return ctx, span
}

// startTransitionSpan creates a child span for a state change.
// The caller is responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller (factory pattern)
func startTransitionSpan(
	ctx context.Context,
	from, to string,
	labels ObservabilityLabels,
) (context.Context, trace.Span) {
	spanName := "transition." + from + "->" + to
	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName)
	addLabelAttributes(span, labels)
	span.SetAttributes(
		attribute.String("from_state", from),
		attribute.String("to_state", to),
	)
	logSpanDebug(ctx, "started", spanName, span)

	return ctx, span
}

// endSpan records the outcome and ends the span.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "completed")
	}

	span.End()
}

// addLabelAttributes adds machine labels to span.
func addLabelAttributes(span trace.Span, labels ObservabilityLabels) {
	span.SetAttributes(
		attribute.String("machine", labels.Machine),
		attribute.String("machine_id", labels.MachineID),
		attribute.String("state", labels.CurrentState),
	)
}

// logSpanDebug logs span creation when FSM_DEBUG is set.
func logSpanDebug(ctx context.Context, phase string, spanName string, span trace.Span) {
	if !isDebugMode() {
		return
	}

	spanCtx := span.SpanContext()
	slog.InfoContext(ctx, "OTEL Span "+phase,
		"span_name", spanName,
		"trace_id", spanCtx.TraceID().String(),
		"span_id", spanCtx.SpanID().String(),
	)
}

// isDebugMode checks if FSM_DEBUG mode is enabled.
func isDebugMode() bool {
	return strings.EqualFold(os.Getenv("FSM_DEBUG"), "1") ||
		strings.EqualFold(os.Getenv("FSM_DEBUG"), "true")
}
