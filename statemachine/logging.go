package statemachine

import (
	"context"
	"log/slog"
	"time"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// labelsContextKey is the key used to store machine labels in Go context.
const labelsContextKey contextKey = "statemachine_labels"

// Logger provides logging hooks for state machine execution.
type Logger interface {
	StateEntered(ctx context.Context, state, from string, err error)
	StateExited(ctx context.Context, state, to string, err error)
	TransitionExecuted(ctx context.Context, from, to, event string)
	EventIgnored(ctx context.Context, state, event string)
	EffectCompleted(ctx context.Context, state, event string, duration time.Duration, err error)
}

// ObservabilityLabels contains contextual labels for observability.
type ObservabilityLabels struct {
	MachineID    string
	Machine      string
	CurrentState string
	Event        string
}

// GetObservabilityLabels extracts the labels the machine put on the context
// it hands to hooks and effects. Returns an empty ObservabilityLabels if none
// are found.
func GetObservabilityLabels(ctx context.Context) ObservabilityLabels {
	labels, ok := ctx.Value(labelsContextKey).(ObservabilityLabels)
	if !ok {
		return ObservabilityLabels{}
	}

	return labels
}

func withObservabilityLabels(ctx context.Context, labels ObservabilityLabels) context.Context {
	return context.WithValue(ctx, labelsContextKey, labels)
}

// DefaultLogger implements Logger using slog.
type DefaultLogger struct {
	logger *slog.Logger
}

// NewDefaultLogger creates a logger writing to slog.Default().
func NewDefaultLogger() *DefaultLogger {
	return NewSlogLogger(slog.Default())
}

// NewSlogLogger creates a logger writing to the given slog logger.
func NewSlogLogger(logger *slog.Logger) *DefaultLogger {
	if logger == nil {
		logger = slog.Default()
	}

	return &DefaultLogger{
		logger: logger,
	}
}

func (l *DefaultLogger) fields(ctx context.Context, fields ...any) []any {
	labels := GetObservabilityLabels(ctx)
	if labels.Machine == "" {
		return fields
	}

	return append(fields,
		"machine", labels.Machine,
		"machine_id", labels.MachineID,
	)
}

func (l *DefaultLogger) StateEntered(ctx context.Context, state, from string, err error) {
	fields := l.fields(ctx, "state", state, "from", from)

	if err != nil {
		l.logger.ErrorContext(ctx, "State enter hook failed", append(fields, "error", err)...)
	} else {
		l.logger.DebugContext(ctx, "State entered", fields...)
	}
}

func (l *DefaultLogger) StateExited(ctx context.Context, state, to string, err error) {
	fields := l.fields(ctx, "state", state, "to", to)

	if err != nil {
		l.logger.ErrorContext(ctx, "State exit hook failed", append(fields, "error", err)...)
	} else {
		l.logger.DebugContext(ctx, "State exited", fields...)
	}
}

func (l *DefaultLogger) TransitionExecuted(ctx context.Context, from, to, event string) {
	l.logger.InfoContext(ctx, "Transition executed", l.fields(ctx,
		"from", from,
		"to", to,
		"event", event,
	)...)
}

func (l *DefaultLogger) EventIgnored(ctx context.Context, state, event string) {
	l.logger.DebugContext(ctx, "Event ignored", l.fields(ctx,
		"state", state,
		"event", event,
	)...)
}

func (l *DefaultLogger) EffectCompleted(
	ctx context.Context, state, event string, duration time.Duration, err error,
) {
	fields := l.fields(ctx,
		"state", state,
		"event", event,
		"duration_ms", duration.Milliseconds(),
	)

	if err != nil {
		l.logger.ErrorContext(ctx, "Effect completed with error", append(fields, "error", err)...)
	} else {
		l.logger.DebugContext(ctx, "Effect completed", fields...)
	}
}
