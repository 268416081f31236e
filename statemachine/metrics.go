package statemachine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Trigger outcomes.
const (
	outcomeHandled = "handled"
	outcomeIgnored = "ignored"
	outcomeError   = "error"
)

// ignoredEventLabel replaces the event label of ignored triggers, whose
// names are caller supplied and unbounded.
const ignoredEventLabel = "unknown"

// Metric definitions with appropriate labels.
var (
	// triggersTotal tracks every Trigger call by machine, state, event and outcome.
	triggersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_triggers_total",
		Help: "Total number of triggered events by machine, state, event, and outcome (handled, ignored or error)",
	}, []string{"machine", "state", "event", "outcome"})

	// transitionsTotal tracks completed state changes.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_transitions_total",
		Help: "Total number of state transitions by machine, from_state, and to_state",
	}, []string{"machine", "from_state", "to_state"})

	// effectDuration tracks individual effect execution time.
	effectDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "statemachine_effect_duration_seconds",
		Help:    "Duration of effect execution by machine, state, and event",
		Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"machine", "state", "event"})

	// subscribersGauge tracks the number of bus subscriptions per machine.
	subscribersGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "statemachine_subscribers",
		Help: "Number of state-change subscriptions by machine",
	}, []string{"machine"})
)

// Helper functions for label sanitization.
func sanitizeMachine(name string) string {
	if name == "" {
		return "unknown"
	}

	return name
}

func sanitizeEvent(event, outcome string) string {
	if outcome == outcomeIgnored || event == "" {
		return ignoredEventLabel
	}

	return event
}

func sanitizeState(state string) string {
	if state == "" {
		return "none"
	}

	return state
}
