package testing

import (
	"context"
	"testing"

	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/stretchr/testify/require"
)

// Step is one event fed to a scenario.
type Step struct {
	Event   string
	Data    any
	WantErr error // nil means the trigger must succeed
}

// Scenario is a complete test scenario for a state machine.
type Scenario[S, R any] struct {
	Name   string
	Config statemachine.Config[S, R]
	Steps  []Step
	Expect []Matcher
}

// Events turns event names into steps that must succeed.
func Events(events ...string) []Step {
	steps := make([]Step, 0, len(events))
	for _, event := range events {
		steps = append(steps, Step{Event: event})
	}

	return steps
}

// RunScenario initializes a fresh machine, plays the steps and checks the
// expectations, in a subtest named after the scenario.
func RunScenario[S, R any](t *testing.T, scenario Scenario[S, R]) {
	t.Helper()
	t.Run(scenario.Name, func(t *testing.T) {
		t.Helper()

		tm := NewTestMachine(t, scenario.Config)
		tm.MustInit()

		for _, step := range scenario.Steps {
			err := tm.Trigger(context.Background(), step.Event, step.Data)
			if step.WantErr != nil {
				require.ErrorIs(t, err, step.WantErr, "trigger %q", step.Event)

				continue
			}

			require.NoError(t, err, "trigger %q", step.Event)
		}

		tm.AssertMatches(scenario.Expect...)
	})
}
