// Package visualizer generates Mermaid state diagrams from machine definitions.
//
//nolint:varnamelen // short names idiomatic
package visualizer

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"facette.io/natsort"
	"github.com/amp-labs/amp-fsm/statemachine"
)

// Visualizer errors.
var (
	ErrDefinitionNil  = errors.New("definition cannot be nil")
	ErrNoInitialState = errors.New("definition must have an initial state")
)

// themes maps a theme name to its class definitions.
var themes = map[string][3]string{
	"default": {
		"fill:#e1f5ff,stroke:#01579b,stroke-width:2px",
		"fill:#c8e6c9,stroke:#2e7d32,stroke-width:2px",
		"fill:#fff9c4,stroke:#f57f17,stroke-width:3px",
	},
	"dark": {
		"fill:#263238,stroke:#80cbc4,color:#eceff1,stroke-width:2px",
		"fill:#1b5e20,stroke:#a5d6a7,color:#eceff1,stroke-width:2px",
		"fill:#4e342e,stroke:#ffcc80,color:#eceff1,stroke-width:3px",
	},
	"forest": {
		"fill:#dcedc8,stroke:#33691e,stroke-width:2px",
		"fill:#a5d6a7,stroke:#1b5e20,stroke-width:2px",
		"fill:#ffe082,stroke:#ff6f00,stroke-width:3px",
	},
}

// GenerateMermaid converts a Definition to a Mermaid state diagram.
func GenerateMermaid(def *statemachine.Definition) (string, error) {
	return GenerateMermaidWithOptions(def, DefaultOptions())
}

// GenerateMermaidFromFile loads a definition by path or registered name and
// generates a Mermaid diagram.
func GenerateMermaidFromFile(pathOrName string) (string, error) {
	def, err := statemachine.LoadDefinition(pathOrName)
	if err != nil {
		return "", fmt.Errorf("failed to load definition: %w", err)
	}

	return GenerateMermaid(def)
}

// GenerateMermaidFromMachine draws the states currently registered on m.
func GenerateMermaidFromMachine[S, R any](m *statemachine.Machine[S, R], opts Options) (string, error) {
	def := m.Describe()
	if name := m.CurrentStateName(); name != "" && len(opts.HighlightPath) == 0 {
		opts.HighlightPath = []string{name}
	}

	return GenerateMermaidWithOptions(def, opts)
}

// GenerateMermaidWithOptions generates a Mermaid diagram with custom options.
func GenerateMermaidWithOptions(def *statemachine.Definition, opts Options) (string, error) {
	if def == nil {
		return "", ErrDefinitionNil
	}

	if def.InitialState == "" {
		return "", ErrNoInitialState
	}

	if opts.Direction == "" {
		opts.Direction = "TD"
	}

	palette, ok := themes[opts.Theme]
	if !ok {
		palette = themes["default"]
	}

	var sb strings.Builder

	sb.WriteString("```mermaid\n")
	sb.WriteString("stateDiagram-v2\n")
	sb.WriteString(fmt.Sprintf("    direction %s\n", opts.Direction))
	sb.WriteString(fmt.Sprintf("    [*] --> %s\n", def.InitialState))

	states := slices.Clone(def.States)
	if opts.SortStates {
		slices.SortStableFunc(states, func(a, b statemachine.StateDefinition) int {
			switch {
			case a.Name == b.Name:
				return 0
			case natsort.Compare(a.Name, b.Name):
				return -1
			default:
				return 1
			}
		})
	}

	for _, state := range states {
		writeState(&sb, state, opts)
	}

	sb.WriteString("\n")
	sb.WriteString("    classDef effectState " + palette[0] + "\n")
	sb.WriteString("    classDef finalState " + palette[1] + "\n")
	sb.WriteString("    classDef highlighted " + palette[2] + "\n")
	sb.WriteString("```\n")

	return sb.String(), nil
}

func writeState(sb *strings.Builder, state statemachine.StateDefinition, opts Options) {
	effects := effectNames(state)
	targets := state.Targets()
	isFinal := len(targets) == 0

	if opts.ShowEffects && len(effects) > 0 {
		sb.WriteString(fmt.Sprintf("    %s: %s\\n[%s]\n",
			state.Name, state.Name, strings.Join(effects, ", ")))
	}

	switch {
	case slices.Contains(opts.HighlightPath, state.Name):
		sb.WriteString(fmt.Sprintf("    class %s highlighted\n", state.Name))
	case isFinal:
		sb.WriteString(fmt.Sprintf("    class %s finalState\n", state.Name))
	case len(effects) > 0:
		sb.WriteString(fmt.Sprintf("    class %s effectState\n", state.Name))
	}

	for _, action := range state.Actions {
		if action.Target == "" {
			continue
		}

		label := ""
		if opts.ShowEvents {
			label = ": " + action.Event
		}

		sb.WriteString(fmt.Sprintf("    %s --> %s%s\n", state.Name, action.Target, label))
	}

	if isFinal {
		sb.WriteString(fmt.Sprintf("    %s --> [*]\n", state.Name))
	}
}

// effectNames lists the distinct effects of a state, in declaration order.
func effectNames(state statemachine.StateDefinition) []string {
	var names []string

	for _, action := range state.Actions {
		if action.Effect != "" && !slices.Contains(names, action.Effect) {
			names = append(names, action.Effect)
		}
	}

	return names
}
