//nolint:lll // Long validation messages
package validator

import (
	"fmt"
	"slices"
	"strings"

	"github.com/amp-labs/amp-fsm/statemachine"
)

// Severity defines the severity level of a validation issue.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

// RuleResult contains both errors and warnings from a rule check.
type RuleResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// Rule defines a validation rule that can check a definition for specific issues.
type Rule interface {
	Name() string
	Severity() Severity
	Check(def *statemachine.Definition) RuleResult
}

// DefaultRules returns the standard set of validation rules.
func DefaultRules() []Rule {
	return []Rule{
		&stateNameRule{},
		&initialStateRule{},
		&invalidActionRule{},
		&danglingTargetRule{},
		&unreachableStateRule{},
		&shadowedActionRule{},
		&diagramSafeNameRule{},
	}
}

// RegisteredRules stores custom validation rules.
var RegisteredRules []Rule

// RegisterRule adds a custom validation rule.
func RegisterRule(rule Rule) {
	RegisteredRules = append(RegisteredRules, rule)
}

func initialState(def *statemachine.Definition) string {
	if def.InitialState == "" {
		return statemachine.DefaultInitialState
	}

	return def.InitialState
}

// stateNameRule checks for empty and duplicate state names.
type stateNameRule struct{}

func (r *stateNameRule) Name() string {
	return "StateName"
}

func (r *stateNameRule) Severity() Severity {
	return SeverityError
}

func (r *stateNameRule) Check(def *statemachine.Definition) RuleResult {
	var errors []ValidationError

	if len(def.States) == 0 {
		errors = append(errors, ValidationError{
			Code:    "NO_STATES",
			Message: "Definition declares no states",
		})
	}

	seen := make(map[string]int)

	for i, state := range def.States {
		if state.Name == "" {
			errors = append(errors, ValidationError{
				Code:    "STATE_NAME_REQUIRED",
				Message: fmt.Sprintf("State #%d has no name", i+1),
			})

			continue
		}

		seen[state.Name]++

		if seen[state.Name] == 2 {
			errors = append(errors, ValidationError{
				Code:     "DUPLICATE_STATE",
				Message:  fmt.Sprintf("State '%s' is declared more than once", state.Name),
				Location: Location{State: state.Name},
				Fix:      RemoveDuplicateState(state.Name),
			})
		}
	}

	return RuleResult{Errors: errors}
}

// initialStateRule checks that the initial state is declared.
type initialStateRule struct{}

func (r *initialStateRule) Name() string {
	return "InitialState"
}

func (r *initialStateRule) Severity() Severity {
	return SeverityError
}

func (r *initialStateRule) Check(def *statemachine.Definition) RuleResult {
	initial := initialState(def)

	if _, ok := def.State(initial); ok || len(def.States) == 0 {
		return RuleResult{}
	}

	return RuleResult{Errors: []ValidationError{{
		Code:     "INITIAL_STATE_MISSING",
		Message:  fmt.Sprintf("Initial state '%s' is not declared", initial),
		Location: Location{State: initial},
		Fix:      AddMissingState(initial),
	}}}
}

// invalidActionRule checks that every action has an event and does something.
type invalidActionRule struct{}

func (r *invalidActionRule) Name() string {
	return "InvalidAction"
}

func (r *invalidActionRule) Severity() Severity {
	return SeverityError
}

func (r *invalidActionRule) Check(def *statemachine.Definition) RuleResult {
	var errors []ValidationError

	for _, state := range def.States {
		for i, action := range state.Actions {
			location := Location{State: state.Name, Action: i + 1}

			if action.Event == "" {
				errors = append(errors, ValidationError{
					Code:     "EVENT_REQUIRED",
					Message:  fmt.Sprintf("Action %d of state '%s' has no event", i+1, state.Name),
					Location: location,
					Fix:      RemoveInvalidActions(state.Name),
				})
			}

			if action.Target == "" && action.Effect == "" {
				errors = append(errors, ValidationError{
					Code:     "INVALID_ACTION",
					Message:  fmt.Sprintf("Action %d of state '%s' declares neither a target nor an effect", i+1, state.Name),
					Location: location,
					Fix:      RemoveInvalidActions(state.Name),
				})
			}
		}
	}

	return RuleResult{Errors: errors}
}

// danglingTargetRule checks that every target is a declared state.
type danglingTargetRule struct{}

func (r *danglingTargetRule) Name() string {
	return "DanglingTarget"
}

func (r *danglingTargetRule) Severity() Severity {
	return SeverityError
}

func (r *danglingTargetRule) Check(def *statemachine.Definition) RuleResult {
	var (
		errors  []ValidationError
		missing []string
	)

	for _, state := range def.States {
		for i, action := range state.Actions {
			if action.Target == "" {
				continue
			}

			if _, ok := def.State(action.Target); ok {
				continue
			}

			var fix *Fix
			if !slices.Contains(missing, action.Target) {
				missing = append(missing, action.Target)
				fix = AddMissingState(action.Target)
			}

			errors = append(errors, ValidationError{
				Code:     "DANGLING_TARGET",
				Message:  fmt.Sprintf("State '%s' has a target state '%s' that does not exist", state.Name, action.Target),
				Location: Location{State: state.Name, Action: i + 1},
				Fix:      fix,
			})
		}
	}

	return RuleResult{Errors: errors}
}

// unreachableStateRule checks for states that cannot be reached from the initial state.
type unreachableStateRule struct{}

func (r *unreachableStateRule) Name() string {
	return "UnreachableState"
}

func (r *unreachableStateRule) Severity() Severity {
	return SeverityWarning
}

func (r *unreachableStateRule) Check(def *statemachine.Definition) RuleResult {
	initial := initialState(def)
	if _, ok := def.State(initial); !ok {
		return RuleResult{}
	}

	var warnings []ValidationWarning

	// Find all reachable states using BFS
	reachable := map[string]bool{initial: true}

	queue := []string{initial}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		state, _ := def.State(current)
		for _, target := range state.Targets() {
			if !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}
	}

	for _, state := range def.States {
		if state.Name == "" || reachable[state.Name] {
			continue
		}

		warnings = append(warnings, ValidationWarning{
			Code:     "UNREACHABLE_STATE",
			Message:  fmt.Sprintf("State '%s' cannot be reached from initial state '%s'", state.Name, initial),
			Location: Location{State: state.Name},
			Fix:      RemoveUnreachableState(state.Name),
		})
	}

	return RuleResult{Warnings: warnings}
}

// shadowedActionRule warns about actions that can never decide where the
// machine goes: only the first action bound to an event does.
type shadowedActionRule struct{}

func (r *shadowedActionRule) Name() string {
	return "ShadowedAction"
}

func (r *shadowedActionRule) Severity() Severity {
	return SeverityWarning
}

func (r *shadowedActionRule) Check(def *statemachine.Definition) RuleResult {
	var warnings []ValidationWarning

	for _, state := range def.States {
		first := make(map[string]statemachine.ActionDefinition)

		for i, action := range state.Actions {
			if action.Event == "" {
				continue
			}

			winner, seen := first[action.Event]
			if !seen {
				first[action.Event] = action

				continue
			}

			if action.Target == "" {
				continue
			}

			message := fmt.Sprintf("Target '%s' of event '%s' in state '%s' is never used: the first action for that event moves to '%s'",
				action.Target, action.Event, state.Name, winner.Target)
			if winner.Target == "" {
				message = fmt.Sprintf("Target '%s' of event '%s' in state '%s' is never used: the first action for that event has no target, so the machine stays put",
					action.Target, action.Event, state.Name)
			}

			warnings = append(warnings, ValidationWarning{
				Code:     "SHADOWED_TARGET",
				Message:  message,
				Location: Location{State: state.Name, Action: i + 1},
			})
		}
	}

	return RuleResult{Warnings: warnings}
}

// diagramSafeNameRule warns about names that break Mermaid diagrams.
type diagramSafeNameRule struct{}

func (r *diagramSafeNameRule) Name() string {
	return "DiagramSafeName"
}

func (r *diagramSafeNameRule) Severity() Severity {
	return SeverityWarning
}

func (r *diagramSafeNameRule) Check(def *statemachine.Definition) RuleResult {
	var warnings []ValidationWarning

	for _, state := range def.States {
		if strings.ContainsAny(state.Name, " -:>[]{}\"") {
			warnings = append(warnings, ValidationWarning{
				Code:     "NAME_NOT_DIAGRAM_SAFE",
				Message:  fmt.Sprintf("State '%s' contains characters that break diagrams (suggested: '%s')", state.Name, toSafeName(state.Name)),
				Location: Location{State: state.Name},
				Fix:      RenameState(state.Name, toSafeName(state.Name)),
			})
		}
	}

	return RuleResult{Warnings: warnings}
}

func toSafeName(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(" -:>[]{}\"", r) {
			return '_'
		}

		return r
	}, s)
}
