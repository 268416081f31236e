// Package validator reports structural problems in machine definitions and
// offers fixes for some of them.
package validator

import (
	"fmt"
	"os"
	"strings"

	"github.com/amp-labs/amp-fsm/statemachine"
)

// ValidationResult contains the results of validating a definition.
type ValidationResult struct {
	Valid       bool
	Errors      []ValidationError
	Warnings    []ValidationWarning
	Suggestions []Suggestion
}

// ValidationError represents a validation error with fix suggestions.
type ValidationError struct {
	Code     string   // Error code like "DANGLING_TARGET", "INITIAL_STATE_MISSING"
	Message  string   // Human-readable error message
	Location Location // Where the error occurred
	Fix      *Fix     // Optional auto-fix suggestion
}

// ValidationWarning represents a non-critical issue.
type ValidationWarning struct {
	Code     string   // Warning code
	Message  string   // Human-readable warning message
	Location Location // Where the warning occurred
	Fix      *Fix     // Optional auto-fix suggestion
}

// Suggestion provides improvement recommendations.
type Suggestion struct {
	Message string // Suggestion description
	Example string // YAML example showing the improvement
}

// Location identifies where an issue occurred.
type Location struct {
	File   string // Definition file path
	State  string // State name if applicable
	Action int    // 1-based action index within the state (0 if not applicable)
}

// Validate runs the default rules against a definition.
func Validate(def *statemachine.Definition) ValidationResult {
	return ValidateWithRules(def, DefaultRules())
}

// ValidateFile parses a definition file and validates it.
func ValidateFile(path string) (ValidationResult, error) {
	return ValidateFileWithOptions(path, false)
}

// ValidateFileStrict parses a definition file and validates it in strict mode.
func ValidateFileStrict(path string) (ValidationResult, error) {
	return ValidateFileWithOptions(path, true)
}

// ValidateFileWithOptions parses a definition file and validates it. The file
// is only parsed, not validated, so every problem shows up in the result.
func ValidateFileWithOptions(path string, strict bool) (ValidationResult, error) {
	def, err := loadDefinition(path)
	if err != nil {
		return ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{
					Code:     "DEFINITION_LOAD_FAILED",
					Message:  fmt.Sprintf("Failed to load definition: %v", err),
					Location: Location{File: path},
				},
			},
		}, err
	}

	rules := append(DefaultRules(), RegisteredRules...)

	var result ValidationResult
	if strict {
		result = ValidateWithRulesStrict(def, rules)
	} else {
		result = ValidateWithRules(def, rules)
	}

	for i := range result.Errors {
		if result.Errors[i].Location.File == "" {
			result.Errors[i].Location.File = path
		}
	}

	for i := range result.Warnings {
		if result.Warnings[i].Location.File == "" {
			result.Warnings[i].Location.File = path
		}
	}

	return result, nil
}

// ValidateWithRules validates using custom rules.
func ValidateWithRules(def *statemachine.Definition, rules []Rule) ValidationResult {
	var result ValidationResult

	result.Valid = true

	for _, rule := range rules {
		ruleResult := rule.Check(def)
		result.Errors = append(result.Errors, ruleResult.Errors...)
		result.Warnings = append(result.Warnings, ruleResult.Warnings...)
	}

	if len(result.Errors) > 0 {
		result.Valid = false
	}

	result.Suggestions = generateSuggestions(def)

	return result
}

// ValidateWithRulesStrict validates with strict mode (treats warnings as errors).
func ValidateWithRulesStrict(def *statemachine.Definition, rules []Rule) ValidationResult {
	result := ValidateWithRules(def, rules)

	for _, warning := range result.Warnings {
		result.Errors = append(result.Errors, ValidationError(warning))
	}

	result.Warnings = nil

	if len(result.Errors) > 0 {
		result.Valid = false
	}

	return result
}

func loadDefinition(path string) (*statemachine.Definition, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Definition paths come from the caller
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return statemachine.ParseDefinition(data)
}

// generateSuggestions provides general improvement suggestions.
func generateSuggestions(def *statemachine.Definition) []Suggestion {
	var suggestions []Suggestion

	hasTerminal := false

	for _, state := range def.States {
		if len(state.Targets()) == 0 {
			hasTerminal = true

			break
		}
	}

	if !hasTerminal && len(def.States) > 0 {
		suggestions = append(suggestions, Suggestion{
			Message: "No state is terminal; consider adding a state without targets so the machine can finish",
			Example: `states:
  - name: END
    actions: []`,
		})
	}

	hasMetadata := false

	for _, state := range def.States {
		if len(state.Metadata) > 0 {
			hasMetadata = true

			break
		}
	}

	if !hasMetadata && len(def.States) > 3 {
		suggestions = append(suggestions, Suggestion{
			Message: "Consider adding metadata to document complex states",
			Example: `states:
  - name: CHECKOUT
    metadata:
      description: "Waits for payment confirmation"
      owner: "payments-team"`,
		})
	}

	return suggestions
}

// HasErrors returns true if the result has any errors.
func (r ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if the result has any warnings.
func (r ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Fixes returns every fix attached to an error or a warning.
func (r ValidationResult) Fixes() []*Fix {
	var fixes []*Fix

	for _, err := range r.Errors {
		if err.Fix != nil {
			fixes = append(fixes, err.Fix)
		}
	}

	for _, warn := range r.Warnings {
		if warn.Fix != nil {
			fixes = append(fixes, warn.Fix)
		}
	}

	return fixes
}

// String returns a human-readable summary of validation results.
func (r ValidationResult) String() string {
	var sb strings.Builder

	if r.Valid {
		sb.WriteString("✓ Definition is valid\n")
	} else {
		sb.WriteString(fmt.Sprintf("✗ Definition has %d error(s)\n", len(r.Errors)))

		for _, err := range r.Errors {
			sb.WriteString(fmt.Sprintf("  [%s] %s", err.Code, err.Message))

			if err.Location.State != "" {
				sb.WriteString(fmt.Sprintf(" (state: %s)", err.Location.State))
			}

			sb.WriteString("\n")

			if err.Fix != nil {
				sb.WriteString(fmt.Sprintf("    Fix: %s\n", err.Fix.Description))
			}
		}
	}

	if len(r.Warnings) > 0 {
		sb.WriteString(fmt.Sprintf("\n⚠ %d warning(s):\n", len(r.Warnings)))

		for _, warn := range r.Warnings {
			sb.WriteString(fmt.Sprintf("  [%s] %s\n", warn.Code, warn.Message))
		}
	}

	if len(r.Suggestions) > 0 {
		sb.WriteString(fmt.Sprintf("\n%d suggestion(s) for improvement\n", len(r.Suggestions)))
	}

	return sb.String()
}
