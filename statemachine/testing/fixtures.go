//nolint:gosec,mnd // Test fixtures with safe file permissions; file mode constants
package testing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// WriteDefinitionFile marshals def into a YAML file under t.TempDir and
// returns its path.
func WriteDefinitionFile(t *testing.T, name string, def *statemachine.Definition) string {
	t.Helper()

	data, err := yaml.Marshal(def)
	require.NoError(t, err, "failed to marshal definition")

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644), "failed to write definition")

	return path
}

// LoadTestDefinition loads a definition from the testdata directory.
func LoadTestDefinition(name string) (*statemachine.Definition, error) {
	return statemachine.LoadDefinition(filepath.Join("testdata", name))
}

// CommonDefinitions provides frequently used definitions.
var CommonDefinitions = struct {
	Basic func() *statemachine.Definition
	Door  func() *statemachine.Definition
}{
	// Basic is DEFAULT -> FOO -> BAR -> END, with an internal "act" on BAR.
	Basic: func() *statemachine.Definition {
		return &statemachine.Definition{
			Name:         "basic",
			InitialState: statemachine.DefaultInitialState,
			States: []statemachine.StateDefinition{
				{Name: statemachine.DefaultInitialState, Actions: []statemachine.ActionDefinition{
					{Event: "foo", Target: "FOO"},
					{Event: "bar", Target: "BAR"},
				}},
				{Name: "FOO", Actions: []statemachine.ActionDefinition{
					{Event: "bar", Target: "BAR"},
					{Event: "end", Target: "END"},
				}},
				{Name: "BAR", Actions: []statemachine.ActionDefinition{
					{Event: "foo", Target: "FOO"},
					{Event: "end", Target: "END"},
					{Event: "act", Effect: "noop"},
				}},
				{Name: "END", Actions: []statemachine.ActionDefinition{}},
			},
		}
	},
	Door: func() *statemachine.Definition {
		return &statemachine.Definition{
			Name:         "door",
			InitialState: "CLOSED",
			States: []statemachine.StateDefinition{
				{Name: "CLOSED", Actions: []statemachine.ActionDefinition{
					{Event: "open", Target: "OPEN"},
					{Event: "lock", Target: "LOCKED"},
				}},
				{Name: "OPEN", Actions: []statemachine.ActionDefinition{
					{Event: "close", Target: "CLOSED"},
				}},
				{Name: "LOCKED", Actions: []statemachine.ActionDefinition{
					{Event: "unlock", Target: "CLOSED"},
				}},
			},
		}
	},
}
