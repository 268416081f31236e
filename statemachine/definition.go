package statemachine

import (
	"fmt"
	"io/fs"
	"maps"
	"os"
	"strings"

	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"
)

// DefinitionLoader is an interface for loading definitions by name.
// Applications can implement this to provide embedded or custom definition loading.
type DefinitionLoader interface {
	LoadByName(name string) ([]byte, error)
	ListAvailable() []string
}

// anonymousEffect names effects that were registered without Action.Named.
const anonymousEffect = "anonymous"

var (
	// defaultDefinitionLoader is the global loader used by LoadDefinition.
	// Applications can set this to provide embedded definitions.
	defaultDefinitionLoader DefinitionLoader
)

// SetDefinitionLoader sets the default loader for name-based loading.
func SetDefinitionLoader(loader DefinitionLoader) {
	defaultDefinitionLoader = loader
}

// Definition is the declarative, serializable shape of a machine. Hooks and
// effects are referenced by name and resolved through a Catalog.
type Definition struct {
	Name         string            `json:"name"                  yaml:"name"`
	InitialState string            `json:"initialState"          yaml:"initialState"`
	States       []StateDefinition `json:"states"                yaml:"states"`
	Extra        map[string]any    `json:"extra,omitempty"       yaml:"extra,omitempty"`
}

// StateDefinition defines a single state.
type StateDefinition struct {
	Name     string             `json:"name"               yaml:"name"`
	OnEnter  string             `json:"onEnter,omitempty"  yaml:"onEnter,omitempty"`
	OnExit   string             `json:"onExit,omitempty"   yaml:"onExit,omitempty"`
	Actions  []ActionDefinition `json:"actions"            yaml:"actions"`
	Metadata map[string]any     `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ActionDefinition binds an event to a target, a named effect, or both.
type ActionDefinition struct {
	Event  string `json:"event"            yaml:"event"`
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
	Effect string `json:"effect,omitempty" yaml:"effect,omitempty"`
}

// LoadDefinition loads a definition by path or name.
// Supports two modes:
//   - Path mode: a value containing '/', '\', or ending in '.yaml'/'.yml' is read from the filesystem
//     Example: LoadDefinition("examples/basic.yaml")
//   - Name mode: a bare name is resolved through the registered DefinitionLoader
//     Example: LoadDefinition("checkout")
func LoadDefinition(pathOrName string) (*Definition, error) {
	isPath := strings.ContainsAny(pathOrName, `/\`) ||
		strings.HasSuffix(pathOrName, ".yaml") ||
		strings.HasSuffix(pathOrName, ".yml")

	if isPath {
		data, err := os.ReadFile(pathOrName) //nolint:gosec // Definition paths come from the caller
		if err != nil {
			return nil, fmt.Errorf("failed to read definition file: %w", err)
		}

		return LoadDefinitionFromBytes(data)
	}

	if defaultDefinitionLoader == nil {
		return nil, ErrNoDefinitionLoader
	}

	data, err := defaultDefinitionLoader.LoadByName(pathOrName)
	if err != nil {
		available := defaultDefinitionLoader.ListAvailable()

		return nil, fmt.Errorf("failed to load definition %q (available: %v): %w", pathOrName, available, err)
	}

	return LoadDefinitionFromBytes(data)
}

// LoadDefinitionFromBytes parses and validates a YAML definition.
func LoadDefinitionFromBytes(data []byte) (*Definition, error) {
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, err
	}

	err = def.Validate()
	if err != nil {
		return nil, err
	}

	return def, nil
}

// ParseDefinition parses a YAML definition without validating it.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition

	err := yaml.Unmarshal(data, &def)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &def, nil
}

// LoadDefinitionFromFS loads a definition from an embedded filesystem.
func LoadDefinitionFromFS(fsys fs.FS, path string) (*Definition, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition from FS: %w", err)
	}

	return LoadDefinitionFromBytes(data)
}

// Validate checks the structure of the definition. Defaults are filled in
// for an empty name and initial state.
func (d *Definition) Validate() error {
	if d.Name == "" {
		d.Name = DefaultName
	}

	if d.InitialState == "" {
		d.InitialState = DefaultInitialState
	}

	if len(d.States) == 0 {
		return ErrStateRequired
	}

	names := make(map[string]bool, len(d.States))

	for _, state := range d.States {
		if state.Name == "" {
			return ErrStateNameRequired
		}

		if names[state.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateStateName, state.Name)
		}

		names[state.Name] = true
	}

	if !names[d.InitialState] {
		return fmt.Errorf("%w: %q", ErrMissingInitialState, d.InitialState)
	}

	for _, state := range d.States {
		for i, action := range state.Actions {
			if action.Event == "" {
				return fmt.Errorf("state %s, action %d: %w", state.Name, i, ErrEventRequired)
			}

			if action.Target == "" && action.Effect == "" {
				return fmt.Errorf("state %s, action %d: %w", state.Name, i, ErrInvalidAction)
			}

			if action.Target != "" && !names[action.Target] {
				return &DanglingTargetError{States: []string{state.Name}, Target: action.Target}
			}
		}
	}

	return nil
}

// State returns the definition of the named state.
func (d *Definition) State(name string) (StateDefinition, bool) {
	for _, state := range d.States {
		if state.Name == name {
			return state, true
		}
	}

	return StateDefinition{}, false
}

// Targets returns the distinct targets declared by the state, in order.
func (s StateDefinition) Targets() []string {
	var targets []string

	seen := make(map[string]bool)

	for _, action := range s.Actions {
		if action.Target != "" && !seen[action.Target] {
			seen[action.Target] = true
			targets = append(targets, action.Target)
		}
	}

	return targets
}

// Fingerprint returns a stable hash of the definition, handy for telling
// two versions of the same machine apart in logs.
func (d *Definition) Fingerprint() (string, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to marshal definition: %w", err)
	}

	return fmt.Sprintf("%016x", xxh3.Hash(data)), nil
}

// Describe returns the definition of the machine's registered states, in
// natural name order. Hook names are not known to the machine and are left
// empty; effect names come from Action.Named.
func (m *Machine[S, R]) Describe() *Definition {
	def := &Definition{
		Name:         m.name,
		InitialState: m.initialState,
		Extra:        maps.Clone(m.store.extra),
	}

	for _, name := range m.registry.names() {
		state, _ := m.registry.get(name)

		stateDef := StateDefinition{
			Name:    name,
			Actions: make([]ActionDefinition, 0, len(state.Actions)),
		}

		for _, action := range state.Actions {
			target, _ := action.Target()

			effect := action.EffectName()
			if _, ok := action.Effect(); ok && effect == "" {
				effect = anonymousEffect
			}

			stateDef.Actions = append(stateDef.Actions, ActionDefinition{
				Event:  action.Event(),
				Target: target,
				Effect: effect,
			})
		}

		def.States = append(def.States, stateDef)
	}

	return def
}
