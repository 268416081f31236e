package validator

import (
	"errors"
	"fmt"
	"slices"

	"github.com/amp-labs/amp-fsm/statemachine"
)

var (
	// ErrStateNotFound is returned when attempting to change a state that doesn't exist.
	ErrStateNotFound = errors.New("state not found")
	// ErrDuplicateNotFound is returned when attempting to remove a duplicate that doesn't exist.
	ErrDuplicateNotFound = errors.New("duplicate not found")
	// ErrStateAlreadyExists is returned when attempting to rename to an existing state name.
	ErrStateAlreadyExists = errors.New("state already exists")
)

// Fix represents an automatic fix for a validation issue.
type Fix struct {
	Description string
	Apply       func(def *statemachine.Definition) error
}

// AddMissingState creates a fix that declares an empty state. It is a no-op
// if the state already exists.
func AddMissingState(name string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Add state '%s'", name),
		Apply: func(def *statemachine.Definition) error {
			if _, ok := def.State(name); ok {
				return nil
			}

			def.States = append(def.States, statemachine.StateDefinition{
				Name:    name,
				Actions: []statemachine.ActionDefinition{},
			})

			return nil
		},
	}
}

// RemoveUnreachableState creates a fix that removes a state along with every
// action targeting it.
func RemoveUnreachableState(name string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Remove unreachable state '%s'", name),
		Apply: func(def *statemachine.Definition) error {
			before := len(def.States)

			def.States = slices.DeleteFunc(def.States, func(state statemachine.StateDefinition) bool {
				return state.Name == name
			})

			if len(def.States) == before {
				return fmt.Errorf("%w: '%s'", ErrStateNotFound, name)
			}

			for i := range def.States {
				def.States[i].Actions = slices.DeleteFunc(def.States[i].Actions,
					func(action statemachine.ActionDefinition) bool {
						return action.Target == name
					})
			}

			return nil
		},
	}
}

// RemoveDuplicateState creates a fix that keeps the first declaration of a state.
func RemoveDuplicateState(name string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Keep only the first declaration of state '%s'", name),
		Apply: func(def *statemachine.Definition) error {
			kept := false
			found := false

			def.States = slices.DeleteFunc(def.States, func(state statemachine.StateDefinition) bool {
				if state.Name != name {
					return false
				}

				if !kept {
					kept = true

					return false
				}

				found = true

				return true
			})

			if !found {
				return ErrDuplicateNotFound
			}

			return nil
		},
	}
}

// RemoveInvalidActions creates a fix that drops the actions of a state that
// have no event, or neither a target nor an effect.
func RemoveInvalidActions(stateName string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Remove invalid actions of state '%s'", stateName),
		Apply: func(def *statemachine.Definition) error {
			for i := range def.States {
				if def.States[i].Name != stateName {
					continue
				}

				def.States[i].Actions = slices.DeleteFunc(def.States[i].Actions,
					func(action statemachine.ActionDefinition) bool {
						return action.Event == "" || (action.Target == "" && action.Effect == "")
					})

				return nil
			}

			return fmt.Errorf("%w: '%s'", ErrStateNotFound, stateName)
		},
	}
}

// RenameState creates a fix that renames a state, including the initial
// state and every target pointing at it.
func RenameState(oldName, newName string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Rename state from '%s' to '%s'", oldName, newName),
		Apply: func(def *statemachine.Definition) error {
			if _, ok := def.State(newName); ok {
				return fmt.Errorf("%w: '%s'", ErrStateAlreadyExists, newName)
			}

			if _, ok := def.State(oldName); !ok {
				return fmt.Errorf("%w: '%s'", ErrStateNotFound, oldName)
			}

			for i := range def.States {
				if def.States[i].Name == oldName {
					def.States[i].Name = newName
				}

				for j := range def.States[i].Actions {
					if def.States[i].Actions[j].Target == oldName {
						def.States[i].Actions[j].Target = newName
					}
				}
			}

			if def.InitialState == oldName {
				def.InitialState = newName
			}

			return nil
		},
	}
}

// ApplyFixes applies a list of fixes to a definition.
func ApplyFixes(def *statemachine.Definition, fixes []*Fix) error {
	for _, fix := range fixes {
		if fix != nil && fix.Apply != nil {
			err := fix.Apply(def)
			if err != nil {
				return fmt.Errorf("failed to apply fix '%s': %w", fix.Description, err)
			}
		}
	}

	return nil
}
