package main

import (
	"fmt"
	"os"

	"github.com/amp-labs/amp-fsm/logger"
	"github.com/amp-labs/amp-fsm/script"
	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/amp-labs/amp-fsm/statemachine/validator"
	"github.com/amp-labs/amp-fsm/statemachine/visualizer"
	"gopkg.in/yaml.v3"
)

func (a *app) validate(args []string) error {
	fs := a.newFlagSet("validate")
	strict := fs.Bool("strict", false, "treat warnings as errors")
	fix := fs.Bool("fix", false, "apply the available fixes and print the fixed definition")
	yes := fs.Bool("yes", false, "apply fixes without asking")
	out := fs.String("out", "", "write the fixed definition to this file instead of stdout")

	if err := fs.Parse(args); err != nil {
		return err
	}

	path, err := definitionArg(fs)
	if err != nil {
		return err
	}

	result, err := validator.ValidateFileWithOptions(path, *strict)
	if err != nil {
		_, _ = fmt.Fprint(a.out, result.String())

		return logger.AnnotateError(err, "definition", path)
	}

	_, _ = fmt.Fprint(a.out, result.String())

	if *fix {
		fixes := result.Fixes()
		if len(fixes) == 0 {
			_, _ = fmt.Fprintln(a.out, "nothing to fix")
		} else {
			return a.applyFixes(path, fixes, *yes, *out)
		}
	}

	if !result.Valid {
		return script.ExitWithErrorMessage("definition %s has %d error(s)", path, len(result.Errors))
	}

	return nil
}

func (a *app) applyFixes(path string, fixes []*validator.Fix, yes bool, out string) error {
	for _, f := range fixes {
		_, _ = fmt.Fprintf(a.out, "fix: %s\n", f.Description)
	}

	if !yes {
		ok, err := a.prompter.Confirm(fmt.Sprintf("Apply %d fix(es)", len(fixes)))
		if err != nil {
			return err
		}

		if !ok {
			return script.Exit(0)
		}
	}

	data, err := os.ReadFile(path) //nolint:gosec // Definition paths come from the command line
	if err != nil {
		return fmt.Errorf("failed to read definition: %w", err)
	}

	def, err := statemachine.ParseDefinition(data)
	if err != nil {
		return err
	}

	if err := validator.ApplyFixes(def, fixes); err != nil {
		return fmt.Errorf("failed to apply fixes: %w", err)
	}

	fixed, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to encode definition: %w", err)
	}

	if out != "" {
		if err := os.WriteFile(out, fixed, 0o600); err != nil {
			return fmt.Errorf("failed to write definition: %w", err)
		}

		_, _ = fmt.Fprintf(a.out, "wrote %s\n", out)
	} else {
		_, _ = a.out.Write(fixed)
	}

	after := validator.Validate(def)
	if !after.Valid {
		return script.ExitWithErrorMessage("fixed definition still has %d error(s)", len(after.Errors))
	}

	return nil
}

func (a *app) render(args []string) error {
	defaults := visualizer.DefaultOptions()

	fs := a.newFlagSet("render")
	direction := fs.String("direction", defaults.Direction, "diagram direction, TD or LR")
	theme := fs.String("theme", defaults.Theme, "color theme: default, dark or forest")
	sorted := fs.Bool("sort", false, "emit states in natural name order")
	noEvents := fs.Bool("no-events", false, "omit event labels on transitions")
	noEffects := fs.Bool("no-effects", false, "omit effect names inside states")
	highlight := fs.String("highlight", "", "comma separated states to highlight")

	if err := fs.Parse(args); err != nil {
		return err
	}

	path, err := definitionArg(fs)
	if err != nil {
		return err
	}

	def, err := statemachine.LoadDefinition(path)
	if err != nil {
		return logger.AnnotateError(err, "definition", path)
	}

	opts := defaults.
		WithDirection(*direction).
		WithTheme(*theme).
		WithSortStates(*sorted).
		WithShowEvents(!*noEvents).
		WithShowEffects(!*noEffects).
		WithHighlightPath(splitList(*highlight))

	diagram, err := visualizer.GenerateMermaidWithOptions(def, opts)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(a.out, diagram)

	return nil
}

func (a *app) info(args []string) error {
	fs := a.newFlagSet("info")

	if err := fs.Parse(args); err != nil {
		return err
	}

	path, err := definitionArg(fs)
	if err != nil {
		return err
	}

	def, err := statemachine.LoadDefinition(path)
	if err != nil {
		return logger.AnnotateError(err, "definition", path)
	}

	fingerprint, err := def.Fingerprint()
	if err != nil {
		return err
	}

	terminal := 0

	for _, state := range def.States {
		if len(state.Targets()) == 0 {
			terminal++
		}
	}

	_, _ = fmt.Fprintf(a.out, "name:         %s\n", def.Name)
	_, _ = fmt.Fprintf(a.out, "initialState: %s\n", def.InitialState)
	_, _ = fmt.Fprintf(a.out, "states:       %d (%d terminal)\n", len(def.States), terminal)
	_, _ = fmt.Fprintf(a.out, "fingerprint:  %s\n", fingerprint)

	return nil
}
