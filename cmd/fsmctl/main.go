// Command fsmctl validates, renders and plays state machine definitions.
//
//	fsmctl validate [-strict] [-fix] [-yes] [-out file] definition.yaml
//	fsmctl render [-direction LR] [-theme dark] [-sort] [-highlight A,B] definition.yaml
//	fsmctl info definition.yaml
//	fsmctl play [-events a,b,c] [-async] [-render] definition.yaml
//
// Logging is configured from FSM_LOG_* and telemetry from OTEL_* variables,
// both of which may also come from a .env file in the working directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/amp-labs/amp-fsm/cli"
	"github.com/amp-labs/amp-fsm/script"
)

var errUsage = errors.New("usage")

// app carries the streams a command writes to, so tests can capture them.
type app struct {
	out      io.Writer
	errOut   io.Writer
	prompter *cli.Prompter
}

func main() {
	script.New("fsmctl",
		script.EnableFlagParse(false),
		script.WithEnvFile(".env"),
	).Run(func(ctx context.Context) error {
		a := &app{
			out:      os.Stdout,
			errOut:   os.Stderr,
			prompter: cli.NewPrompter(),
		}

		return a.run(ctx, os.Args[1:])
	})
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.usage()

		return script.ExitWithError(errUsage)
	}

	var err error

	switch args[0] {
	case "validate":
		err = a.validate(args[1:])
	case "render":
		err = a.render(args[1:])
	case "info":
		err = a.info(args[1:])
	case "play":
		err = a.play(ctx, args[1:])
	case "help", "-h", "--help":
		a.usage()

		return nil
	default:
		a.usage()

		return script.ExitWithErrorMessage("unknown command %q", args[0])
	}

	if errors.Is(err, flag.ErrHelp) {
		return nil
	}

	return err
}

func (a *app) usage() {
	_, _ = fmt.Fprintln(a.errOut, strings.TrimSpace(`
usage: fsmctl <command> [flags] definition.yaml

commands:
  validate  report problems in a definition, optionally fixing them
  render    print a mermaid state diagram
  info      print a summary and the fingerprint of a definition
  play      drive a machine built from a definition`))
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("fsmctl "+name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)

	return fs
}

// definitionArg returns the single positional argument of fs.
func definitionArg(fs *flag.FlagSet) (string, error) {
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%w: %s expects exactly one definition", errUsage, fs.Name())
	}

	return fs.Arg(0), nil
}

// splitList splits a comma separated flag value, dropping empty entries.
func splitList(value string) []string {
	var out []string

	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}
