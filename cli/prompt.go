// Package cli holds the interactive terminal helpers used by fsmctl.
package cli

import (
	"errors"
	"io"
	"os"

	"github.com/manifoldco/promptui"
)

var errEmptyInput = errors.New("you must enter something")

// Prompter asks questions on a terminal.
type Prompter struct {
	In  io.ReadCloser
	Out io.WriteCloser
}

// NewPrompter returns a Prompter bound to the process stdin and stdout.
func NewPrompter() *Prompter {
	return &Prompter{In: os.Stdin, Out: os.Stdout}
}

// Confirm asks a yes/no question. Answering no is not an error.
func (p *Prompter) Confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Stdin:     p.In,
		Stdout:    p.Out,
	}

	_, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// String asks for a non-empty line of text.
func (p *Prompter) String(label string) (string, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Validate: nonEmpty,
		Stdin:    p.In,
		Stdout:   p.Out,
	}

	return prompt.Run()
}

// StringEmptyOk asks for a line of text that may be empty.
func (p *Prompter) StringEmptyOk(label string) (string, error) {
	prompt := promptui.Prompt{
		Label:  label,
		Stdin:  p.In,
		Stdout: p.Out,
	}

	return prompt.Run()
}

func nonEmpty(s string) error {
	if len(s) == 0 {
		return errEmptyInput
	}

	return nil
}
