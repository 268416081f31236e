package cli

import (
	"errors"
	"slices"
	"strings"

	"facette.io/natsort"
	"github.com/manifoldco/promptui"
)

// QuitChoice is the first entry of every Select menu.
const QuitChoice = "[Quit]"

// ErrQuit is returned by Select when the user picks QuitChoice.
var ErrQuit = errors.New("quit")

// Select shows choices in natural order behind a QuitChoice entry and
// returns the one picked. Duplicates are shown once.
func (p *Prompter) Select(label string, choices ...string) (string, error) {
	items := menu(choices)
	if len(items) == 1 {
		return "", ErrQuit
	}

	sel := &promptui.Select{
		Label:    label,
		Items:    items,
		Searcher: searcher(items),
		Stdin:    p.In,
		Stdout:   p.Out,
	}

	idx, value, err := sel.Run()
	if err != nil {
		return "", err
	}

	if idx == 0 {
		return "", ErrQuit
	}

	return value, nil
}

// menu returns QuitChoice followed by the distinct choices in natural order.
func menu(choices []string) []string {
	sorted := slices.Clone(choices)
	slices.SortFunc(sorted, func(a, b string) int {
		switch {
		case a == b:
			return 0
		case natsort.Compare(a, b):
			return -1
		default:
			return 1
		}
	})

	return append([]string{QuitChoice}, slices.Compact(sorted)...)
}

// searcher matches menu entries by prefix, never matching QuitChoice.
func searcher(items []string) func(input string, index int) bool {
	return func(input string, index int) bool {
		if index == 0 || len(input) == 0 {
			return false
		}

		return strings.HasPrefix(items[index], input)
	}
}
