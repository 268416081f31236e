package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/amp-labs/amp-fsm/cli"
	"github.com/amp-labs/amp-fsm/logger"
	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/amp-labs/amp-fsm/statemachine/visualizer"
)

// visit is the per-state context of a played machine.
type visit struct {
	Hooks int
}

// session is the root context of a played machine.
type session struct {
	Effects []string
}

type playMachine = statemachine.Machine[visit, session]

// lockedWriter serializes writes from the async observer and the play loop.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.w.Write(p)
}

// playCatalog resolves every hook and effect name the definition uses to a
// function that reports the call on out.
func playCatalog(out io.Writer) *statemachine.Catalog[visit, session] {
	return statemachine.NewCatalog[visit, session]().
		WithFallbackHook(func(name string) statemachine.Hook[visit, session] {
			return func(ctx context.Context, peer string, s *visit, _ *session) error {
				s.Hooks++

				_, _ = fmt.Fprintf(out, "  hook %s on %s (peer %q)\n",
					name, statemachine.GetObservabilityLabels(ctx).CurrentState, peer)

				return nil
			}
		}).
		WithFallbackEffect(func(name string) statemachine.Effect[visit, session] {
			return func(ctx context.Context, _ *visit, root *session, data any) error {
				root.Effects = append(root.Effects, name)

				_, _ = fmt.Fprintf(out, "  effect %s on %s data=%v\n",
					name, statemachine.GetObservabilityLabels(ctx).CurrentState, data)

				return nil
			}
		})
}

func (a *app) play(ctx context.Context, args []string) error {
	fs := a.newFlagSet("play")
	events := fs.String("events", "", "comma separated events to trigger instead of prompting")
	async := fs.Bool("async", false, "print state changes from a background observer")
	render := fs.Bool("render", false, "print a diagram highlighting the final state")
	promptData := fs.Bool("data", false, "prompt for a payload with every event")
	verbose := fs.Bool("verbose", false, "log machine lifecycle events")

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

	out := &lockedWriter{w: a.out}

	var opts []statemachine.Option
	if *verbose {
		opts = append(opts, statemachine.WithLogger(statemachine.NewSlogLogger(logger.Get(ctx))))
	}

	m, err := statemachine.NewFromDefinition(def, playCatalog(out), session{}, opts...)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(out, cli.BannerAutoWidth(fmt.Sprintf("%s (%s)", m.Name(), m.ID()), cli.AlignCenter))

	printState := func(state string) {
		_, _ = fmt.Fprintf(out, "-> %s\n", state)
	}

	drain := func() {}

	if *async {
		observer := statemachine.NewAsyncObserver(printState)
		drain = sync.OnceFunc(observer.Close)
		defer drain()

		sub := m.States().Subscribe(observer.Observe)
		defer sub.Unsubscribe()
	} else {
		sub := m.States().Subscribe(printState)
		defer sub.Unsubscribe()
	}

	if err := m.Init(ctx); err != nil {
		return err
	}

	if list := splitList(*events); len(list) > 0 {
		err = a.playEvents(ctx, m, list)
	} else {
		err = a.playInteractive(ctx, m, out, *promptData)
	}

	if err != nil {
		return err
	}

	drain()

	_, _ = fmt.Fprintf(out, "final state: %s, effects run: %d\n", m.CurrentStateName(), len(m.Context().Effects))

	if *render {
		diagram, err := visualizer.GenerateMermaidFromMachine(m, visualizer.DefaultOptions())
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintln(out, diagram)
	}

	return nil
}

func (a *app) playEvents(ctx context.Context, m *playMachine, events []string) error {
	for _, event := range events {
		if err := m.Trigger(ctx, event, nil); err != nil {
			return logger.AnnotateError(err, "event", event, "state", m.CurrentStateName())
		}
	}

	return nil
}

func (a *app) playInteractive(ctx context.Context, m *playMachine, out io.Writer, promptData bool) error {
	for {
		choices := availableEvents(m)
		if len(choices) == 0 {
			_, _ = fmt.Fprintf(out, "%s has no events\n", m.CurrentStateName())

			return nil
		}

		event, err := a.prompter.Select("Event in "+m.CurrentStateName(), choices...)
		if errors.Is(err, cli.ErrQuit) {
			return nil
		}

		if err != nil {
			return err
		}

		var data any

		if promptData {
			payload, err := a.prompter.StringEmptyOk("Payload")
			if err != nil {
				return err
			}

			if payload != "" {
				data = payload
			}
		}

		if err := m.Trigger(ctx, event, data); err != nil {
			logger.Get(ctx).Error("trigger failed", "error",
				logger.AnnotateError(err, "event", event, "state", m.CurrentStateName()))
		}
	}
}

// availableEvents returns the distinct events the current state reacts to.
func availableEvents(m *playMachine) []string {
	var events []string

	for _, action := range m.AvailableTransitions() {
		if !slices.Contains(events, action.Event()) {
			events = append(events, action.Event())
		}
	}

	return events
}
