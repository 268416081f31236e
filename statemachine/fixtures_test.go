package statemachine

import (
	"context"
	"errors"
)

type visits struct {
	Enters int
	Exits  int
}

type journal struct {
	Entries []string
	Count   int
}

type (
	testState  = State[visits, journal]
	testAction = Action[visits, journal]
	testEffect = Effect[visits, journal]
)

var errBoom = errors.New("boom")

func goTo(event, target string) testAction {
	return Goto[visits, journal](event, target)
}

func do(event string, effect testEffect) testAction {
	return Do(event, effect)
}

// tracked returns a state whose hooks count visits and write to the root journal.
func tracked(name string, actions ...testAction) testState {
	return testState{
		Name: name,
		OnEnter: func(_ context.Context, from string, s *visits, root *journal) error {
			s.Enters++
			root.Entries = append(root.Entries, "enter:"+name+"<-"+from)

			return nil
		},
		OnExit: func(_ context.Context, to string, s *visits, root *journal) error {
			s.Exits++
			root.Entries = append(root.Entries, "exit:"+name+"->"+to)

			return nil
		},
		Actions: actions,
	}
}

// note returns an effect appending entry to the root journal.
func note(entry string) testEffect {
	return func(_ context.Context, _ *visits, root *journal, _ any) error {
		root.Entries = append(root.Entries, entry)

		return nil
	}
}

// basicStates is the DEFAULT -> FOO -> BAR -> END machine.
func basicStates() []testState {
	return []testState{
		tracked(DefaultInitialState, goTo("foo", "FOO"), goTo("bar", "BAR")),
		tracked("FOO", goTo("bar", "BAR"), goTo("end", "END")),
		tracked("BAR",
			goTo("foo", "FOO"),
			goTo("end", "END"),
			do("act", note("act")),
		),
		tracked("END"),
	}
}

func newBasicMachine(opts ...Option) (*Machine[visits, journal], error) {
	return New(Config[visits, journal]{
		Name:   "basic",
		States: basicStates(),
	}, append([]Option{WithMetrics(false)}, opts...)...)
}

// collect subscribes to stream and returns the slice the emissions land in.
func collect(stream *Stream) (*[]string, *Subscription) {
	var seen []string

	sub := stream.Subscribe(func(state string) {
		seen = append(seen, state)
	})

	return &seen, sub
}
