package testing

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Matcher errors.
var (
	ErrNoMatchersPassed    = errors.New("no matchers passed")
	ErrStateNotVisited     = errors.New("state was not visited")
	ErrTransitionNotTaken  = errors.New("transition was not taken")
	ErrUnexpectedState     = errors.New("unexpected current state")
	ErrUnexpectedPublishes = errors.New("unexpected published states")
	ErrNoFailure           = errors.New("no hook or effect failed")
)

// Snapshot is the recorded trace plus the current state.
type Snapshot struct {
	Trace   []TraceEntry
	Current string
}

func (s Snapshot) published() []string {
	var states []string

	for _, entry := range s.Trace {
		if entry.Kind == EntryPublish {
			states = append(states, entry.State)
		}
	}

	return states
}

// Matcher defines an assertion matcher interface.
type Matcher interface {
	Match(snapshot Snapshot) error
	Description() string
}

// StateWasVisited creates a matcher that checks if a state was published.
func StateWasVisited(name string) Matcher {
	return &stateVisitedMatcher{stateName: name}
}

type stateVisitedMatcher struct {
	stateName string
}

func (m *stateVisitedMatcher) Match(snapshot Snapshot) error {
	if slices.Contains(snapshot.published(), m.stateName) {
		return nil
	}

	return fmt.Errorf("%w: '%s'", ErrStateNotVisited, m.stateName)
}

func (m *stateVisitedMatcher) Description() string {
	return fmt.Sprintf("state '%s' should be visited", m.stateName)
}

// TransitionWasTaken creates a matcher that checks if a transition completed:
// the target was entered from the source without error and then published.
func TransitionWasTaken(from, to string) Matcher {
	return &transitionTakenMatcher{from: from, to: to}
}

type transitionTakenMatcher struct {
	from string
	to   string
}

func (m *transitionTakenMatcher) Match(snapshot Snapshot) error {
	trace := snapshot.Trace

	for i := range len(trace) - 1 {
		enter, publish := trace[i], trace[i+1]

		if enter.Kind == EntryEnter && enter.State == m.to && enter.Peer == m.from && enter.Error == nil &&
			publish.Kind == EntryPublish && publish.State == m.to {
			return nil
		}
	}

	return fmt.Errorf("%w: from '%s' to '%s'", ErrTransitionNotTaken, m.from, m.to)
}

func (m *transitionTakenMatcher) Description() string {
	return fmt.Sprintf("transition from '%s' to '%s' should be taken", m.from, m.to)
}

// CurrentStateIs creates a matcher on the current state.
func CurrentStateIs(name string) Matcher {
	return &currentStateMatcher{stateName: name}
}

type currentStateMatcher struct {
	stateName string
}

func (m *currentStateMatcher) Match(snapshot Snapshot) error {
	if snapshot.Current == m.stateName {
		return nil
	}

	return fmt.Errorf("%w: expected '%s', got '%s'", ErrUnexpectedState, m.stateName, snapshot.Current)
}

func (m *currentStateMatcher) Description() string {
	return fmt.Sprintf("current state should be '%s'", m.stateName)
}

// PublishedExactly creates a matcher on the full list of published states.
func PublishedExactly(states ...string) Matcher {
	return &publishedMatcher{states: states}
}

type publishedMatcher struct {
	states []string
}

func (m *publishedMatcher) Match(snapshot Snapshot) error {
	got := snapshot.published()
	if slices.Equal(got, m.states) {
		return nil
	}

	return fmt.Errorf("%w: expected [%s], got [%s]", ErrUnexpectedPublishes,
		strings.Join(m.states, ","), strings.Join(got, ","))
}

func (m *publishedMatcher) Description() string {
	return fmt.Sprintf("published states should be [%s]", strings.Join(m.states, ","))
}

// FailedWith creates a matcher that checks a recorded hook or effect returned target.
func FailedWith(target error) Matcher {
	return &failedMatcher{target: target}
}

type failedMatcher struct {
	target error
}

func (m *failedMatcher) Match(snapshot Snapshot) error {
	for _, entry := range snapshot.Trace {
		if entry.Error != nil && errors.Is(entry.Error, m.target) {
			return nil
		}
	}

	return fmt.Errorf("%w: expected %v", ErrNoFailure, m.target)
}

func (m *failedMatcher) Description() string {
	return fmt.Sprintf("a hook or effect should fail with %v", m.target)
}

// AllOf creates a matcher that requires all matchers to pass.
func AllOf(matchers ...Matcher) Matcher {
	return &allOfMatcher{matchers: matchers}
}

type allOfMatcher struct {
	matchers []Matcher
}

func (m *allOfMatcher) Match(snapshot Snapshot) error {
	for _, matcher := range m.matchers {
		err := matcher.Match(snapshot)
		if err != nil {
			return fmt.Errorf("%s: %w", matcher.Description(), err)
		}
	}

	return nil
}

func (m *allOfMatcher) Description() string {
	return fmt.Sprintf("all of %d matchers should pass", len(m.matchers))
}

// AnyOf creates a matcher that requires at least one matcher to pass.
func AnyOf(matchers ...Matcher) Matcher {
	return &anyOfMatcher{matchers: matchers}
}

type anyOfMatcher struct {
	matchers []Matcher
}

func (m *anyOfMatcher) Match(snapshot Snapshot) error {
	for _, matcher := range m.matchers {
		if matcher.Match(snapshot) == nil {
			return nil
		}
	}

	return ErrNoMatchersPassed
}

func (m *anyOfMatcher) Description() string {
	return fmt.Sprintf("any of %d matchers should pass", len(m.matchers))
}
