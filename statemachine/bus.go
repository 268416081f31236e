package statemachine

import (
	"slices"

	"go.uber.org/atomic"
)

// Observer receives the name of every state the machine enters.
type Observer func(state string)

// ReplayPolicy decides whether a new subscriber is handed the current state
// at subscription time.
type ReplayPolicy int

const (
	// ReplayFirstSubscriber replays the current state to the first subscriber
	// ever registered on the bus, filtered streams included. Later subscribers
	// only see emissions published after they subscribed.
	ReplayFirstSubscriber ReplayPolicy = iota
	// ReplayEverySubscriber replays the current state to every new subscriber.
	ReplayEverySubscriber
	// ReplayNone never replays.
	ReplayNone
)

func (p ReplayPolicy) String() string {
	switch p {
	case ReplayFirstSubscriber:
		return "first_subscriber"
	case ReplayEverySubscriber:
		return "every_subscriber"
	case ReplayNone:
		return "none"
	default:
		return "unknown"
	}
}

// Bus broadcasts state names to its subscribers. It has a single writer (the
// machine owning it) and delivers synchronously, in subscription order.
type Bus struct {
	policy     ReplayPolicy
	current    string
	hasCurrent bool
	replayed   bool
	subs       []*Subscription
	onChange   func(subscribers int)
}

// NewBus creates an empty bus with the given replay policy.
func NewBus(policy ReplayPolicy) *Bus {
	return &Bus{
		policy: policy,
	}
}

// Current returns the last published state, if any.
func (b *Bus) Current() (string, bool) {
	return b.current, b.hasCurrent
}

// Publish records state as current and hands it to every active subscriber.
// Subscriptions created while publishing do not receive this emission.
func (b *Bus) Publish(state string) {
	b.current = state
	b.hasCurrent = true

	for _, sub := range slices.Clone(b.subs) {
		sub.deliver(state)
	}

	b.prune()
}

// Subscribe registers observer for all future emissions.
func (b *Bus) Subscribe(observer Observer) *Subscription {
	return b.Stream().Subscribe(observer)
}

// Stream returns the unfiltered stream of the bus.
func (b *Bus) Stream() *Stream {
	return &Stream{bus: b}
}

// Filter returns a stream forwarding only emissions equal to state.
func (b *Bus) Filter(state string) *Stream {
	return b.Stream().Filter(state)
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	count := 0

	for _, sub := range b.subs {
		if sub.Active() {
			count++
		}
	}

	return count
}

func (b *Bus) subscribe(observer Observer, accept func(string) bool) *Subscription {
	sub := &Subscription{
		observer: observer,
		accept:   accept,
		active:   atomic.NewBool(true),
	}

	b.prune()
	b.subs = append(b.subs, sub)
	b.notifyChange()

	if b.shouldReplay() {
		sub.deliver(b.current)
	}

	return sub
}

// shouldReplay is called once per new subscription. The first subscription
// always spends the first-subscriber replay, even when there is nothing to
// replay yet: it will see the first publish live.
func (b *Bus) shouldReplay() bool {
	switch b.policy {
	case ReplayFirstSubscriber:
		first := !b.replayed
		b.replayed = true

		return first && b.hasCurrent
	case ReplayEverySubscriber:
		return b.hasCurrent
	default:
		return false
	}
}

func (b *Bus) prune() {
	before := len(b.subs)

	b.subs = slices.DeleteFunc(b.subs, func(sub *Subscription) bool {
		return !sub.Active()
	})

	if len(b.subs) != before {
		b.notifyChange()
	}
}

func (b *Bus) notifyChange() {
	if b.onChange != nil {
		b.onChange(len(b.subs))
	}
}

// Stream is a view on a bus, optionally filtered. A completed stream never
// delivers anything.
type Stream struct {
	bus       *Bus
	filters   []string
	completed bool
}

// completedStream is returned for names that cannot match anything.
func completedStream() *Stream {
	return &Stream{completed: true}
}

// Completed reports whether the stream can no longer produce emissions.
func (s *Stream) Completed() bool {
	return s.completed
}

// Filter narrows the stream to emissions equal to state.
func (s *Stream) Filter(state string) *Stream {
	return &Stream{
		bus:       s.bus,
		filters:   append(slices.Clone(s.filters), state),
		completed: s.completed,
	}
}

// Subscribe registers observer on the stream. Subscribing to a completed
// stream returns an inactive subscription.
func (s *Stream) Subscribe(observer Observer) *Subscription {
	if s.completed || s.bus == nil || observer == nil {
		return &Subscription{active: atomic.NewBool(false)}
	}

	filters := slices.Clone(s.filters)

	return s.bus.subscribe(observer, func(state string) bool {
		for _, want := range filters {
			if state != want {
				return false
			}
		}

		return true
	})
}

// Subscription is the handle of a registered observer.
type Subscription struct {
	observer Observer
	accept   func(string) bool
	active   *atomic.Bool
}

// Unsubscribe stops further deliveries. It is idempotent and may be called
// from any goroutine, including from inside the observer.
func (s *Subscription) Unsubscribe() {
	s.active.Store(false)
}

// Active reports whether the subscription still receives emissions.
func (s *Subscription) Active() bool {
	return s.active.Load()
}

func (s *Subscription) deliver(state string) {
	if !s.Active() || !s.accept(state) {
		return
	}

	s.observer(state)
}
