package statemachine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultInitialState is used when Config.InitialState is empty.
	DefaultInitialState = "DEFAULT"
	// DefaultName is used when Config.Name is empty.
	DefaultName = "statemachine"
)

// Config configures a Machine.
type Config[S, R any] struct {
	// Name labels logs, spans and metrics. Defaults to DefaultName.
	Name string
	// InitialState is entered by Init. Defaults to DefaultInitialState.
	InitialState string
	// States is registered as a single batch by New.
	States []State[S, R]
	// RootContext is copied once into the machine and shared by every hook
	// and effect for the machine's lifetime.
	RootContext R
	// Replay decides which subscribers get the current state on subscribe.
	Replay ReplayPolicy
	// Extra holds caller-defined keys. The machine keeps them but never reads them.
	Extra map[string]any
}

// Option is a functional option for configuring a Machine.
type Option func(*options)

type options struct {
	logger  Logger
	metrics bool
	replay  *ReplayPolicy
}

// WithLogger sets the logger for state machine execution.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDefaultLogger logs through slog.Default().
func WithDefaultLogger() Option {
	return WithLogger(NewDefaultLogger())
}

// WithReplayPolicy overrides Config.Replay.
func WithReplayPolicy(policy ReplayPolicy) Option {
	return func(o *options) {
		o.replay = &policy
	}
}

// WithMetrics enables or disables Prometheus metrics. Enabled by default.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metrics = enabled
	}
}

// Machine is the runtime FSM instance. It is driven by a single goroutine:
// Init, Trigger, AddStates and RemoveState must not be called concurrently.
type Machine[S, R any] struct {
	id           string
	name         string
	initialState string
	registry     *registry[S, R]
	store        *contextStore[R]
	bus          *Bus
	current      string
	initialized  bool
	logger       Logger
	metrics      bool
}

// New creates a machine and registers cfg.States as one batch.
func New[S, R any](cfg Config[S, R], opts ...Option) (*Machine[S, R], error) {
	o := options{metrics: true}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.Name == "" {
		cfg.Name = DefaultName
	}

	if cfg.InitialState == "" {
		cfg.InitialState = DefaultInitialState
	}

	replay := cfg.Replay
	if o.replay != nil {
		replay = *o.replay
	}

	m := &Machine[S, R]{
		id:           uuid.New().String(),
		name:         cfg.Name,
		initialState: cfg.InitialState,
		registry:     newRegistry[S, R](),
		store:        newContextStore(cfg.RootContext, cfg.Extra),
		bus:          NewBus(replay),
		logger:       o.logger,
		metrics:      o.metrics,
	}

	if m.metrics {
		gauge := subscribersGauge.WithLabelValues(sanitizeMachine(m.name))
		m.bus.onChange = func(subscribers int) {
			gauge.Set(float64(subscribers))
		}
	}

	if len(cfg.States) > 0 {
		err := m.AddStates(cfg.States...)
		if err != nil {
			return nil, fmt.Errorf("invalid states: %w", err)
		}
	}

	return m, nil
}

// ID returns the unique identifier of this machine instance.
func (m *Machine[S, R]) ID() string {
	return m.id
}

// Name returns the configured machine name.
func (m *Machine[S, R]) Name() string {
	return m.name
}

// Extra returns a caller-defined configuration value.
func (m *Machine[S, R]) Extra(key string) (any, bool) {
	return m.store.lookup(key)
}

// Context returns a shallow copy of the root context.
func (m *Machine[S, R]) Context() R {
	return m.store.snapshot()
}

// Initialized reports whether Init succeeded.
func (m *Machine[S, R]) Initialized() bool {
	return m.initialized
}

// AddStates registers a batch of states. If any action of the batch targets
// a state that is neither registered nor in the batch, nothing is registered.
func (m *Machine[S, R]) AddStates(states ...State[S, R]) error {
	return m.registry.register(states)
}

// RemoveState removes a state by name. Targets pointing at it are not revalidated.
func (m *Machine[S, R]) RemoveState(name string) *Machine[S, R] {
	m.registry.remove(name)

	return m
}

// State returns a copy of a registered state.
func (m *Machine[S, R]) State(name string) (State[S, R], bool) {
	return m.registry.get(name)
}

// StateNames returns the registered state names in natural order.
func (m *Machine[S, R]) StateNames() []string {
	return m.registry.names()
}

// CurrentStateName returns the name of the current state, or "" before Init.
func (m *Machine[S, R]) CurrentStateName() string {
	return m.current
}

// CurrentState returns the definition of the current state.
func (m *Machine[S, R]) CurrentState() (State[S, R], error) {
	if !m.initialized {
		return State[S, R]{}, ErrNotInitialized
	}

	state, ok := m.registry.get(m.current)
	if !ok {
		return State[S, R]{}, WrapStateError(m.current, ErrStateNotFound)
	}

	return state, nil
}

// AvailableTransitions returns the actions of the current state.
func (m *Machine[S, R]) AvailableTransitions() []Action[S, R] {
	state, err := m.CurrentState()
	if err != nil {
		return nil
	}

	return state.Actions
}

// States returns the stream of every state the machine enters.
func (m *Machine[S, R]) States() *Stream {
	return m.bus.Stream()
}

// On returns the stream of entries into the named state. If the name is not
// registered at call time, the returned stream is already completed.
func (m *Machine[S, R]) On(name string) *Stream {
	if !m.registry.has(name) {
		return completedStream()
	}

	return m.bus.Filter(name)
}

// Init enters the initial state and publishes it. The enter hook of the
// initial state runs with an empty from-state; if it fails the machine stays
// uninitialized.
func (m *Machine[S, R]) Init(ctx context.Context) (err error) {
	if m.initialized {
		return ErrAlreadyInitialized
	}

	labels := m.labels(m.initialState, "")
	ctx = withObservabilityLabels(ctx, labels)

	ctx, span := startInitSpan(ctx, labels)
	defer func() { endSpan(span, err) }()

	state, ok := m.registry.get(m.initialState)
	if !ok {
		return fmt.Errorf("%w: %q", ErrMissingInitialState, m.initialState)
	}

	err = m.enter(ctx, state, "")
	if err != nil {
		return err
	}

	m.current = state.Name
	m.initialized = true
	m.bus.Publish(state.Name)

	return nil
}

// Trigger dispatches event to the current state. Every action bound to the
// event runs its effect in declaration order; the first one decides where
// the machine moves, if anywhere. An event the current state does not
// declare is ignored.
func (m *Machine[S, R]) Trigger(ctx context.Context, event string, data any) (err error) {
	if !m.initialized {
		return ErrNotInitialized
	}

	from := m.current
	labels := m.labels(from, event)
	ctx = withObservabilityLabels(ctx, labels)

	ctx, span := startTriggerSpan(ctx, labels)

	outcome := outcomeHandled

	defer func() {
		if err != nil {
			outcome = outcomeError
		}

		m.countTrigger(from, event, outcome)
		endSpan(span, err)
	}()

	state, ok := m.registry.get(from)
	if !ok {
		return WrapStateError(from, ErrStateNotFound)
	}

	matches := state.Match(event)
	if len(matches) == 0 {
		outcome = outcomeIgnored

		if m.logger != nil {
			m.logger.EventIgnored(ctx, from, event)
		}

		return nil
	}

	target, move := matches[0].Target()

	for _, action := range matches {
		effect, ok := action.Effect()
		if !ok {
			continue
		}

		err = m.runEffect(ctx, state, event, effect, data)
		if err != nil {
			return err
		}
	}

	if !move {
		return nil
	}

	return m.transition(ctx, event, target)
}

// transition moves from the current state to the named one. The destination
// must be registered and declared as a target by the current state, even if
// the caller already checked. The current state only advances once both
// hooks have succeeded; subscribers see the new state after that.
func (m *Machine[S, R]) transition(ctx context.Context, event, to string) (err error) {
	from := m.current

	current, ok := m.registry.get(from)
	if !ok {
		return WrapTransitionError(from, to, ErrStateNotFound)
	}

	next, ok := m.registry.get(to)
	if !ok {
		return WrapTransitionError(from, to, ErrUnknownTarget)
	}

	if !current.HasTarget(to) {
		return WrapTransitionError(from, to, ErrIllegalTransition)
	}

	ctx, span := startTransitionSpan(ctx, from, to, m.labels(from, event))
	defer func() { endSpan(span, err) }()

	err = m.exit(ctx, current, to)
	if err != nil {
		return err
	}

	err = m.enter(ctx, next, from)
	if err != nil {
		return err
	}

	m.current = to

	if m.logger != nil {
		m.logger.TransitionExecuted(ctx, from, to, event)
	}

	if m.metrics {
		transitionsTotal.WithLabelValues(sanitizeMachine(m.name), from, to).Inc()
	}

	m.bus.Publish(to)

	return nil
}

func (m *Machine[S, R]) enter(ctx context.Context, state State[S, R], from string) error {
	ctx = m.relabel(ctx, state.Name)

	var err error
	if state.OnEnter != nil {
		err = state.OnEnter(ctx, from, state.Context, m.store.live())
	}

	if m.logger != nil {
		m.logger.StateEntered(ctx, state.Name, from, err)
	}

	return err
}

func (m *Machine[S, R]) exit(ctx context.Context, state State[S, R], to string) error {
	ctx = m.relabel(ctx, state.Name)

	var err error
	if state.OnExit != nil {
		err = state.OnExit(ctx, to, state.Context, m.store.live())
	}

	if m.logger != nil {
		m.logger.StateExited(ctx, state.Name, to, err)
	}

	return err
}

func (m *Machine[S, R]) runEffect(
	ctx context.Context,
	state State[S, R],
	event string,
	effect Effect[S, R],
	data any,
) error {
	start := time.Now()
	err := effect(ctx, state.Context, m.store.live(), data)
	elapsed := time.Since(start)

	if m.logger != nil {
		m.logger.EffectCompleted(ctx, state.Name, event, elapsed, err)
	}

	if m.metrics {
		effectDuration.WithLabelValues(sanitizeMachine(m.name), state.Name, event).Observe(elapsed.Seconds())
	}

	return err
}

func (m *Machine[S, R]) countTrigger(state, event, outcome string) {
	if !m.metrics {
		return
	}

	triggersTotal.WithLabelValues(sanitizeMachine(m.name), sanitizeState(state), sanitizeEvent(event, outcome), outcome).Inc()
}

func (m *Machine[S, R]) labels(state, event string) ObservabilityLabels {
	return ObservabilityLabels{
		MachineID:    m.id,
		Machine:      m.name,
		CurrentState: state,
		Event:        event,
	}
}

// relabel points the context labels at the state whose hook is about to run.
func (m *Machine[S, R]) relabel(ctx context.Context, state string) context.Context {
	return withObservabilityLabels(ctx, m.labels(state, GetObservabilityLabels(ctx).Event))
}
