package statemachine

// StateBuilder provides a fluent API for constructing a State without
// spelling out type parameters on every action.
type StateBuilder[S, R any] struct {
	state State[S, R]
}

// NewState starts a state definition.
func NewState[S, R any](name string) *StateBuilder[S, R] {
	return &StateBuilder[S, R]{
		state: State[S, R]{Name: name},
	}
}

// OnEnter sets the enter hook.
func (b *StateBuilder[S, R]) OnEnter(hook Hook[S, R]) *StateBuilder[S, R] {
	b.state.OnEnter = hook

	return b
}

// OnExit sets the exit hook.
func (b *StateBuilder[S, R]) OnExit(hook Hook[S, R]) *StateBuilder[S, R] {
	b.state.OnExit = hook

	return b
}

// WithContext sets the per-state context.
func (b *StateBuilder[S, R]) WithContext(stateCtx *S) *StateBuilder[S, R] {
	b.state.Context = stateCtx

	return b
}

// Goto adds a pure transition.
func (b *StateBuilder[S, R]) Goto(event, target string) *StateBuilder[S, R] {
	b.state.Actions = append(b.state.Actions, Goto[S, R](event, target))

	return b
}

// Do adds a pure effect.
func (b *StateBuilder[S, R]) Do(event string, effect Effect[S, R]) *StateBuilder[S, R] {
	b.state.Actions = append(b.state.Actions, Do(event, effect))

	return b
}

// GotoAndDo adds a transition with an effect.
func (b *StateBuilder[S, R]) GotoAndDo(event, target string, effect Effect[S, R]) *StateBuilder[S, R] {
	b.state.Actions = append(b.state.Actions, GotoAndDo(event, target, effect))

	return b
}

// Action adds a prebuilt action, e.g. one returned by Action.Named.
func (b *StateBuilder[S, R]) Action(action Action[S, R]) *StateBuilder[S, R] {
	b.state.Actions = append(b.state.Actions, action)

	return b
}

// Build returns the state.
func (b *StateBuilder[S, R]) Build() State[S, R] {
	return b.state.clone()
}

// Builder provides a fluent API for constructing machines.
type Builder[S, R any] struct {
	config  Config[S, R]
	options []Option
}

// NewBuilder creates a new machine builder.
func NewBuilder[S, R any](name string) *Builder[S, R] {
	return &Builder[S, R]{
		config: Config[S, R]{
			Name: name,
		},
	}
}

// WithInitialState sets the initial state.
func (b *Builder[S, R]) WithInitialState(state string) *Builder[S, R] {
	b.config.InitialState = state

	return b
}

// WithRootContext sets the root context.
func (b *Builder[S, R]) WithRootContext(root R) *Builder[S, R] {
	b.config.RootContext = root

	return b
}

// WithExtra stores a caller-defined configuration value.
func (b *Builder[S, R]) WithExtra(key string, value any) *Builder[S, R] {
	if b.config.Extra == nil {
		b.config.Extra = make(map[string]any)
	}

	b.config.Extra[key] = value

	return b
}

// WithOptions appends machine options.
func (b *Builder[S, R]) WithOptions(opts ...Option) *Builder[S, R] {
	b.options = append(b.options, opts...)

	return b
}

// AddState adds a state.
func (b *Builder[S, R]) AddState(state State[S, R]) *Builder[S, R] {
	b.config.States = append(b.config.States, state)

	return b
}

// AddStates adds several states.
func (b *Builder[S, R]) AddStates(states ...State[S, R]) *Builder[S, R] {
	b.config.States = append(b.config.States, states...)

	return b
}

// Build constructs the machine. All added states are registered as one batch.
func (b *Builder[S, R]) Build() (*Machine[S, R], error) {
	return New(b.config, b.options...)
}
