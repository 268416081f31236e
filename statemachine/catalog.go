package statemachine

import (
	"context"
	"fmt"
	"log/slog"
)

// Catalog resolves the hook and effect names used in a Definition.
// Applications register their functions under the names their YAML uses.
type Catalog[S, R any] struct {
	effects        map[string]Effect[S, R]
	hooks          map[string]Hook[S, R]
	fallbackEffect func(name string) Effect[S, R]
	fallbackHook   func(name string) Hook[S, R]
}

// NewCatalog creates a catalog with the built-in "noop" and "log" entries.
func NewCatalog[S, R any]() *Catalog[S, R] {
	catalog := &Catalog[S, R]{
		effects: make(map[string]Effect[S, R]),
		hooks:   make(map[string]Hook[S, R]),
	}

	catalog.RegisterEffect("noop", func(context.Context, *S, *R, any) error { return nil })
	catalog.RegisterEffect("log", logEffect[S, R])
	catalog.RegisterHook("noop", func(context.Context, string, *S, *R) error { return nil })
	catalog.RegisterHook("log", logHook[S, R])

	return catalog
}

// RegisterEffect registers an effect under name, replacing any previous one.
func (c *Catalog[S, R]) RegisterEffect(name string, effect Effect[S, R]) *Catalog[S, R] {
	c.effects[name] = effect

	return c
}

// RegisterHook registers a hook under name, replacing any previous one.
func (c *Catalog[S, R]) RegisterHook(name string, hook Hook[S, R]) *Catalog[S, R] {
	c.hooks[name] = hook

	return c
}

// WithFallbackEffect resolves effect names that were not registered.
func (c *Catalog[S, R]) WithFallbackEffect(fallback func(name string) Effect[S, R]) *Catalog[S, R] {
	c.fallbackEffect = fallback

	return c
}

// WithFallbackHook resolves hook names that were not registered.
func (c *Catalog[S, R]) WithFallbackHook(fallback func(name string) Hook[S, R]) *Catalog[S, R] {
	c.fallbackHook = fallback

	return c
}

// Effect resolves an effect by name.
func (c *Catalog[S, R]) Effect(name string) (Effect[S, R], error) {
	if effect, ok := c.effects[name]; ok {
		return effect, nil
	}

	if c.fallbackEffect != nil {
		return c.fallbackEffect(name), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownEffect, name)
}

// Hook resolves a hook by name. An empty name resolves to no hook.
func (c *Catalog[S, R]) Hook(name string) (Hook[S, R], error) {
	if name == "" {
		return nil, nil
	}

	if hook, ok := c.hooks[name]; ok {
		return hook, nil
	}

	if c.fallbackHook != nil {
		return c.fallbackHook(name), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownHook, name)
}

// BuildStates turns a definition into states, resolving names through catalog.
func BuildStates[S, R any](def *Definition, catalog *Catalog[S, R]) ([]State[S, R], error) {
	if catalog == nil {
		catalog = NewCatalog[S, R]()
	}

	states := make([]State[S, R], 0, len(def.States))

	for _, stateDef := range def.States {
		state, err := buildState(stateDef, catalog)
		if err != nil {
			return nil, fmt.Errorf("failed to build state %s: %w", stateDef.Name, err)
		}

		states = append(states, state)
	}

	return states, nil
}

// NewFromDefinition validates def and creates a machine from it.
func NewFromDefinition[S, R any](
	def *Definition,
	catalog *Catalog[S, R],
	root R,
	opts ...Option,
) (*Machine[S, R], error) {
	err := def.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid definition: %w", err)
	}

	states, err := BuildStates(def, catalog)
	if err != nil {
		return nil, err
	}

	return New(Config[S, R]{
		Name:         def.Name,
		InitialState: def.InitialState,
		States:       states,
		RootContext:  root,
		Extra:        def.Extra,
	}, opts...)
}

func buildState[S, R any](def StateDefinition, catalog *Catalog[S, R]) (State[S, R], error) {
	onEnter, err := catalog.Hook(def.OnEnter)
	if err != nil {
		return State[S, R]{}, err
	}

	onExit, err := catalog.Hook(def.OnExit)
	if err != nil {
		return State[S, R]{}, err
	}

	state := State[S, R]{
		Name:    def.Name,
		OnEnter: onEnter,
		OnExit:  onExit,
		Actions: make([]Action[S, R], 0, len(def.Actions)),
	}

	for i, actionDef := range def.Actions {
		if actionDef.Effect == "" {
			state.Actions = append(state.Actions, Goto[S, R](actionDef.Event, actionDef.Target))

			continue
		}

		effect, err := catalog.Effect(actionDef.Effect)
		if err != nil {
			return State[S, R]{}, fmt.Errorf("action %d: %w", i, err)
		}

		state.Actions = append(state.Actions,
			GotoAndDo(actionDef.Event, actionDef.Target, effect).Named(actionDef.Effect))
	}

	return state, nil
}

func logEffect[S, R any](ctx context.Context, _ *S, _ *R, data any) error {
	labels := GetObservabilityLabels(ctx)

	slog.InfoContext(ctx, "Effect executed",
		"machine", labels.Machine,
		"state", labels.CurrentState,
		"event", labels.Event,
		"data", data,
	)

	return nil
}

func logHook[S, R any](ctx context.Context, peer string, _ *S, _ *R) error {
	labels := GetObservabilityLabels(ctx)

	slog.InfoContext(ctx, "Hook executed",
		"machine", labels.Machine,
		"state", labels.CurrentState,
		"peer", peer,
	)

	return nil
}
