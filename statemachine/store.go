package statemachine

import "maps"

// contextStore owns the root context and the pass-through configuration bag.
// Hooks and effects get the live pointer; everyone else gets a copy.
type contextStore[R any] struct {
	root  *R
	extra map[string]any
}

func newContextStore[R any](root R, extra map[string]any) *contextStore[R] {
	return &contextStore[R]{
		root:  &root,
		extra: maps.Clone(extra),
	}
}

// live is only handed to hooks and effects.
func (c *contextStore[R]) live() *R {
	return c.root
}

// snapshot is a shallow copy of the root context.
func (c *contextStore[R]) snapshot() R {
	return *c.root
}

func (c *contextStore[R]) lookup(key string) (any, bool) {
	val, ok := c.extra[key]

	return val, ok
}
