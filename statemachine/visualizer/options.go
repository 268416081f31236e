package visualizer

// Options configures the visualization output.
type Options struct {
	// ShowEvents labels each transition with the event that triggers it
	ShowEvents bool

	// ShowEffects lists the named effects of a state in its node
	ShowEffects bool

	// Direction controls diagram flow: "TD" (top-down) or "LR" (left-right)
	Direction string

	// HighlightPath highlights a specific state path through the diagram
	HighlightPath []string

	// SortStates emits states in natural name order instead of definition order
	SortStates bool

	// Theme controls the color scheme: "default", "dark", "forest"
	Theme string
}

// DefaultOptions returns sensible defaults for visualization.
func DefaultOptions() Options {
	return Options{
		ShowEvents:  true,
		ShowEffects: true,
		Direction:   "TD",
		Theme:       "default",
	}
}

// WithShowEvents enables/disables transition labels.
func (o Options) WithShowEvents(show bool) Options {
	o.ShowEvents = show

	return o
}

// WithShowEffects enables/disables effect details.
func (o Options) WithShowEffects(show bool) Options {
	o.ShowEffects = show

	return o
}

// WithDirection sets the diagram direction.
func (o Options) WithDirection(direction string) Options {
	o.Direction = direction

	return o
}

// WithHighlightPath sets states to highlight.
func (o Options) WithHighlightPath(path []string) Options {
	o.HighlightPath = path

	return o
}

// WithSortStates enables natural ordering of states.
func (o Options) WithSortStates(sorted bool) Options {
	o.SortStates = sorted

	return o
}

// WithTheme sets the color theme.
func (o Options) WithTheme(theme string) Options {
	o.Theme = theme

	return o
}
