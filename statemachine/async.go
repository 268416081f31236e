package statemachine

import (
	"github.com/alitto/pond/v2"
	"go.uber.org/atomic"
)

// AsyncObserver moves a slow observer off the goroutine driving the machine.
// Emissions are queued on a single-worker pool, so the observer still sees
// them one at a time and in publish order.
type AsyncObserver struct {
	pool     pond.Pool
	observer Observer
	pending  *atomic.Int64
}

// NewAsyncObserver wraps observer. Call Close when done to drain the queue.
func NewAsyncObserver(observer Observer) *AsyncObserver {
	return &AsyncObserver{
		pool:     pond.NewPool(1),
		observer: observer,
		pending:  atomic.NewInt64(0),
	}
}

// Observe is the Observer to subscribe with.
func (a *AsyncObserver) Observe(state string) {
	a.pending.Inc()

	err := a.pool.Go(func() {
		defer a.pending.Dec()

		a.observer(state)
	})
	if err != nil {
		// Pool already stopped: the emission is dropped.
		a.pending.Dec()
	}
}

// Pending returns the number of emissions not yet handled.
func (a *AsyncObserver) Pending() int64 {
	return a.pending.Load()
}

// Close waits for queued emissions and stops the worker.
func (a *AsyncObserver) Close() {
	a.pool.StopAndWait()
}
