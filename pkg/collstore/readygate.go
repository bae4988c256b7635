package collstore

import "context"

// readyGate is a one-shot broadcast: it starts pending and transitions to
// either ok or failed exactly once. Every public collection operation awaits
// it before touching storage, so a collection's (possibly asynchronous)
// backend initialisation only ever runs once, and every caller - whether it
// arrived before or after initialisation finished - observes the same
// outcome.
type readyGate struct {
	done chan struct{}
	err  error
}

func newReadyGate() *readyGate {
	return &readyGate{done: make(chan struct{})}
}

// fire transitions the gate to its terminal state. Calling fire more than
// once panics: it is a programmer error, not a runtime condition.
func (g *readyGate) fire(err error) {
	g.err = err
	close(g.done)
}

// await blocks until the gate fires or ctx is cancelled, whichever comes
// first.
func (g *readyGate) await(ctx context.Context) error {
	select {
	case <-g.done:
		return g.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runInit starts initFn in a goroutine and fires the gate with its result.
// If initFn is nil the gate fires immediately with a nil error.
func (g *readyGate) runInit(ctx context.Context, initFn func(ctx context.Context) error) {
	if initFn == nil {
		g.fire(nil)
		return
	}
	go func() {
		g.fire(initFn(ctx))
	}()
}
