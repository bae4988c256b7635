package collstore

import (
	"context"
	"sync"

	"github.com/cuemby/collstore/internal/keyschema"
)

// Database is a handle to a connected backend. It is created by Connect,
// mutated only by Collection (which lazily creates and caches collections),
// and torn down once by Close.
type Database interface {
	// Collection returns the named collection, creating it on first
	// request. Repeated calls with the same name return the same
	// instance; schema is only consulted on that first call.
	Collection(ctx context.Context, name string, schema keyschema.Schema) (Collection, error)

	// Close tears the handle down. Every subsequent call on the handle
	// or any collection it created fails with *ClosedHandleError;
	// in-flight calls are allowed to finish.
	Close(ctx context.Context) error
}

// CollectionFactory builds the backend-specific Collection for name the
// first time it is requested.
type CollectionFactory func(ctx context.Context, name string, schema keyschema.Schema, closed *ClosedFlag) (Collection, error)

type collEntry struct {
	once sync.Once
	coll Collection
	err  error
}

// BaseDatabase implements Database's collection cache and shared lifecycle
// state; backends embed it and supply a CollectionFactory and an optional
// close hook for their own teardown (closing a connection pool, awaiting
// in-flight requests, and so on).
type BaseDatabase struct {
	mu      sync.Mutex
	entries map[string]*collEntry
	closed  *ClosedFlag
	factory CollectionFactory
	onClose func(ctx context.Context) error
}

// NewBaseDatabase builds a BaseDatabase. onClose may be nil.
func NewBaseDatabase(factory CollectionFactory, onClose func(ctx context.Context) error) *BaseDatabase {
	return &BaseDatabase{
		entries: make(map[string]*collEntry),
		closed:  &ClosedFlag{},
		factory: factory,
		onClose: onClose,
	}
}

// Closed returns the shared ClosedFlag so a backend can hand it to every
// collection it creates.
func (d *BaseDatabase) Closed() *ClosedFlag { return d.closed }

func (d *BaseDatabase) Collection(ctx context.Context, name string, schema keyschema.Schema) (Collection, error) {
	if err := checkOpen(d.closed); err != nil {
		return nil, err
	}

	d.mu.Lock()
	e, ok := d.entries[name]
	if !ok {
		e = &collEntry{}
		d.entries[name] = e
	}
	d.mu.Unlock()

	e.once.Do(func() {
		e.coll, e.err = d.factory(ctx, name, schema, d.closed)
	})
	return e.coll, e.err
}

func (d *BaseDatabase) Close(ctx context.Context) error {
	d.closed.Set()
	if d.onClose != nil {
		return d.onClose(ctx)
	}
	return nil
}
