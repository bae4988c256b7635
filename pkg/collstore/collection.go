package collstore

import (
	"context"

	"github.com/cuemby/collstore/internal/keyschema"
)

// IDField is the name of the mandatory, always-unique primary key field.
const IDField = keyschema.IDField

// Collection is the public, backend-agnostic capability set every
// collstore backend exposes. Every operation is asynchronous in the sense
// that it may suspend on backend I/O; ctx cancellation propagates to
// whatever the backend is waiting on.
type Collection interface {
	// Add stores record, failing with *DuplicateError if doing so would
	// violate id-uniqueness or a unique-index constraint.
	Add(ctx context.Context, record Record) error

	// Get returns the one record with record[attr] == value, or (nil,
	// false) if none matches. attr must be "id" or an indexed field.
	// If returnFields is non-empty, only those present fields are
	// returned.
	Get(ctx context.Context, attr string, value any, returnFields ...string) (Record, bool, error)

	// GetAll returns every record with record[attr] == value. An empty
	// attr returns every record in the collection. Order is unspecified.
	GetAll(ctx context.Context, attr string, value any, returnFields ...string) (RecordIter, error)

	// Update merges delta into every record matching attr == value. If
	// delta contains "id" it must equal the existing record's id. With
	// WithUpsert and no match, a new record is inserted; attr must then
	// be "id".
	Update(ctx context.Context, attr string, value any, delta Record, opts ...UpdateOption) error

	// Remove deletes every record matching attr == value and returns how
	// many were removed.
	Remove(ctx context.Context, attr string, value any) (int, error)

	// Indices exposes the collection's key schema.
	Indices() keyschema.Schema

	// Name returns the collection's name.
	Name() string
}

// RecordIter is a pull iterator over a GetAll result, so backends that
// cannot materialise an entire scan in memory (paged Scans, cursors) still
// satisfy "must tolerate a collection of any size".
type RecordIter interface {
	// Next advances to the next record. ok is false and err is nil once
	// the iterator is exhausted.
	Next(ctx context.Context) (rec Record, ok bool, err error)
	// Close releases any resources held by the iterator. Safe to call
	// multiple times.
	Close() error
}

// CollectAll drains iter into a slice. It is a convenience for backends and
// callers that do not need streaming.
func CollectAll(ctx context.Context, iter RecordIter) ([]Record, error) {
	defer iter.Close()
	var out []Record
	for {
		rec, ok, err := iter.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, rec)
	}
}

// sliceIter adapts an already-materialised []Record to RecordIter, for
// backends (memory, small mongo/postgres/redis results) that fetch
// everything up front.
type sliceIter struct {
	records []Record
	pos     int
}

// NewSliceIter returns a RecordIter over an in-memory slice.
func NewSliceIter(records []Record) RecordIter {
	return &sliceIter{records: records}
}

func (s *sliceIter) Next(ctx context.Context) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if s.pos >= len(s.records) {
		return nil, false, nil
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, true, nil
}

func (s *sliceIter) Close() error { return nil }

// UpdateOptions configures Update.
type UpdateOptions struct {
	Upsert bool
}

// UpdateOption mutates UpdateOptions.
type UpdateOption func(*UpdateOptions)

// WithUpsert requests insert-if-absent semantics from Update.
func WithUpsert() UpdateOption {
	return func(o *UpdateOptions) { o.Upsert = true }
}

func resolveUpdateOptions(opts []UpdateOption) UpdateOptions {
	var o UpdateOptions
	for _, f := range opts {
		f(&o)
	}
	return o
}

// Primitives is the storage-strategy hook every backend implements. A
// BaseCollection wraps a Primitives value with the ready-gate, the
// closed-handle check, and the schema/id-immutability validation common to
// every backend (§4.2 of the design spec), so backends only need to
// implement the actual storage strategy.
type Primitives interface {
	Add(ctx context.Context, record Record) error
	Get(ctx context.Context, attr string, value any, returnFields []string) (Record, bool, error)
	GetAll(ctx context.Context, attr string, value any, returnFields []string) (RecordIter, error)
	// Update is called only after BaseCollection has validated that attr
	// is indexed and, when attr == "id", that delta does not contradict
	// value. The backend is responsible for matching-record lookups,
	// the upsert insert path, and rejecting a delta.id that disagrees
	// with a matched non-id record (collstore.IDImmutableError).
	Update(ctx context.Context, attr string, value any, delta Record, upsert bool) error
	Remove(ctx context.Context, attr string, value any) (int, error)
}

// BaseCollection implements Collection by awaiting a readyGate, checking a
// shared ClosedFlag, validating the operation against a keyschema.Schema,
// and delegating to Primitives.
type BaseCollection struct {
	name   string
	schema keyschema.Schema
	closed *ClosedFlag
	gate   *readyGate
	prim   Primitives
}

// NewCollection builds a BaseCollection. If initFn is non-nil it runs
// asynchronously; every public call on the returned Collection awaits its
// first completion before touching prim. A failed initFn is re-raised to
// every waiter (§4.2's "ready gate").
func NewCollection(name string, schema keyschema.Schema, closed *ClosedFlag, prim Primitives, initFn func(ctx context.Context) error) *BaseCollection {
	c := &BaseCollection{
		name:   name,
		schema: schema,
		closed: closed,
		gate:   newReadyGate(),
		prim:   prim,
	}
	c.gate.runInit(context.Background(), initFn)
	return c
}

func (c *BaseCollection) Name() string                 { return c.name }
func (c *BaseCollection) Indices() keyschema.Schema     { return c.schema }

func (c *BaseCollection) await(ctx context.Context) error {
	if err := checkOpen(c.closed); err != nil {
		return err
	}
	if err := c.gate.await(ctx); err != nil {
		return err
	}
	return checkOpen(c.closed)
}

func (c *BaseCollection) checkFilterAttr(attr string) error {
	if attr != "" && !c.schema.IsIndexed(attr) {
		return &NotIndexedError{Attribute: attr}
	}
	return nil
}

func (c *BaseCollection) Add(ctx context.Context, record Record) error {
	if err := c.await(ctx); err != nil {
		return err
	}
	if _, ok := record[IDField]; !ok {
		return &ConfigRejectedError{Reason: "record is missing required field \"id\""}
	}
	return c.prim.Add(ctx, record)
}

func (c *BaseCollection) Get(ctx context.Context, attr string, value any, returnFields ...string) (Record, bool, error) {
	if err := c.await(ctx); err != nil {
		return nil, false, err
	}
	if err := c.checkFilterAttr(attr); err != nil {
		return nil, false, err
	}
	return c.prim.Get(ctx, attr, value, returnFields)
}

func (c *BaseCollection) GetAll(ctx context.Context, attr string, value any, returnFields ...string) (RecordIter, error) {
	if err := c.await(ctx); err != nil {
		return nil, err
	}
	if err := c.checkFilterAttr(attr); err != nil {
		return nil, err
	}
	return c.prim.GetAll(ctx, attr, value, returnFields)
}

func (c *BaseCollection) Update(ctx context.Context, attr string, value any, delta Record, opts ...UpdateOption) error {
	if err := c.await(ctx); err != nil {
		return err
	}
	if err := c.checkFilterAttr(attr); err != nil {
		return err
	}
	o := resolveUpdateOptions(opts)
	if o.Upsert && attr != IDField {
		return &UpsertRequiresIDError{}
	}
	if attr == IDField {
		if id, ok := delta[IDField]; ok && id != value {
			return &IDImmutableError{}
		}
	}
	return c.prim.Update(ctx, attr, value, delta, o.Upsert)
}

func (c *BaseCollection) Remove(ctx context.Context, attr string, value any) (int, error) {
	if err := c.await(ctx); err != nil {
		return 0, err
	}
	if err := c.checkFilterAttr(attr); err != nil {
		return 0, err
	}
	return c.prim.Remove(ctx, attr, value)
}
