package collstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrimitives struct {
	records map[any]Record
}

func newFakePrimitives() *fakePrimitives {
	return &fakePrimitives{records: map[any]Record{}}
}

func (f *fakePrimitives) Add(ctx context.Context, record Record) error {
	id := record[IDField]
	if _, ok := f.records[id]; ok {
		return &DuplicateError{Collection: "things", Attribute: IDField}
	}
	f.records[id] = record.Clone()
	return nil
}

func (f *fakePrimitives) Get(ctx context.Context, attr string, value any, returnFields []string) (Record, bool, error) {
	if attr == IDField {
		rec, ok := f.records[value]
		return rec, ok, nil
	}
	for _, rec := range f.records {
		if rec[attr] == value {
			return rec, true, nil
		}
	}
	return nil, false, nil
}

func (f *fakePrimitives) GetAll(ctx context.Context, attr string, value any, returnFields []string) (RecordIter, error) {
	var out []Record
	for _, rec := range f.records {
		if attr == "" || rec[attr] == value {
			out = append(out, rec)
		}
	}
	return NewSliceIter(out), nil
}

func (f *fakePrimitives) Update(ctx context.Context, attr string, value any, delta Record, upsert bool) error {
	rec, ok, _ := f.Get(ctx, attr, value, nil)
	if !ok {
		if upsert {
			f.records[value] = delta.Clone()
			return nil
		}
		return nil
	}
	for k, v := range delta {
		rec[k] = v
	}
	return nil
}

func (f *fakePrimitives) Remove(ctx context.Context, attr string, value any) (int, error) {
	n := 0
	for id, rec := range f.records {
		if attr == "" || rec[attr] == value {
			delete(f.records, id)
			n++
		}
	}
	return n, nil
}

func newTestCollection(t *testing.T, initFn func(context.Context) error) (*BaseCollection, *ClosedFlag) {
	t.Helper()
	schema, err := keyschema.New(map[string]keyschema.FieldOptions{"bar": {Unique: true}})
	require.NoError(t, err)
	closed := &ClosedFlag{}
	c := NewCollection("things", schema, closed, newFakePrimitives(), initFn)
	return c, closed
}

func TestBaseCollectionClosedHandle(t *testing.T) {
	c, closed := newTestCollection(t, nil)
	closed.Set()
	err := c.Add(context.Background(), Record{IDField: "1"})
	var cerr *ClosedHandleError
	assert.ErrorAs(t, err, &cerr)
}

func TestBaseCollectionNotIndexed(t *testing.T) {
	c, _ := newTestCollection(t, nil)
	_, _, err := c.Get(context.Background(), "nope", "x")
	var nerr *NotIndexedError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "nope", nerr.Attribute)
}

func TestBaseCollectionUpsertRequiresID(t *testing.T) {
	c, _ := newTestCollection(t, nil)
	err := c.Update(context.Background(), "bar", "v", Record{"bar": "v"}, WithUpsert())
	var uerr *UpsertRequiresIDError
	assert.ErrorAs(t, err, &uerr)
}

func TestBaseCollectionIDImmutable(t *testing.T) {
	c, _ := newTestCollection(t, nil)
	require.NoError(t, c.Add(context.Background(), Record{IDField: "1"}))
	err := c.Update(context.Background(), IDField, "1", Record{IDField: "2"})
	var ierr *IDImmutableError
	assert.ErrorAs(t, err, &ierr)
}

func TestBaseCollectionAwaitsReadyGate(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	c, _ := newTestCollection(t, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})

	<-started
	done := make(chan error, 1)
	go func() {
		done <- c.Add(context.Background(), Record{IDField: "1"})
	}()

	select {
	case <-done:
		t.Fatal("Add returned before init completed")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Add never returned after init completed")
	}
}

func TestBaseCollectionInitFailureReraised(t *testing.T) {
	boom := errors.New("boom")
	c, _ := newTestCollection(t, func(ctx context.Context) error { return boom })
	err := c.Add(context.Background(), Record{IDField: "1"})
	require.ErrorIs(t, err, boom)

	// A second caller after the gate has already fired sees the same error.
	err2 := c.Add(context.Background(), Record{IDField: "1"})
	require.ErrorIs(t, err2, boom)
}
