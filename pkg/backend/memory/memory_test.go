package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"

	_ "github.com/cuemby/collstore/pkg/backend/memory"
)

func schema(t *testing.T) keyschema.Schema {
	t.Helper()
	s, err := keyschema.New(map[string]keyschema.FieldOptions{
		"email": {Unique: true},
		"age":   {},
	})
	require.NoError(t, err)
	return s
}

func connectFresh(t *testing.T) collstore.Database {
	t.Helper()
	db, err := collstore.Connect(context.Background(), "memory://"+t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(context.Background()) })
	return db
}

func TestMemoryAddAndGet(t *testing.T) {
	ctx := context.Background()
	db := connectFresh(t)
	coll, err := db.Collection(ctx, "users", schema(t))
	require.NoError(t, err)

	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "1", "email": "a@example.com", "age": int64(30)}))

	rec, ok, err := coll.Get(ctx, "id", "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a@example.com", rec["email"])

	rec, ok, err = coll.Get(ctx, "email", "a@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", rec["id"])
}

func TestMemoryAddDuplicateID(t *testing.T) {
	ctx := context.Background()
	db := connectFresh(t)
	coll, err := db.Collection(ctx, "users", schema(t))
	require.NoError(t, err)

	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "1", "email": "a@example.com"}))
	err = coll.Add(ctx, collstore.Record{"id": "1", "email": "b@example.com"})
	require.Error(t, err)
	var dup *collstore.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "id", dup.Attribute)

	// rejected add must not have mutated storage
	rec, ok, err := coll.Get(ctx, "id", "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a@example.com", rec["email"])
}

func TestMemoryAddDuplicateUniqueIndex(t *testing.T) {
	ctx := context.Background()
	db := connectFresh(t)
	coll, err := db.Collection(ctx, "users", schema(t))
	require.NoError(t, err)

	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "1", "email": "a@example.com"}))
	err = coll.Add(ctx, collstore.Record{"id": "2", "email": "a@example.com"})
	require.Error(t, err)
	var dup *collstore.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "email", dup.Attribute)
}

func TestMemoryGetAllAndRemove(t *testing.T) {
	ctx := context.Background()
	db := connectFresh(t)
	coll, err := db.Collection(ctx, "users", schema(t))
	require.NoError(t, err)

	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "1", "email": "a@example.com", "age": int64(30)}))
	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "2", "email": "b@example.com", "age": int64(30)}))

	iter, err := coll.GetAll(ctx, "age", int64(30))
	require.NoError(t, err)
	recs, err := collstore.CollectAll(ctx, iter)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	n, err := coll.Remove(ctx, "id", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, err := coll.Get(ctx, "id", "1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryUpdateMerge(t *testing.T) {
	ctx := context.Background()
	db := connectFresh(t)
	coll, err := db.Collection(ctx, "users", schema(t))
	require.NoError(t, err)

	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "1", "email": "a@example.com", "age": int64(30)}))
	require.NoError(t, coll.Update(ctx, "id", "1", collstore.Record{"age": int64(31)}))

	rec, ok, err := coll.Get(ctx, "id", "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(31), rec["age"])
	assert.Equal(t, "a@example.com", rec["email"])
}

func TestMemoryUpdateRejectsIDChangeViaNonIDAttr(t *testing.T) {
	ctx := context.Background()
	db := connectFresh(t)
	coll, err := db.Collection(ctx, "users", schema(t))
	require.NoError(t, err)

	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "1", "email": "a@example.com"}))
	err = coll.Update(ctx, "email", "a@example.com", collstore.Record{"id": "2"})
	require.Error(t, err)
	var immutable *collstore.IDImmutableError
	require.ErrorAs(t, err, &immutable)
}

func TestMemoryUpdateUpsert(t *testing.T) {
	ctx := context.Background()
	db := connectFresh(t)
	coll, err := db.Collection(ctx, "users", schema(t))
	require.NoError(t, err)

	err = coll.Update(ctx, "id", "new", collstore.Record{"email": "n@example.com"}, collstore.WithUpsert())
	require.NoError(t, err)

	rec, ok, err := coll.Get(ctx, "id", "new")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "n@example.com", rec["email"])
}

func TestMemoryUpsertRequiresIDAttr(t *testing.T) {
	ctx := context.Background()
	db := connectFresh(t)
	coll, err := db.Collection(ctx, "users", schema(t))
	require.NoError(t, err)

	err = coll.Update(ctx, "email", "x@example.com", collstore.Record{"age": int64(1)}, collstore.WithUpsert())
	require.Error(t, err)
	var want *collstore.UpsertRequiresIDError
	require.ErrorAs(t, err, &want)
}

func TestMemoryNotIndexedAttr(t *testing.T) {
	ctx := context.Background()
	db := connectFresh(t)
	coll, err := db.Collection(ctx, "users", schema(t))
	require.NoError(t, err)

	_, _, err = coll.Get(ctx, "nickname", "x")
	require.Error(t, err)
	var want *collstore.NotIndexedError
	require.ErrorAs(t, err, &want)
}

func TestMemorySharedInstance(t *testing.T) {
	ctx := context.Background()
	name := "memory://" + t.Name()
	db1, err := collstore.Connect(ctx, name)
	require.NoError(t, err)
	db2, err := collstore.Connect(ctx, name)
	require.NoError(t, err)

	coll1, err := db1.Collection(ctx, "users", schema(t))
	require.NoError(t, err)
	require.NoError(t, coll1.Add(ctx, collstore.Record{"id": "1", "email": "a@example.com"}))

	coll2, err := db2.Collection(ctx, "users", schema(t))
	require.NoError(t, err)
	rec, ok, err := coll2.Get(ctx, "id", "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a@example.com", rec["email"])

	require.NoError(t, db1.Close(ctx))

	// closing db1's handle must not affect db2's, nor the shared data.
	_, _, err = coll2.Get(ctx, "id", "1")
	require.NoError(t, err)

	_, _, err = coll1.Get(ctx, "id", "1")
	require.Error(t, err)
	var closedErr *collstore.ClosedHandleError
	require.ErrorAs(t, err, &closedErr)
}

func TestMemorySimulatedLatency(t *testing.T) {
	ctx := context.Background()
	db, err := collstore.Connect(ctx, "memory://"+t.Name()+"?simulatedLatency=20")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(ctx) })

	coll, err := db.Collection(ctx, "users", schema(t))
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "1"}))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
