package collstoretest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

// testIndexedValueProperty is the IVP invariant: for every record present
// after any operation and any indexed attribute f, getAll(f, R[f]) includes
// R. Exercised across an add, an update that changes the indexed value, and
// a remove.
func testIndexedValueProperty(t *testing.T, newDB Factory) {
	ctx := context.Background()
	db := newDB(t)

	schema, err := keyschema.New(map[string]keyschema.FieldOptions{"status": {}})
	require.NoError(t, err)
	coll, err := db.Collection(ctx, "tasks", schema)
	require.NoError(t, err)

	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "1", "status": "open"}))
	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "2", "status": "open"}))
	assertGetAllContains(t, ctx, coll, "status", "open", "1")
	assertGetAllContains(t, ctx, coll, "status", "open", "2")

	require.NoError(t, coll.Update(ctx, "id", "1", collstore.Record{"status": "closed"}))
	assertGetAllContains(t, ctx, coll, "status", "closed", "1")
	assertGetAllExcludes(t, ctx, coll, "status", "open", "1")
	assertGetAllContains(t, ctx, coll, "status", "open", "2")

	n, err := coll.Remove(ctx, "id", "2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assertGetAllExcludes(t, ctx, coll, "status", "open", "2")
}

func assertGetAllContains(t *testing.T, ctx context.Context, coll collstore.Collection, attr string, value any, wantID string) {
	t.Helper()
	iter, err := coll.GetAll(ctx, attr, value)
	require.NoError(t, err)
	recs, err := collstore.CollectAll(ctx, iter)
	require.NoError(t, err)
	for _, r := range recs {
		if r["id"] == wantID {
			return
		}
	}
	t.Fatalf("getAll(%q, %v) = %v, want it to include id %q", attr, value, recs, wantID)
}

func assertGetAllExcludes(t *testing.T, ctx context.Context, coll collstore.Collection, attr string, value any, excludeID string) {
	t.Helper()
	iter, err := coll.GetAll(ctx, attr, value)
	require.NoError(t, err)
	recs, err := collstore.CollectAll(ctx, iter)
	require.NoError(t, err)
	for _, r := range recs {
		if r["id"] == excludeID {
			t.Fatalf("getAll(%q, %v) = %v, want it to exclude id %q", attr, value, recs, excludeID)
		}
	}
}
