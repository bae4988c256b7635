package collstoretest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

// testAbortedWriteLeavesGetAllUnchanged is the AT invariant: any failing
// add or update leaves getAll() identical to its pre-call result. Exercised
// by a rejected duplicate add and a rejected id-changing update.
func testAbortedWriteLeavesGetAllUnchanged(t *testing.T, newDB Factory) {
	ctx := context.Background()
	db := newDB(t)

	schema, err := keyschema.New(map[string]keyschema.FieldOptions{"email": {Unique: true}})
	require.NoError(t, err)
	coll, err := db.Collection(ctx, "accounts", schema)
	require.NoError(t, err)

	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "1", "email": "a@example.com"}))
	before := snapshotAll(t, ctx, coll)

	err = coll.Add(ctx, collstore.Record{"id": "2", "email": "a@example.com"})
	require.Error(t, err)
	assert.Equal(t, before, snapshotAll(t, ctx, coll))

	err = coll.Update(ctx, "email", "a@example.com", collstore.Record{"id": "2"})
	require.Error(t, err)
	assert.Equal(t, before, snapshotAll(t, ctx, coll))
}

func snapshotAll(t *testing.T, ctx context.Context, coll collstore.Collection) []collstore.Record {
	t.Helper()
	iter, err := coll.GetAll(ctx, "", nil)
	require.NoError(t, err)
	recs, err := collstore.CollectAll(ctx, iter)
	require.NoError(t, err)
	return recs
}
