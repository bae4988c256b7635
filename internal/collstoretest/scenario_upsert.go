package collstoretest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

// testUpsertByID is scenario 2 (Upsert by id): an upsert against an empty
// collection inserts, a second upsert with the same id updates the same
// record in place rather than creating a duplicate.
func testUpsertByID(t *testing.T, newDB Factory) {
	ctx := context.Background()
	db := newDB(t)

	schema, err := keyschema.New(map[string]keyschema.FieldOptions{"message": {}})
	require.NoError(t, err)
	coll, err := db.Collection(ctx, "notes", schema)
	require.NoError(t, err)

	require.NoError(t, coll.Update(ctx, "id", "10", collstore.Record{"message": "hi"}, collstore.WithUpsert()))

	rec, ok, err := coll.Get(ctx, "id", "10")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, collstore.Record{"id": "10", "message": "hi"}, rec)

	require.NoError(t, coll.Update(ctx, "id", "10", collstore.Record{"message": "bye"}, collstore.WithUpsert()))

	rec, ok, err = coll.Get(ctx, "id", "10")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bye", rec["message"])

	iter, err := coll.GetAll(ctx, "", nil)
	require.NoError(t, err)
	recs, err := collstore.CollectAll(ctx, iter)
	require.NoError(t, err)
	assert.Len(t, recs, 1, "a repeated upsert on the same id must update, not insert a second record")
}
