package collstoretest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

// testUniqueIndexEnforcement is scenario 1 (Unique-index enforcement): a
// unique attribute rejects a second record sharing its value, and a getAll
// on a different indexed attribute still sees only the surviving record.
// It also covers the IDU/UIU invariant ("at no observable moment do two
// records share a value of a unique attribute") by checking getAll on the
// unique attribute itself before and after the rejected add.
func testUniqueIndexEnforcement(t *testing.T, newDB Factory) {
	ctx := context.Background()
	db := newDB(t)

	schema, err := keyschema.New(map[string]keyschema.FieldOptions{
		"bar": {Unique: true},
		"baz": {},
	})
	require.NoError(t, err)
	coll, err := db.Collection(ctx, "widgets", schema)
	require.NoError(t, err)

	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "2", "foo": "abc", "bar": "def", "baz": "ghi"}))

	err = coll.Add(ctx, collstore.Record{"id": "3", "foo": "ABC", "bar": "def", "baz": "ghi"})
	require.Error(t, err)
	var dup *collstore.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "bar", dup.Attribute)

	iter, err := coll.GetAll(ctx, "baz", "ghi")
	require.NoError(t, err)
	recs, err := collstore.CollectAll(ctx, iter)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "2", recs[0]["id"])

	iter, err = coll.GetAll(ctx, "bar", "def")
	require.NoError(t, err)
	recs, err = collstore.CollectAll(ctx, iter)
	require.NoError(t, err)
	assert.Len(t, recs, 1, "IDU/UIU: no two records may ever share a unique attribute's value")
}
