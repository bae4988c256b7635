package collstoretest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

// testWideColumnIndexMigration is scenario 3 (Wide-column index migration):
// a collection created with a non-unique indexed attribute, then reopened
// against the same storage with that attribute now unique, must carry over
// every pre-existing match and reject a duplicate add afterward.
func testWideColumnIndexMigration(t *testing.T, s Suite) {
	ctx := context.Background()
	first := s.New(t)

	loose, err := keyschema.New(map[string]keyschema.FieldOptions{"foo": {}})
	require.NoError(t, err)
	coll, err := first.Collection(ctx, "migrating", loose)
	require.NoError(t, err)
	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "1", "foo": "v"}))
	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "2", "bar": "x"}))

	second := s.Reopen(t, first)
	strict, err := keyschema.New(map[string]keyschema.FieldOptions{"foo": {Unique: true}})
	require.NoError(t, err)
	reopened, err := second.Collection(ctx, "migrating", strict)
	require.NoError(t, err)

	iter, err := reopened.GetAll(ctx, "foo", "v")
	require.NoError(t, err)
	recs, err := collstore.CollectAll(ctx, iter)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "1", recs[0]["id"])

	err = reopened.Add(ctx, collstore.Record{"id": "3", "foo": "v"})
	require.Error(t, err)
	var dup *collstore.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "foo", dup.Attribute)
}
