package collstoretest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

// testMultiMatchUpdateRollsBackOnCollision covers an AT case the single-id
// aborted-write scenario can't reach: an Update matching more than one id
// whose delta collides on a unique field partway through the batch. The
// whole call must fail and leave every matched record untouched, not just
// the one id that lost the race.
func testMultiMatchUpdateRollsBackOnCollision(t *testing.T, newDB Factory) {
	ctx := context.Background()
	db := newDB(t)

	schema, err := keyschema.New(map[string]keyschema.FieldOptions{
		"code":   {Unique: true},
		"status": {Unique: false},
	})
	require.NoError(t, err)
	coll, err := db.Collection(ctx, "gadgets", schema)
	require.NoError(t, err)

	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "1", "code": "A", "status": "pending"}))
	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "2", "code": "B", "status": "pending"}))
	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "3", "code": "C", "status": "pending"}))

	before := snapshotAll(t, ctx, coll)

	// All three ids match "status" == "pending"; setting every matched
	// record's "code" to "A" collides for ids 2 and 3 against id 1 (and
	// against each other). The whole batch must be rejected.
	err = coll.Update(ctx, "status", "pending", collstore.Record{"code": "A"})
	require.Error(t, err)
	var dup *collstore.DuplicateError
	assert.ErrorAs(t, err, &dup)

	assert.Equal(t, before, snapshotAll(t, ctx, coll))
}
