package collstoretest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

const (
	largeRecordCount = 64
	largeRecordSize  = 256 << 10 // 256KiB, large enough to force a backend past any single-page/item optimism
)

// testLargeRecordRoundTrip exercises RecordIter's documented contract that
// a collection "must tolerate a collection of any size": largeRecordCount
// records carrying a largeRecordSize binary blob each are written, then
// read back individually and via a full GetAll scan, verifying the blob
// survives serialise/deserialise byte for byte.
func testLargeRecordRoundTrip(t *testing.T, newDB Factory) {
	ctx := context.Background()
	db := newDB(t)

	schema, err := keyschema.New(map[string]keyschema.FieldOptions{"bucket": {}})
	require.NoError(t, err)
	coll, err := db.Collection(ctx, "blobs", schema)
	require.NoError(t, err)

	cache := openFixtureCache(t)
	blobs := cache.blobs(t, largeRecordCount, largeRecordSize)

	for i, blob := range blobs {
		rec := collstore.Record{
			"id":     fmt.Sprintf("b%d", i),
			"bucket": "all",
			"data":   blob,
		}
		require.NoError(t, coll.Add(ctx, rec))
	}

	for i, blob := range blobs {
		rec, ok, err := coll.Get(ctx, "id", fmt.Sprintf("b%d", i))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, blob, rec["data"])
	}

	iter, err := coll.GetAll(ctx, "bucket", "all")
	require.NoError(t, err)
	recs, err := collstore.CollectAll(ctx, iter)
	require.NoError(t, err)
	assert.Len(t, recs, largeRecordCount)
}
