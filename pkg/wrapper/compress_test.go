package wrapper_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
	"github.com/cuemby/collstore/pkg/wrapper"

	_ "github.com/cuemby/collstore/pkg/backend/memory"
)

func newColl(t *testing.T, cfg map[string]keyschema.FieldOptions) collstore.Collection {
	t.Helper()
	return newNamedColl(t, "items", cfg)
}

// newNamedColl opens collection name in the test's own memory instance;
// calls with the same name in one test share the same records.
func newNamedColl(t *testing.T, name string, cfg map[string]keyschema.FieldOptions) collstore.Collection {
	t.Helper()
	ctx := context.Background()
	db, err := collstore.Connect(ctx, "memory://"+t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(ctx) })
	schema, err := keyschema.New(cfg)
	require.NoError(t, err)
	coll, err := db.Collection(ctx, name, schema)
	require.NoError(t, err)
	return coll
}

func TestCompressRoundTripSmallValue(t *testing.T) {
	ctx := context.Background()
	base := newColl(t, nil)
	coll := wrapper.Stack(base, wrapper.Compress("notes"))

	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "1", "notes": "short"}))
	rec, ok, err := coll.Get(ctx, "id", "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "short", rec["notes"])
}

func TestCompressRoundTripLargeValue(t *testing.T) {
	ctx := context.Background()
	base := newColl(t, nil)
	coll := wrapper.Stack(base, wrapper.Compress("notes"))

	big := strings.Repeat("x", 1000)
	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "1", "notes": big}))

	rec, ok, err := coll.Get(ctx, "id", "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, big, rec["notes"])

	// storage actually holds a compressed blob, not the literal string
	stored, ok, err := base.Get(ctx, "id", "1")
	require.NoError(t, err)
	require.True(t, ok)
	blob, ok := stored["notes"].([]byte)
	require.True(t, ok)
	assert.Less(t, len(blob), len(big))
}

func TestCompressRejectsFilterOnWrappedField(t *testing.T) {
	ctx := context.Background()
	base := newColl(t, map[string]keyschema.FieldOptions{"notes": {}})
	coll := wrapper.Stack(base, wrapper.Compress("notes"))

	_, _, err := coll.Get(ctx, "notes", "short")
	require.Error(t, err)
	var want *collstore.WrapperRefusedQueryError
	require.ErrorAs(t, err, &want)
}
