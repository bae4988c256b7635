package redis_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"

	_ "github.com/cuemby/collstore/pkg/backend/redis"
)

// requireRedis skips the test unless COLLSTORE_REDIS_URL points at a real
// server; there is no in-pack fake Redis to exercise the Lua scripts
// against.
func requireRedis(t *testing.T) string {
	t.Helper()
	url := os.Getenv("COLLSTORE_REDIS_URL")
	if url == "" {
		t.Skip("COLLSTORE_REDIS_URL not set; skipping redis backend integration test")
	}
	return url
}

func TestRedisAddGetRemove(t *testing.T) {
	url := requireRedis(t)
	ctx := context.Background()

	db, err := collstore.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(ctx) })

	schema, err := keyschema.New(map[string]keyschema.FieldOptions{"email": {Unique: true}})
	require.NoError(t, err)
	coll, err := db.Collection(ctx, "redis_test_users", schema)
	require.NoError(t, err)

	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "1", "email": "a@example.com"}))

	rec, ok, err := coll.Get(ctx, "email", "a@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", rec["id"])

	err = coll.Add(ctx, collstore.Record{"id": "2", "email": "a@example.com"})
	require.Error(t, err)
	var dup *collstore.DuplicateError
	require.ErrorAs(t, err, &dup)

	n, err := coll.Remove(ctx, "id", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
