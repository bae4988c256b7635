package mongo_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"

	_ "github.com/cuemby/collstore/pkg/backend/mongo"
)

// requireMongo skips the test unless COLLSTORE_MONGO_URL points at a real
// server; there is no in-pack fake MongoDB to exercise index creation and
// duplicate-key detection against.
func requireMongo(t *testing.T) string {
	t.Helper()
	url := os.Getenv("COLLSTORE_MONGO_URL")
	if url == "" {
		t.Skip("COLLSTORE_MONGO_URL not set; skipping mongo backend integration test")
	}
	return url
}

func uniqueCollName() string {
	return fmt.Sprintf("collstore_test_%d", time.Now().UnixNano())
}

func TestMongoAddGetUpdateRemove(t *testing.T) {
	url := requireMongo(t)
	ctx := context.Background()

	db, err := collstore.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(ctx) })

	schema, err := keyschema.New(map[string]keyschema.FieldOptions{"email": {Unique: true}})
	require.NoError(t, err)
	coll, err := db.Collection(ctx, uniqueCollName(), schema)
	require.NoError(t, err)

	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "1", "email": "a@example.com", "age": 30}))

	rec, ok, err := coll.Get(ctx, "email", "a@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", rec["id"])
	assert.EqualValues(t, 30, rec["age"])

	err = coll.Add(ctx, collstore.Record{"id": "2", "email": "a@example.com"})
	require.Error(t, err)
	var dup *collstore.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "email", dup.Attribute)

	require.NoError(t, coll.Update(ctx, "id", "1", collstore.Record{"age": 31}))
	rec, _, err = coll.Get(ctx, "id", "1")
	require.NoError(t, err)
	assert.EqualValues(t, 31, rec["age"])

	n, err := coll.Remove(ctx, "id", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMongoUpsert(t *testing.T) {
	url := requireMongo(t)
	ctx := context.Background()

	db, err := collstore.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(ctx) })

	schema, err := keyschema.New(nil)
	require.NoError(t, err)
	coll, err := db.Collection(ctx, uniqueCollName(), schema)
	require.NoError(t, err)

	err = coll.Update(ctx, "id", "missing", collstore.Record{"name": "new"}, collstore.WithUpsert())
	require.NoError(t, err)

	rec, ok, err := coll.Get(ctx, "id", "missing")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", rec["name"])
}
