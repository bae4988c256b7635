package dynamo_test

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

	_ "github.com/cuemby/collstore/pkg/backend/dynamo"
)

// requireDynamo skips the test unless COLLSTORE_DYNAMO_URL is set; this
// suite is meant to run against DynamoDB Local
// (dynamodb://us-east-1/test?endpoint=http://localhost:8000), since there
// is no in-pack fake to exercise CreateTable/GSI reconciliation against.
func requireDynamo(t *testing.T) string {
	t.Helper()
	url := os.Getenv("COLLSTORE_DYNAMO_URL")
	if url == "" {
		t.Skip("COLLSTORE_DYNAMO_URL not set; skipping dynamo backend integration test")
	}
	return url
}

func uniqueCollName() string {
	return fmt.Sprintf("ct%d", time.Now().UnixNano())
}

func TestDynamoAddGetUpdateRemove(t *testing.T) {
	url := requireDynamo(t)
	ctx := context.Background()

	db, err := collstore.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(ctx) })

	schema, err := keyschema.New(map[string]keyschema.FieldOptions{
		"email": {Unique: true},
		"team":  {},
	})
	require.NoError(t, err)
	coll, err := db.Collection(ctx, uniqueCollName(), schema)
	require.NoError(t, err)

	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "1", "email": "a@example.com", "team": "eng", "age": int64(30)}))

	rec, ok, err := coll.Get(ctx, "email", "a@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", rec["id"])
	assert.EqualValues(t, 30, rec["age"])

	err = coll.Add(ctx, collstore.Record{"id": "2", "email": "a@example.com", "team": "eng"})
	require.Error(t, err)
	var dup *collstore.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "email", dup.Attribute)

	recs, err := collstore.CollectAll(ctx, mustGetAll(t, coll, "team", "eng"))
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	require.NoError(t, coll.Update(ctx, "id", "1", collstore.Record{"age": int64(31)}))
	rec, _, err = coll.Get(ctx, "id", "1")
	require.NoError(t, err)
	assert.EqualValues(t, 31, rec["age"])

	n, err := coll.Remove(ctx, "id", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func mustGetAll(t *testing.T, coll collstore.Collection, attr string, value any) collstore.RecordIter {
	t.Helper()
	iter, err := coll.GetAll(context.Background(), attr, value)
	require.NoError(t, err)
	return iter
}

func TestDynamoUpsert(t *testing.T) {
	url := requireDynamo(t)
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
