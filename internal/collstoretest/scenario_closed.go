package collstoretest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

// testClosedHandle is scenario 6 (Closed handle): after close(), every
// subsequent call fails with ClosedHandleError, but an add already in
// flight when close() is invoked still completes successfully.
func testClosedHandle(t *testing.T, newDB Factory) {
	ctx := context.Background()
	db := newDB(t)

	schema, err := keyschema.New(nil)
	require.NoError(t, err)
	coll, err := db.Collection(ctx, "sessions", schema)
	require.NoError(t, err)

	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	var addErr error
	go func() {
		defer wg.Done()
		close(started)
		addErr = coll.Add(ctx, collstore.Record{"id": "inflight"})
	}()
	<-started
	// Give the in-flight Add a head start into the backend before closing,
	// without depending on exact timing.
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, db.Close(ctx))
	wg.Wait()
	assert.NoError(t, addErr, "an add started before close must still complete")

	err = coll.Add(ctx, collstore.Record{"id": "after-close"})
	require.Error(t, err)
	var closedErr *collstore.ClosedHandleError
	assert.ErrorAs(t, err, &closedErr)

	_, _, err = coll.Get(ctx, "id", "inflight")
	require.Error(t, err)
	assert.ErrorAs(t, err, &closedErr)
}
