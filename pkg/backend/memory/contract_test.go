package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/collstore/internal/collstoretest"
	"github.com/cuemby/collstore/pkg/collstore"

	_ "github.com/cuemby/collstore/pkg/backend/memory"
)

// TestMemoryContractSuite runs the shared backend-agnostic conformance
// suite against the in-process backend. Schema is fixed at a collection's
// first open here (sharedCollState never re-validates it against a later
// caller), so the wide-column index migration subtest is out of scope for
// this backend and Reopen is left nil.
func TestMemoryContractSuite(t *testing.T) {
	collstoretest.RunContractSuite(t, collstoretest.Suite{
		New: func(t *testing.T) collstore.Database {
			t.Helper()
			db, err := collstore.Connect(context.Background(), "memory://"+t.Name())
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close(context.Background()) })
			return db
		},
	})
}
