//go:build mongocontract

// The shared conformance suite needs a real mongod to exercise unique/sparse
// index creation and duplicate-key reporting; mtest-style fakes don't model
// that, so this file is gated behind the mongocontract build tag rather than
// COLLSTORE_MONGO_URL alone, keeping it out of the default test run.
package mongo_test

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/collstore/internal/collstoretest"
	"github.com/cuemby/collstore/pkg/collstore"
)

func runScopedURL(t *testing.T, base string) string {
	t.Helper()
	u, err := url.Parse(base)
	require.NoError(t, err)
	u.Path = fmt.Sprintf("/collstore_ct_%d", time.Now().UnixNano())
	return u.String()
}

// TestMongoContractSuite runs the shared backend-agnostic conformance suite
// against a real mongod. Reopen is left nil: a mongo collection's indexes
// are declared once in newDatabase's initFn and never reconciled against a
// later schema, so the wide-column migration subtest does not apply here.
func TestMongoContractSuite(t *testing.T) {
	base := requireMongo(t)
	runURL := runScopedURL(t, base)

	collstoretest.RunContractSuite(t, collstoretest.Suite{
		New: func(t *testing.T) collstore.Database {
			t.Helper()
			db, err := collstore.Connect(context.Background(), runURL)
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close(context.Background()) })
			return db
		},
	})
}
