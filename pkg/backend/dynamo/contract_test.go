package dynamo_test

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

// runPrefixedURL appends a run-unique path segment to base so repeated runs
// of the contract suite against one live endpoint get their own tables
// instead of colliding with a prior run's schema.
func runPrefixedURL(t *testing.T, base string) string {
	t.Helper()
	u, err := url.Parse(base)
	require.NoError(t, err)
	u.Path = fmt.Sprintf("/ct%d", time.Now().UnixNano())
	return u.String()
}

// TestDynamoContractSuite runs the shared backend-agnostic conformance
// suite against a live DynamoDB (or DynamoDB Local) endpoint, including the
// wide-column index migration subtest: Reopen connects a second handle
// against the same table prefix, driving the real tableManager.ensure
// reconciliation path rather than a stub.
func TestDynamoContractSuite(t *testing.T) {
	base := requireDynamo(t)
	runURL := runPrefixedURL(t, base)

	collstoretest.RunContractSuite(t, collstoretest.Suite{
		New: func(t *testing.T) collstore.Database {
			t.Helper()
			db, err := collstore.Connect(context.Background(), runURL)
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close(context.Background()) })
			return db
		},
		Reopen: func(t *testing.T, _ collstore.Database) collstore.Database {
			t.Helper()
			db, err := collstore.Connect(context.Background(), runURL)
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close(context.Background()) })
			return db
		},
	})
}
