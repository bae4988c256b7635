// Package collstoretest runs one conformance suite against any collstore
// backend factory, grounded on the teacher's private/kvstore/testsuite
// pattern (test_crud.go, test_range.go) observed in the retrieval pack: a
// backend's own _test.go file supplies a Factory and calls RunContractSuite,
// instead of hand-copying the same add/get/getAll/update/remove assertions
// into every backend package.
package collstoretest

import (
	"testing"

	"github.com/cuemby/collstore/pkg/collstore"
)

// Factory opens a fresh, empty Database for one subtest. Implementations
// should register a t.Cleanup that closes the handle.
type Factory func(t *testing.T) collstore.Database

// Suite configures RunContractSuite for one backend. Reopen is optional:
// backends that persist state independently of any single Database handle
// and reconcile a changed schema when a collection is reopened can supply
// it to additionally exercise the wide-column index migration scenario;
// backends that do not (including the named in-process backend, whose
// schema is fixed at a collection's first open) leave it nil and skip that
// subtest.
type Suite struct {
	New    Factory
	Reopen func(t *testing.T, first collstore.Database) collstore.Database
}

// RunContractSuite runs every backend-agnostic invariant and end-to-end
// scenario from the storage contract against s.New. Each subtest opens its
// own collection(s) so suites are safe to run with -parallel even against a
// shared-instance backend.
func RunContractSuite(t *testing.T, s Suite) {
	t.Helper()

	t.Run("UniqueIndexEnforcement", func(t *testing.T) { testUniqueIndexEnforcement(t, s.New) })
	t.Run("UpsertByID", func(t *testing.T) { testUpsertByID(t, s.New) })
	t.Run("IndexedValueProperty", func(t *testing.T) { testIndexedValueProperty(t, s.New) })
	t.Run("AbortedWriteLeavesGetAllUnchanged", func(t *testing.T) { testAbortedWriteLeavesGetAllUnchanged(t, s.New) })
	t.Run("MultiMatchUpdateRollsBackOnCollision", func(t *testing.T) { testMultiMatchUpdateRollsBackOnCollision(t, s.New) })
	t.Run("ClosedHandle", func(t *testing.T) { testClosedHandle(t, s.New) })
	t.Run("LargeRecordRoundTrip", func(t *testing.T) { testLargeRecordRoundTrip(t, s.New) })

	if s.Reopen != nil {
		t.Run("WideColumnIndexMigration", func(t *testing.T) { testWideColumnIndexMigration(t, s) })
	}
}
