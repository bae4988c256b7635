package dynamo

import (
	"net/url"
	"testing"

	"github.com/cuemby/collstore/pkg/collstore"
)

func TestResolveProvisionFallthrough(t *testing.T) {
	q, _ := url.ParseQuery("provision=5.5&provision_users=10.10&provision_users_index_email=-")
	resolve := resolveProvision(q, nil)

	p, err := resolve("users", "email")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Fatalf("expected pay-per-request (nil) for dashed index hint, got %+v", p)
	}

	p, err = resolve("users", "team")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil || p.Read != 10 || p.Write != 10 {
		t.Fatalf("expected table-level hint 10.10, got %+v", p)
	}

	p, err = resolve("orders", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil || p.Read != 5 || p.Write != 5 {
		t.Fatalf("expected general hint 5.5, got %+v", p)
	}
}

func TestResolverOverridesQuery(t *testing.T) {
	q, _ := url.ParseQuery("provision=5.5")
	called := false
	resolver := func(table, index string) (*collstore.Provision, error) {
		called = true
		return &collstore.Provision{Read: 1, Write: 1}, nil
	}
	resolve := resolveProvision(q, resolver)
	_, err := resolve("users", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected explicit resolver to take priority over query hints")
	}
}

func TestSumProvisionRoundsUpWithFloor(t *testing.T) {
	got := sumProvision([]*collstore.Provision{
		{Read: 1, Write: 1},
		nil,
	})
	if got == nil || got.Read != 2 || got.Write != 2 {
		t.Fatalf("expected summed provision with floor-1 for nil entries, got %+v", got)
	}

	if got := sumProvision([]*collstore.Provision{nil, nil}); got != nil {
		t.Fatalf("expected nil when every part is pay-per-request, got %+v", got)
	}
}
