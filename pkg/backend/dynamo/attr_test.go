package dynamo

import (
	"testing"

	"github.com/cuemby/collstore/pkg/collstore"
)

func TestAttrRoundTrip(t *testing.T) {
	cases := []any{"hello", int64(42), 3.5, true, nil, []byte("blob")}
	for _, v := range cases {
		av, err := toAttr(v)
		if err != nil {
			t.Fatalf("toAttr(%v): %v", v, err)
		}
		got, err := fromAttr(av)
		if err != nil {
			t.Fatalf("fromAttr(%v): %v", v, err)
		}
		if s, ok := v.([]byte); ok {
			gotB, ok := got.([]byte)
			if !ok || string(gotB) != string(s) {
				t.Fatalf("round trip mismatch for %v: got %v", v, got)
			}
			continue
		}
		if got != v {
			t.Fatalf("round trip mismatch: want %v got %v", v, got)
		}
	}
}

func TestRecordToItemRoundTrip(t *testing.T) {
	rec := collstore.Record{"id": "u1", "email": "a@example.com", "age": int64(9)}
	item, err := recordToItem(rec)
	if err != nil {
		t.Fatalf("recordToItem: %v", err)
	}
	back, err := itemToRecord(item, nil)
	if err != nil {
		t.Fatalf("itemToRecord: %v", err)
	}
	if back["id"] != "u1" || back["email"] != "a@example.com" || back["age"] != int64(9) {
		t.Fatalf("unexpected round trip: %+v", back)
	}
}

func TestIxKeyDeterministic(t *testing.T) {
	k1, err := ixKey("email", "a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	k2, err := ixKey("email", "a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if k1 != k2 {
		t.Fatalf("ixKey not deterministic: %q != %q", k1, k2)
	}
	k3, _ := ixKey("email", "b@example.com")
	if k1 == k3 {
		t.Fatal("expected distinct ixKeys for distinct values")
	}
}
