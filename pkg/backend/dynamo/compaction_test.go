package dynamo

import "testing"

func TestAttrFromIxKey(t *testing.T) {
	key, err := ixKey("email", "a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	attr, ok := attrFromIxKey(key)
	if !ok || attr != "email" {
		t.Fatalf("attrFromIxKey(%q) = (%q, %v), want (email, true)", key, attr, ok)
	}

	if _, ok := attrFromIxKey(sentinelIxKey()); ok {
		t.Fatal("expected sentinel row to be excluded")
	}
}
