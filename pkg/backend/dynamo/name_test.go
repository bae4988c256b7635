package dynamo

import "testing"

func TestEscapeIdent(t *testing.T) {
	cases := map[string]string{
		"users":      "users",
		"ab":         "ab_",
		"a":          "a__",
		"user.email": "user.email",
		"a b":        "a_u20b",
		"日本":         "_U65E5_U672C",
	}
	for in, want := range cases {
		if got := escapeIdent(in); got != want {
			t.Errorf("escapeIdent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPrimaryAndUniqueTableNames(t *testing.T) {
	if got, want := primaryTableName("app_", "users"), "app_users"; got != want {
		t.Errorf("primaryTableName = %q, want %q", got, want)
	}
	if got, want := uniqueTableName("app_", "users"), "app_users."; got != want {
		t.Errorf("uniqueTableName = %q, want %q", got, want)
	}
}

func TestGSIName(t *testing.T) {
	cases := map[string]string{
		"email":      "email",
		"user.email": "user.email",
		"a":          "a__",
	}
	for attr, want := range cases {
		if got := gsiName(attr); got != want {
			t.Errorf("gsiName(%q) = %q, want %q", attr, got, want)
		}
	}
}
