package dynamo

import (
	"fmt"
	"strings"
)

// escapeIdent implements §4.3.6: characters outside [-a-zA-Z0-9_.] become
// "_uHH" (code point <= 0xFF) or "_UHHHH" (otherwise), and the result is
// right-padded with "_" to at least 3 characters, since DynamoDB table and
// index names must be at least 3 characters long.
func escapeIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		if isIdentRune(r) {
			b.WriteRune(r)
			continue
		}
		if r <= 0xFF {
			fmt.Fprintf(&b, "_u%02X", r)
		} else {
			fmt.Fprintf(&b, "_U%04X", r)
		}
	}
	out := b.String()
	for len(out) < 3 {
		out += "_"
	}
	return out
}

func isIdentRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_' || r == '.':
		return true
	default:
		return false
	}
}

func primaryTableName(prefix, collection string) string {
	return prefix + escapeIdent(collection)
}

func uniqueTableName(prefix, collection string) string {
	return primaryTableName(prefix, collection) + "."
}

// gsiName implements §6.3: GSI names are exactly the escaped attribute
// name, with no prefix.
func gsiName(attr string) string {
	return escapeIdent(attr)
}
