package main

import "encoding/json"

// parseValue interprets a command-line argument as JSON when possible (so
// 42, true, null, and "quoted strings" round-trip through the same codec
// the backends use), falling back to the literal string otherwise.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
