package postgres

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validIdent(s string) error {
	if !identRe.MatchString(s) {
		return &collstore.ConfigRejectedError{Reason: fmt.Sprintf("postgres: %q is not a valid identifier", s)}
	}
	return nil
}

// tableDDL returns the statements that create table and its per-field
// expression indexes, idempotently.
func tableDDL(table string, schema keyschema.Schema) ([]string, error) {
	if err := validIdent(table); err != nil {
		return nil, err
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (id TEXT PRIMARY KEY, data JSONB NOT NULL)`, table),
	}
	for _, attr := range schema.IndexedFields() {
		if err := validIdent(attr); err != nil {
			return nil, err
		}
		if schema.IsUnique(attr) {
			stmts = append(stmts, fmt.Sprintf(
				`CREATE UNIQUE INDEX IF NOT EXISTS %q ON %q ((data -> %s)) WHERE data ? %s`,
				uniqueIndexName(table, attr), table, pgQuote(attr), pgQuote(attr),
			))
		} else {
			stmts = append(stmts, fmt.Sprintf(
				`CREATE INDEX IF NOT EXISTS %q ON %q ((data -> %s))`,
				indexName(table, attr), table, pgQuote(attr),
			))
		}
	}
	return stmts, nil
}

func uniqueIndexName(table, attr string) string { return table + "_uniq_" + attr }
func indexName(table, attr string) string       { return table + "_idx_" + attr }

// pgQuote produces a single-quoted SQL string literal; only ever called
// with attr names already validated by validIdent, which contain no
// quotes, so s is inserted without any escaping.
func pgQuote(s string) string { return "'" + s + "'" }

// attrFromUniqueIndexName recovers the field name from a violated unique
// index's name, the only way pgx exposes which constraint failed.
func attrFromUniqueIndexName(table, indexNameStr string) string {
	prefix := table + "_uniq_"
	if len(indexNameStr) > len(prefix) && indexNameStr[:len(prefix)] == prefix {
		return indexNameStr[len(prefix):]
	}
	return indexNameStr
}

// blobMarker wraps a binary value so it round-trips through JSONB, which
// has no native binary type.
type blobMarker struct {
	Blob string `json:"__blob"`
}

// toJSONValue converts a record field value into something encoding/json
// can marshal losslessly into the column's jsonb representation,
// recursing into nested objects/arrays so numeric types stay consistent
// (int/int32 -> int64) between a write and a later filter comparison.
func toJSONValue(v any) (any, error) {
	switch t := v.(type) {
	case []byte:
		return blobMarker{Blob: base64.StdEncoding.EncodeToString(t)}, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			cv, err := toJSONValue(vv)
			if err != nil {
				return nil, err
			}
			out[k] = cv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			cv, err := toJSONValue(vv)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	default:
		return t, nil
	}
}

// fromJSONValue reverses toJSONValue after a json.Decoder with UseNumber
// has produced v.
func fromJSONValue(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		return t.Float64()
	case map[string]any:
		if len(t) == 1 {
			if b64, ok := t["__blob"].(string); ok {
				return base64.StdEncoding.DecodeString(b64)
			}
		}
		out := make(map[string]any, len(t))
		for k, vv := range t {
			cv, err := fromJSONValue(vv)
			if err != nil {
				return nil, err
			}
			out[k] = cv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			cv, err := fromJSONValue(vv)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	default:
		return t, nil
	}
}

func encodeField(v any) ([]byte, error) {
	jv, err := toJSONValue(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(jv)
}
