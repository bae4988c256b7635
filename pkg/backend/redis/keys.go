package redis

import (
	"encoding/base64"
	"fmt"

	"github.com/cuemby/collstore/internal/codec"
)

// valueKey turns any supported record value into a string safe to embed
// in a Redis key.
func valueKey(v any) (string, error) {
	b, err := codec.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("redis: indexing unsupported value: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

type keyspace struct {
	ns string
}

func (k keyspace) recordKey(id string) string { return k.ns + ":rec:" + id }
func (k keyspace) idsKey() string             { return k.ns + ":ids" }
func (k keyspace) uniqueKey(field, vk string) string {
	return k.ns + ":uniq:" + field + ":" + vk
}
func (k keyspace) indexKey(field, vk string) string {
	return k.ns + ":idx:" + field + ":" + vk
}
