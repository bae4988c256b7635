// Package keyschema describes which record fields a collection indexes, and
// which of those indexes must hold distinct values. The `id` field is always
// indexed and unique; it must never be listed explicitly.
package keyschema
