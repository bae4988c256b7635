/*
Package wrapper implements collstore's transparent field-wrapper pipeline:
a Collection decorator that transforms a declared set of non-id fields on
the way down (wrap) and up (unwrap), while rejecting any query that
filters on a wrapped field. Wrappers compose by stacking with Stack; order
matters (a compress-then-encrypt stack unwraps encrypt-then-decompress).

Two concrete wrapper families are provided: Compress (pkg/wrapper,
compress.go), a deflate-based transform with a size threshold, and the
Encrypt family (encrypt.go), three AES-256-GCM envelope variants built on
internal/seal: fixed key, per-record key, and per-record key sealed under a
master key.
*/
package wrapper
