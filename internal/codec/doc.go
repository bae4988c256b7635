/*
Package codec implements the reversible value serialisation used across every
collstore backend.

A record field may hold a string, a signed integer, a finite float, a bool,
an explicit nil, nested JSON (map[string]any / []any), or a raw []byte blob.
Marshal packs any of these into a single byte slice tagged with a one-byte
type marker; Unmarshal reverses it exactly. Backends that must store values
as opaque binary columns (the wide-column backend's base64 DDB attributes,
in particular) use this as their on-disk representation directly.

For backward compatibility with data written before a marker scheme existed,
Unmarshal also accepts plain, unmarked JSON: if the leading byte isn't one of
the recognised tags, the whole input is parsed as canonical JSON instead.
*/
package codec
