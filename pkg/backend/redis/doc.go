/*
Package redis implements collstore's key-value-with-scripting backend over
Redis. Connection URLs are redis://[user:pass@]host[:port]/<db>[?opts] or
rediss:// for TLS; host/port/auth/db selection is delegated entirely to
github.com/redis/go-redis/v9's own URL parser.

Each collection is a namespace of keys:

  - <ns>:rec:<id>        a hash of field name -> codec-marshalled bytes
  - <ns>:ids             a set of every id in the collection
  - <ns>:uniq:<f>:<vk>   value -> owning id, for a unique field f
  - <ns>:idx:<f>:<vk>    a set of ids, for a non-unique indexed field f

Add, Update, and Remove run as Lua scripts (EVAL) so the duplicate check,
the record write, and every index update happen as one atomic step from
Redis's perspective — the mechanism this backend uses to satisfy the
atomicity invariant that the wide-column backend gets from conditional
writes and the in-memory backend gets from a mutex.
*/
package redis
