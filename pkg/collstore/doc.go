/*
Package collstore implements a polyglot collection storage abstraction: a
uniform record-oriented key/value/secondary-index API backed interchangeably
by an in-process store, a document store, a relational store, a scripting
key-value store, or a managed wide-column store.

Applications open a Database with Connect, obtain a Collection by name, and
operate on Records through Add, Get, GetAll, Update, and Remove. Every backend
honours the same invariants:

  - at most one record may exist per collection with a given id (IDU)
  - at most one record may hold a given value of a field marked unique (UIU)
  - a record reachable by a field lookup currently stores that field value,
    and vice versa (IVP)
  - a write that would violate IDU/UIU fails atomically and leaves storage
    unchanged (AT)
  - a record's id, once set, cannot be changed

Backends register themselves by URL scheme (see Register); selecting one is
a matter of blank-importing its package and calling Connect with the
corresponding connection URL, mirroring how database/sql drivers register.
*/
package collstore
