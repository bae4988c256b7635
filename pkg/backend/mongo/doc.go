/*
Package mongo implements collstore's document-store backend over MongoDB
via go.mongodb.org/mongo-driver/mongo. Each collstore collection is one
Mongo collection; a record's "id" field becomes the document's "_id".
Every other indexed field gets a Mongo index (unique where the schema
says so, named "uniq_<field>"/"idx_<field>" so a duplicate-key error's
index name recovers the offending attribute), so — as with the
relational backend — this package never checks uniqueness in Go: Mongo
itself rejects the write and reports which index it violated. Update against
more than one matched id runs inside a session transaction rather than a
single UpdateMany, so a unique-index violation partway through rolls the
whole batch back instead of leaving earlier ids committed.
*/
package mongo
