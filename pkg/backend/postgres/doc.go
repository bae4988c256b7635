/*
Package postgres implements collstore's relational backend over
PostgreSQL via github.com/jackc/pgx/v5/pgxpool. Each collection is one
table, "id TEXT PRIMARY KEY, data JSONB NOT NULL", with one Postgres
expression index per indexed field (UNIQUE for fields marked unique) so
the database itself enforces IDU/UIU and reports conflicts via the
unique_violation SQLSTATE — this backend never checks uniqueness in Go.

Update relies on jsonb's "||" concatenation operator to perform delta's
field-level merge server-side in a single statement across every matched
row, so a UIU violation on any row aborts the whole UPDATE — the
relational analogue of the in-memory backend's single-mutex atomicity.
*/
package postgres
