package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

type pgCollection struct {
	name   string
	table  string
	pool   *pgxpool.Pool
	schema keyschema.Schema
}

func decodeRow(data []byte) (collstore.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("postgres: decoding row: %w", err)
	}
	rec := make(collstore.Record, len(m))
	for k, v := range m {
		cv, err := fromJSONValue(v)
		if err != nil {
			return nil, fmt.Errorf("postgres: decoding field %q: %w", k, err)
		}
		rec[k] = cv
	}
	return rec, nil
}

func (c *pgCollection) asDuplicateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		attr := collstore.IDField
		if pgErr.ConstraintName != c.table+"_pkey" {
			attr = attrFromUniqueIndexName(c.table, pgErr.ConstraintName)
		}
		return &collstore.DuplicateError{Collection: c.name, Attribute: attr}
	}
	return &collstore.BackendTransientError{Backend: "postgres", Reason: err.Error()}
}

func (c *pgCollection) matchIDs(ctx context.Context, attr string, value any) ([]string, error) {
	var rows pgx.Rows
	var err error
	switch {
	case attr == "":
		rows, err = c.pool.Query(ctx, fmt.Sprintf(`SELECT id FROM %q`, c.table))
	case attr == collstore.IDField:
		rows, err = c.pool.Query(ctx, fmt.Sprintf(`SELECT id FROM %q WHERE id = $1`, c.table), fmt.Sprint(value))
	default:
		jv, jerr := encodeField(value)
		if jerr != nil {
			return nil, jerr
		}
		rows, err = c.pool.Query(ctx, fmt.Sprintf(`SELECT id FROM %q WHERE data -> '%s' = $1::jsonb`, c.table, attr), string(jv))
	}
	if err != nil {
		return nil, &collstore.BackendTransientError{Backend: "postgres", Reason: err.Error()}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (c *pgCollection) fetchByID(ctx context.Context, id string) (collstore.Record, bool, error) {
	var data []byte
	err := c.pool.QueryRow(ctx, fmt.Sprintf(`SELECT data FROM %q WHERE id = $1`, c.table), id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &collstore.BackendTransientError{Backend: "postgres", Reason: err.Error()}
	}
	rec, err := decodeRow(data)
	if err != nil {
		return nil, false, err
	}
	rec[collstore.IDField] = id
	return rec, true, nil
}

func (c *pgCollection) Add(ctx context.Context, record collstore.Record) error {
	id := fmt.Sprint(record[collstore.IDField])
	without := record.Clone()
	delete(without, collstore.IDField)

	data, err := json.Marshal(mustJSONFields(without))
	if err != nil {
		return fmt.Errorf("postgres: encoding record: %w", err)
	}

	_, err = c.pool.Exec(ctx, fmt.Sprintf(`INSERT INTO %q (id, data) VALUES ($1, $2::jsonb)`, c.table), id, string(data))
	if err != nil {
		return c.asDuplicateErr(err)
	}
	return nil
}

func mustJSONFields(rec collstore.Record) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		jv, err := toJSONValue(v)
		if err != nil {
			// toJSONValue only errs on types codec itself would reject;
			// callers validate value types upstream of Add/Update.
			jv = v
		}
		out[k] = jv
	}
	return out
}

func (c *pgCollection) Get(ctx context.Context, attr string, value any, returnFields []string) (collstore.Record, bool, error) {
	ids, err := c.matchIDs(ctx, attr, value)
	if err != nil || len(ids) == 0 {
		return nil, false, err
	}
	rec, ok, err := c.fetchByID(ctx, ids[0])
	if err != nil || !ok {
		return nil, ok, err
	}
	return projectFields(rec, returnFields), true, nil
}

func (c *pgCollection) GetAll(ctx context.Context, attr string, value any, returnFields []string) (collstore.RecordIter, error) {
	ids, err := c.matchIDs(ctx, attr, value)
	if err != nil {
		return nil, err
	}
	out := make([]collstore.Record, 0, len(ids))
	for _, id := range ids {
		rec, ok, err := c.fetchByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, projectFields(rec, returnFields))
		}
	}
	return collstore.NewSliceIter(out), nil
}

func (c *pgCollection) Update(ctx context.Context, attr string, value any, delta collstore.Record, upsert bool) error {
	ids, err := c.matchIDs(ctx, attr, value)
	if err != nil {
		return err
	}

	if newID, hasID := delta[collstore.IDField]; hasID {
		if len(ids) > 1 {
			return &collstore.IDImmutableError{}
		}
		if len(ids) == 1 && fmt.Sprint(newID) != ids[0] {
			return &collstore.IDImmutableError{}
		}
	}

	if len(ids) == 0 {
		if !upsert {
			return nil
		}
		newRec := delta.Clone()
		newRec[collstore.IDField] = value
		return c.Add(ctx, newRec)
	}

	without := delta.Clone()
	delete(without, collstore.IDField)
	data, err := json.Marshal(mustJSONFields(without))
	if err != nil {
		return fmt.Errorf("postgres: encoding delta: %w", err)
	}

	_, err = c.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %q SET data = data || $1::jsonb WHERE id = ANY($2)`, c.table),
		string(data), ids)
	if err != nil {
		return c.asDuplicateErr(err)
	}
	return nil
}

func (c *pgCollection) Remove(ctx context.Context, attr string, value any) (int, error) {
	ids, err := c.matchIDs(ctx, attr, value)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := c.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %q WHERE id = ANY($1)`, c.table), ids)
	if err != nil {
		return 0, &collstore.BackendTransientError{Backend: "postgres", Reason: err.Error()}
	}
	return int(tag.RowsAffected()), nil
}

func projectFields(rec collstore.Record, fields []string) collstore.Record {
	if len(fields) == 0 {
		return rec
	}
	out := make(collstore.Record, len(fields))
	for _, f := range fields {
		if v, ok := rec[f]; ok {
			out[f] = v
		}
	}
	return out
}
