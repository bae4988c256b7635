package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cuemby/collstore/internal/codec"
	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

type redisCollection struct {
	name   string
	rdb    *goredis.Client
	ks     keyspace
	schema keyschema.Schema
}

func idString(id any) string { return fmt.Sprint(id) }

func asDuplicateErr(name string, err error) error {
	if err == nil {
		return nil
	}
	if msg := err.Error(); strings.HasPrefix(msg, "duplicate:") {
		return &collstore.DuplicateError{Collection: name, Attribute: strings.TrimPrefix(msg, "duplicate:")}
	}
	return &collstore.BackendTransientError{Backend: "redis", Reason: err.Error()}
}

func (c *redisCollection) fetchRecord(ctx context.Context, idStr string) (collstore.Record, error) {
	raw, err := c.rdb.HGetAll(ctx, c.ks.recordKey(idStr)).Result()
	if err != nil {
		return nil, &collstore.BackendTransientError{Backend: "redis", Reason: err.Error()}
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("redis: record %s vanished between index lookup and fetch", idStr)
	}
	rec := make(collstore.Record, len(raw))
	for field, v := range raw {
		val, err := codec.Unmarshal([]byte(v))
		if err != nil {
			return nil, fmt.Errorf("redis: decoding field %q: %w", field, err)
		}
		rec[field] = val
	}
	return rec, nil
}

func (c *redisCollection) matchIDs(ctx context.Context, attr string, value any) ([]string, error) {
	if attr == "" {
		ids, err := c.rdb.SMembers(ctx, c.ks.idsKey()).Result()
		if err != nil {
			return nil, &collstore.BackendTransientError{Backend: "redis", Reason: err.Error()}
		}
		return ids, nil
	}
	if attr == collstore.IDField {
		idStr := idString(value)
		n, err := c.rdb.Exists(ctx, c.ks.recordKey(idStr)).Result()
		if err != nil {
			return nil, &collstore.BackendTransientError{Backend: "redis", Reason: err.Error()}
		}
		if n == 0 {
			return nil, nil
		}
		return []string{idStr}, nil
	}

	vk, err := valueKey(value)
	if err != nil {
		return nil, err
	}
	if c.schema.IsUnique(attr) {
		id, err := c.rdb.Get(ctx, c.ks.uniqueKey(attr, vk)).Result()
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, &collstore.BackendTransientError{Backend: "redis", Reason: err.Error()}
		}
		return []string{id}, nil
	}
	ids, err := c.rdb.SMembers(ctx, c.ks.indexKey(attr, vk)).Result()
	if err != nil {
		return nil, &collstore.BackendTransientError{Backend: "redis", Reason: err.Error()}
	}
	return ids, nil
}

func (c *redisCollection) Add(ctx context.Context, record collstore.Record) error {
	idStr := idString(record[collstore.IDField])
	return c.writeNew(ctx, idStr, record)
}

func (c *redisCollection) writeNew(ctx context.Context, idStr string, record collstore.Record) error {
	argv := []any{idStr}

	var uAttrs, uKeys []string
	for _, attr := range c.schema.UniqueFields() {
		v, ok := record[attr]
		if !ok {
			continue
		}
		vk, err := valueKey(v)
		if err != nil {
			return err
		}
		uAttrs = append(uAttrs, attr)
		uKeys = append(uKeys, c.ks.uniqueKey(attr, vk))
	}
	argv = append(argv, len(uAttrs))
	for i := range uAttrs {
		argv = append(argv, uAttrs[i], uKeys[i])
	}

	var secKeys []string
	for _, attr := range c.schema.IndexedFields() {
		if c.schema.IsUnique(attr) {
			continue
		}
		v, ok := record[attr]
		if !ok {
			continue
		}
		vk, err := valueKey(v)
		if err != nil {
			return err
		}
		secKeys = append(secKeys, c.ks.indexKey(attr, vk))
	}
	argv = append(argv, len(secKeys))
	for _, k := range secKeys {
		argv = append(argv, k)
	}

	var fieldPairs []any
	for field, v := range record {
		b, err := codec.Marshal(v)
		if err != nil {
			return fmt.Errorf("redis: encoding field %q: %w", field, err)
		}
		fieldPairs = append(fieldPairs, field, b)
	}
	argv = append(argv, len(fieldPairs)/2)
	argv = append(argv, fieldPairs...)

	keys := []string{c.ks.recordKey(idStr), c.ks.idsKey()}
	err := addScript.Run(ctx, c.rdb, keys, argv...).Err()
	return asDuplicateErr(c.name, err)
}

func (c *redisCollection) Get(ctx context.Context, attr string, value any, returnFields []string) (collstore.Record, bool, error) {
	ids, err := c.matchIDs(ctx, attr, value)
	if err != nil || len(ids) == 0 {
		return nil, false, err
	}
	rec, err := c.fetchRecord(ctx, ids[0])
	if err != nil {
		return nil, false, err
	}
	return projectFields(rec, returnFields), true, nil
}

func (c *redisCollection) GetAll(ctx context.Context, attr string, value any, returnFields []string) (collstore.RecordIter, error) {
	ids, err := c.matchIDs(ctx, attr, value)
	if err != nil {
		return nil, err
	}
	out := make([]collstore.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := c.fetchRecord(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, projectFields(rec, returnFields))
	}
	return collstore.NewSliceIter(out), nil
}

func (c *redisCollection) Update(ctx context.Context, attr string, value any, delta collstore.Record, upsert bool) error {
	ids, err := c.matchIDs(ctx, attr, value)
	if err != nil {
		return err
	}

	if newID, hasID := delta[collstore.IDField]; hasID {
		if len(ids) > 1 {
			return &collstore.IDImmutableError{}
		}
		if len(ids) == 1 && idString(newID) != ids[0] {
			return &collstore.IDImmutableError{}
		}
	}

	if len(ids) == 0 {
		if !upsert {
			return nil
		}
		newRec := delta.Clone()
		newRec[collstore.IDField] = value
		return c.writeNew(ctx, idString(value), newRec)
	}

	// Validate every matched id's touched unique fields against the stored
	// uniqueness keys and against each other before writing anything, so
	// a collision on a later id in this call leaves every matched record
	// untouched (§3 AT) instead of a partially applied per-id loop.
	if err := c.validateUniqueBatch(ctx, ids, delta); err != nil {
		return err
	}

	for _, id := range ids {
		if err := c.applyDelta(ctx, id, delta); err != nil {
			return err
		}
	}
	return nil
}

// validateUniqueBatch checks, for every id in ids, whether delta's touched
// unique-attribute values collide with the stored uniqueness keys or with
// another id's value within this same batch. It performs reads only.
func (c *redisCollection) validateUniqueBatch(ctx context.Context, ids []string, delta collstore.Record) error {
	reserved := map[string]string{} // attr+"\x00"+key -> owning id
	for _, id := range ids {
		for _, attr := range c.schema.UniqueFields() {
			newVal, touched := delta[attr]
			if !touched {
				continue
			}
			vk, err := valueKey(newVal)
			if err != nil {
				return err
			}
			key := c.ks.uniqueKey(attr, vk)
			reservedKey := attr + "\x00" + key
			if owner, claimed := reserved[reservedKey]; claimed && owner != id {
				return &collstore.DuplicateError{Collection: c.name, Attribute: attr}
			}
			reserved[reservedKey] = id

			owner, err := c.rdb.Get(ctx, key).Result()
			if err != nil && !errors.Is(err, goredis.Nil) {
				return &collstore.BackendTransientError{Backend: "redis", Reason: err.Error()}
			}
			if err == nil && owner != id {
				return &collstore.DuplicateError{Collection: c.name, Attribute: attr}
			}
		}
	}
	return nil
}

func (c *redisCollection) applyDelta(ctx context.Context, idStr string, delta collstore.Record) error {
	existing, err := c.fetchRecord(ctx, idStr)
	if err != nil {
		return err
	}

	argv := []any{idStr}

	var ua, unew, uold []string
	for _, attr := range c.schema.UniqueFields() {
		newVal, touched := delta[attr]
		if !touched {
			continue
		}
		newVK, err := valueKey(newVal)
		if err != nil {
			return err
		}
		newKey := c.ks.uniqueKey(attr, newVK)
		oldKey := ""
		if oldVal, had := existing[attr]; had {
			oldVK, err := valueKey(oldVal)
			if err != nil {
				return err
			}
			oldKey = c.ks.uniqueKey(attr, oldVK)
		}
		ua = append(ua, attr)
		unew = append(unew, newKey)
		uold = append(uold, oldKey)
	}
	argv = append(argv, len(ua))
	for i := range ua {
		argv = append(argv, ua[i], unew[i], uold[i])
	}

	var snew, sold []string
	for _, attr := range c.schema.IndexedFields() {
		if c.schema.IsUnique(attr) {
			continue
		}
		newVal, touched := delta[attr]
		if !touched {
			continue
		}
		newVK, err := valueKey(newVal)
		if err != nil {
			return err
		}
		newKey := c.ks.indexKey(attr, newVK)
		oldKey := ""
		if oldVal, had := existing[attr]; had {
			oldVK, err := valueKey(oldVal)
			if err != nil {
				return err
			}
			oldKey = c.ks.indexKey(attr, oldVK)
		}
		snew = append(snew, newKey)
		sold = append(sold, oldKey)
	}
	argv = append(argv, len(snew))
	for i := range snew {
		argv = append(argv, snew[i], sold[i])
	}

	var fieldPairs []any
	for field, v := range delta {
		b, err := codec.Marshal(v)
		if err != nil {
			return fmt.Errorf("redis: encoding field %q: %w", field, err)
		}
		fieldPairs = append(fieldPairs, field, b)
	}
	argv = append(argv, len(fieldPairs)/2)
	argv = append(argv, fieldPairs...)

	err = updateScript.Run(ctx, c.rdb, []string{c.ks.recordKey(idStr)}, argv...).Err()
	return asDuplicateErr(c.name, err)
}

func (c *redisCollection) Remove(ctx context.Context, attr string, value any) (int, error) {
	ids, err := c.matchIDs(ctx, attr, value)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		rec, err := c.fetchRecord(ctx, id)
		if err != nil {
			return removed, err
		}

		var uKeys []string
		for _, a := range c.schema.UniqueFields() {
			v, ok := rec[a]
			if !ok {
				continue
			}
			vk, err := valueKey(v)
			if err != nil {
				return removed, err
			}
			uKeys = append(uKeys, c.ks.uniqueKey(a, vk))
		}
		var secKeys []string
		for _, a := range c.schema.IndexedFields() {
			if c.schema.IsUnique(a) {
				continue
			}
			v, ok := rec[a]
			if !ok {
				continue
			}
			vk, err := valueKey(v)
			if err != nil {
				return removed, err
			}
			secKeys = append(secKeys, c.ks.indexKey(a, vk))
		}

		argv := []any{id, len(uKeys)}
		for _, k := range uKeys {
			argv = append(argv, k)
		}
		argv = append(argv, len(secKeys))
		for _, k := range secKeys {
			argv = append(argv, k)
		}

		err = removeScript.Run(ctx, c.rdb, []string{c.ks.recordKey(id), c.ks.idsKey()}, argv...).Err()
		if err != nil {
			return removed, &collstore.BackendTransientError{Backend: "redis", Reason: err.Error()}
		}
		removed++
	}
	return removed, nil
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
