package memory

import (
	"context"
	"time"

	"github.com/cuemby/collstore/pkg/collstore"
)

// memCollection implements collstore.Primitives over a shared collState.
type memCollection struct {
	name    string
	st      *collState
	latency time.Duration
}

func (c *memCollection) sleep(ctx context.Context) error {
	if c.latency <= 0 {
		return nil
	}
	t := time.NewTimer(c.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *memCollection) Add(ctx context.Context, record collstore.Record) error {
	if err := c.sleep(ctx); err != nil {
		return err
	}

	idKey, err := indexKey(record[collstore.IDField])
	if err != nil {
		return err
	}

	c.st.mu.Lock()
	defer c.st.mu.Unlock()

	if _, exists := c.st.records[idKey]; exists {
		return &collstore.DuplicateError{Collection: c.name, Attribute: collstore.IDField}
	}

	// Validate every unique index before mutating anything, so a
	// rejected Add leaves storage byte-for-byte unchanged (§3 AT).
	valueKeys := map[string]string{}
	for _, attr := range c.st.schema.UniqueFields() {
		v, present := record[attr]
		if !present {
			continue
		}
		vk, err := indexKey(v)
		if err != nil {
			return err
		}
		if ids := c.st.index[attr][vk]; len(ids) > 0 {
			return &collstore.DuplicateError{Collection: c.name, Attribute: attr}
		}
		valueKeys[attr] = vk
	}
	for _, attr := range c.st.schema.IndexedFields() {
		if _, ok := valueKeys[attr]; ok {
			continue
		}
		v, present := record[attr]
		if !present {
			continue
		}
		vk, err := indexKey(v)
		if err != nil {
			return err
		}
		valueKeys[attr] = vk
	}

	stored := record.Clone()
	c.st.records[idKey] = stored
	c.st.addToIndex(collstore.IDField, idKey, idKey)
	for attr, vk := range valueKeys {
		c.st.addToIndex(attr, vk, idKey)
	}
	return nil
}

func (c *memCollection) matchIDs(attr string, value any) ([]string, error) {
	if attr == "" {
		ids := make([]string, 0, len(c.st.records))
		for id := range c.st.records {
			ids = append(ids, id)
		}
		return ids, nil
	}
	if attr == collstore.IDField {
		idKey, err := indexKey(value)
		if err != nil {
			return nil, err
		}
		if _, ok := c.st.records[idKey]; ok {
			return []string{idKey}, nil
		}
		return nil, nil
	}
	vk, err := indexKey(value)
	if err != nil {
		return nil, err
	}
	ids := c.st.index[attr][vk]
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	return out, nil
}

func (c *memCollection) Get(ctx context.Context, attr string, value any, returnFields []string) (collstore.Record, bool, error) {
	if err := c.sleep(ctx); err != nil {
		return nil, false, err
	}
	c.st.mu.RLock()
	defer c.st.mu.RUnlock()

	ids, err := c.matchIDs(attr, value)
	if err != nil || len(ids) == 0 {
		return nil, false, err
	}
	rec := c.st.records[ids[0]]
	return projectFields(rec, returnFields), true, nil
}

func (c *memCollection) GetAll(ctx context.Context, attr string, value any, returnFields []string) (collstore.RecordIter, error) {
	if err := c.sleep(ctx); err != nil {
		return nil, err
	}
	c.st.mu.RLock()
	defer c.st.mu.RUnlock()

	ids, err := c.matchIDs(attr, value)
	if err != nil {
		return nil, err
	}
	out := make([]collstore.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, projectFields(c.st.records[id], returnFields))
	}
	return collstore.NewSliceIter(out), nil
}

func (c *memCollection) Update(ctx context.Context, attr string, value any, delta collstore.Record, upsert bool) error {
	if err := c.sleep(ctx); err != nil {
		return err
	}

	c.st.mu.Lock()
	defer c.st.mu.Unlock()

	ids, err := c.matchIDs(attr, value)
	if err != nil {
		return err
	}

	if newID, hasID := delta[collstore.IDField]; hasID {
		if len(ids) > 1 {
			return &collstore.IDImmutableError{}
		}
		if len(ids) == 1 {
			existing := c.st.records[ids[0]][collstore.IDField]
			if existing != newID {
				return &collstore.IDImmutableError{}
			}
		}
	}

	if len(ids) == 0 {
		if !upsert {
			return nil
		}
		newRec := delta.Clone()
		newRec[collstore.IDField] = value
		return c.insertUnlocked(newRec)
	}

	// Plan every matched id's index changes before mutating any of them,
	// so a unique-field collision on a later id in the same call — whether
	// against the stored index or against an earlier id in this same
	// batch — leaves every matched record and the index untouched (§3 AT).
	reserved := map[string]map[string]string{}
	plans := make([]*deltaPlan, 0, len(ids))
	for _, id := range ids {
		plan, err := c.planDeltaUnlocked(id, delta, reserved)
		if err != nil {
			return err
		}
		plans = append(plans, plan)
	}
	for _, plan := range plans {
		c.applyDeltaPlanUnlocked(plan, delta)
	}
	return nil
}

// insertUnlocked performs an Add-equivalent insert while c.st.mu is already
// held (used by Update's upsert path).
func (c *memCollection) insertUnlocked(record collstore.Record) error {
	idKey, err := indexKey(record[collstore.IDField])
	if err != nil {
		return err
	}
	if _, exists := c.st.records[idKey]; exists {
		return &collstore.DuplicateError{Collection: c.name, Attribute: collstore.IDField}
	}
	valueKeys := map[string]string{}
	for _, a := range c.st.schema.UniqueFields() {
		v, present := record[a]
		if !present {
			continue
		}
		vk, err := indexKey(v)
		if err != nil {
			return err
		}
		if ids := c.st.index[a][vk]; len(ids) > 0 {
			return &collstore.DuplicateError{Collection: c.name, Attribute: a}
		}
		valueKeys[a] = vk
	}
	for _, a := range c.st.schema.IndexedFields() {
		if _, ok := valueKeys[a]; ok {
			continue
		}
		v, present := record[a]
		if !present {
			continue
		}
		vk, err := indexKey(v)
		if err != nil {
			return err
		}
		valueKeys[a] = vk
	}

	stored := record.Clone()
	c.st.records[idKey] = stored
	c.st.addToIndex(collstore.IDField, idKey, idKey)
	for a, vk := range valueKeys {
		c.st.addToIndex(a, vk, idKey)
	}
	return nil
}

type pendingIndex struct {
	attr        string
	oldKey, new string
	hadOld      bool
}

// deltaPlan is one matched id's validated-but-not-yet-applied index update.
type deltaPlan struct {
	idKey   string
	pending []pendingIndex
}

// planDeltaUnlocked validates delta against idKey's current record and the
// unique-index constraints, without mutating anything. reserved tracks the
// unique (attr, newKey) pairs already claimed by earlier ids in the same
// Update call, so two matched ids racing to the same new unique value
// within one call are caught here too, not just against the stored index.
func (c *memCollection) planDeltaUnlocked(idKey string, delta collstore.Record, reserved map[string]map[string]string) (*deltaPlan, error) {
	rec := c.st.records[idKey]

	var pending []pendingIndex
	for _, attr := range c.st.schema.IndexedFields() {
		newVal, touched := delta[attr]
		if !touched {
			continue
		}
		oldVal, hadOld := rec[attr]
		var oldKey string
		var err error
		if hadOld {
			oldKey, err = indexKey(oldVal)
			if err != nil {
				return nil, err
			}
		}
		newKey, err := indexKey(newVal)
		if err != nil {
			return nil, err
		}
		if hadOld && oldKey == newKey {
			continue
		}
		if c.st.schema.IsUnique(attr) {
			if ids := c.st.index[attr][newKey]; len(ids) > 0 {
				return nil, &collstore.DuplicateError{Collection: c.name, Attribute: attr}
			}
			if owner, claimed := reserved[attr][newKey]; claimed && owner != idKey {
				return nil, &collstore.DuplicateError{Collection: c.name, Attribute: attr}
			}
			if reserved[attr] == nil {
				reserved[attr] = map[string]string{}
			}
			reserved[attr][newKey] = idKey
		}
		pending = append(pending, pendingIndex{attr: attr, oldKey: oldKey, new: newKey, hadOld: hadOld})
	}
	return &deltaPlan{idKey: idKey, pending: pending}, nil
}

// applyDeltaPlanUnlocked applies a previously validated plan: merges delta
// into the record and swaps the index entries for any pending attr.
func (c *memCollection) applyDeltaPlanUnlocked(plan *deltaPlan, delta collstore.Record) {
	rec := c.st.records[plan.idKey]
	for k, v := range delta {
		rec[k] = v
	}
	for _, p := range plan.pending {
		if p.hadOld {
			c.st.removeFromIndex(p.attr, p.oldKey, plan.idKey)
		}
		c.st.addToIndex(p.attr, p.new, plan.idKey)
	}
}

func (c *memCollection) Remove(ctx context.Context, attr string, value any) (int, error) {
	if err := c.sleep(ctx); err != nil {
		return 0, err
	}

	c.st.mu.Lock()
	defer c.st.mu.Unlock()

	ids, err := c.matchIDs(attr, value)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		rec := c.st.records[id]
		for a := range c.st.index {
			if v, ok := rec[a]; ok {
				vk, err := indexKey(v)
				if err == nil {
					c.st.removeFromIndex(a, vk, id)
				}
			}
		}
		delete(c.st.records, id)
	}
	return len(ids), nil
}

func projectFields(rec collstore.Record, fields []string) collstore.Record {
	if len(fields) == 0 {
		return rec.Clone()
	}
	out := make(collstore.Record, len(fields))
	for _, f := range fields {
		if v, ok := rec[f]; ok {
			out[f] = v
		}
	}
	return out
}
