package memory

import (
	"fmt"
	"sync"

	"github.com/cuemby/collstore/internal/codec"
	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

// indexKey turns any supported record value into a comparable, deterministic
// string so it can key a Go map even when the value itself (a []byte blob, a
// nested JSON object) is not comparable.
func indexKey(v any) (string, error) {
	b, err := codec.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("memory: indexing unsupported value: %w", err)
	}
	return string(b), nil
}

// collState is the actual storage for one named collection, shared by every
// memory.Database connected to the same instance name.
type collState struct {
	mu      sync.RWMutex
	schema  keyschema.Schema
	records map[string]collstore.Record            // idKey -> record
	index   map[string]map[string]map[string]bool  // attr -> valueKey -> set of idKeys
}

func newCollState(schema keyschema.Schema) *collState {
	st := &collState{
		schema:  schema,
		records: map[string]collstore.Record{},
		index:   map[string]map[string]map[string]bool{},
	}
	for _, attr := range schema.IndexedFields() {
		st.index[attr] = map[string]map[string]bool{}
	}
	return st
}

func (st *collState) addToIndex(attr, valueKey, idKey string) {
	byValue, ok := st.index[attr]
	if !ok {
		byValue = map[string]map[string]bool{}
		st.index[attr] = byValue
	}
	ids, ok := byValue[valueKey]
	if !ok {
		ids = map[string]bool{}
		byValue[valueKey] = ids
	}
	ids[idKey] = true
}

func (st *collState) removeFromIndex(attr, valueKey, idKey string) {
	byValue, ok := st.index[attr]
	if !ok {
		return
	}
	if ids, ok := byValue[valueKey]; ok {
		delete(ids, idKey)
		if len(ids) == 0 {
			delete(byValue, valueKey)
		}
	}
}

// named is the process-wide registry of shared memory instances, keyed by
// the instance name of a memory:// connection URL: its path, or its host
// when the path is empty, or "default" when both are.
var named = struct {
	mu        sync.Mutex
	instances map[string]map[string]*collState
}{instances: map[string]map[string]*collState{}}

func sharedCollState(instance, name string, schema keyschema.Schema) *collState {
	named.mu.Lock()
	defer named.mu.Unlock()
	colls, ok := named.instances[instance]
	if !ok {
		colls = map[string]*collState{}
		named.instances[instance] = colls
	}
	st, ok := colls[name]
	if !ok {
		st = newCollState(schema)
		colls[name] = st
	}
	return st
}
