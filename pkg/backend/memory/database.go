package memory

import (
	"context"
	"time"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

// newDatabase builds a collstore.Database backed by the shared collState
// registry for the given instance name.
func newDatabase(instance string, latency time.Duration) collstore.Database {
	factory := func(ctx context.Context, name string, schema keyschema.Schema, closed *collstore.ClosedFlag) (collstore.Collection, error) {
		st := sharedCollState(instance, name, schema)
		prim := &memCollection{name: name, st: st, latency: latency}
		coll := collstore.NewCollection(name, schema, closed, prim, func(ctx context.Context) error {
			return nil
		})
		return coll, nil
	}
	return collstore.NewBaseDatabase(factory, nil)
}
