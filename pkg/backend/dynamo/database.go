package dynamo

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

// inflightTracker lets Close await outstanding requests best-effort
// without deadlocking on a caller that never completes (§5): every
// dynamoCollection method registers itself for the duration of its call,
// and settle waits for the group with a bounded timeout rather than
// indefinitely.
type inflightTracker struct {
	wg sync.WaitGroup
}

func (t *inflightTracker) begin() func() {
	t.wg.Add(1)
	return t.wg.Done
}

func (t *inflightTracker) settle() {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
	}
}

func newDatabase(client *dynamodb.Client, tablePrefix string, provFor func(table, index string) (*collstore.Provision, error)) *Database {
	tracker := &inflightTracker{}
	factory := func(ctx context.Context, name string, schema keyschema.Schema, closed *collstore.ClosedFlag) (collstore.Collection, error) {
		primary := primaryTableName(tablePrefix, name)
		unique := uniqueTableName(tablePrefix, name)
		prim := &dynamoCollection{name: name, client: client, primary: primary, unique: unique, schema: schema, tracker: tracker}
		tm := &tableManager{client: client, provFor: provFor, primary: primary, unique: unique, schema: schema}
		initFn := func(ctx context.Context) error {
			return tm.ensure(ctx)
		}
		return collstore.NewCollection(name, schema, closed, prim, initFn), nil
	}
	base := collstore.NewBaseDatabase(factory, func(ctx context.Context) error {
		tracker.settle()
		return nil
	})
	return &Database{BaseDatabase: base, client: client, prefix: tablePrefix}
}
