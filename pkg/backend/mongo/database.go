package mongo

import (
	"context"

	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

func newDatabase(client *mongodriver.Client, dbName string) collstore.Database {
	db := client.Database(dbName)
	factory := func(ctx context.Context, name string, schema keyschema.Schema, closed *collstore.ClosedFlag) (collstore.Collection, error) {
		mc := db.Collection(name)
		prim := &mongoCollection{name: name, coll: mc, schema: schema, client: client}
		initFn := func(ctx context.Context) error {
			models := make([]mongodriver.IndexModel, 0, len(schema.IndexedFields()))
			for _, attr := range schema.IndexedFields() {
				idxName := indexName(attr)
				unique := schema.IsUnique(attr)
				if unique {
					idxName = uniqueIndexName(attr)
				}
				models = append(models, mongodriver.IndexModel{
					Keys:    map[string]int{attr: 1},
					Options: options.Index().SetName(idxName).SetUnique(unique).SetSparse(true),
				})
			}
			if len(models) == 0 {
				return nil
			}
			_, err := mc.Indexes().CreateMany(ctx, models)
			if err != nil {
				return &collstore.BackendFatalError{Backend: "mongo", Type: "index", Message: err.Error()}
			}
			return nil
		}
		return collstore.NewCollection(name, schema, closed, prim, initFn), nil
	}
	return collstore.NewBaseDatabase(factory, func(ctx context.Context) error {
		return client.Disconnect(ctx)
	})
}
