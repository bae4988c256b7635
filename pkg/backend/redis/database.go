package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

func newDatabase(rdb *goredis.Client, namePrefix string) collstore.Database {
	factory := func(ctx context.Context, name string, schema keyschema.Schema, closed *collstore.ClosedFlag) (collstore.Collection, error) {
		prim := &redisCollection{
			name:   name,
			rdb:    rdb,
			ks:     keyspace{ns: namePrefix + ":" + name},
			schema: schema,
		}
		return collstore.NewCollection(name, schema, closed, prim, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}), nil
	}
	return collstore.NewBaseDatabase(factory, func(ctx context.Context) error {
		return rdb.Close()
	})
}
