package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cuemby/collstore/internal/keyschema"
	"github.com/cuemby/collstore/pkg/collstore"
)

func newDatabase(pool *pgxpool.Pool) collstore.Database {
	factory := func(ctx context.Context, name string, schema keyschema.Schema, closed *collstore.ClosedFlag) (collstore.Collection, error) {
		if err := validIdent(name); err != nil {
			return nil, err
		}
		prim := &pgCollection{name: name, table: name, pool: pool, schema: schema}
		initFn := func(ctx context.Context) error {
			stmts, err := tableDDL(name, schema)
			if err != nil {
				return err
			}
			for _, stmt := range stmts {
				if _, err := pool.Exec(ctx, stmt); err != nil {
					return &collstore.BackendFatalError{Backend: "postgres", Type: "ddl", Message: err.Error()}
				}
			}
			return nil
		}
		return collstore.NewCollection(name, schema, closed, prim, initFn), nil
	}
	return collstore.NewBaseDatabase(factory, func(ctx context.Context) error {
		pool.Close()
		return nil
	})
}
