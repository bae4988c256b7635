package postgres

import (
	"context"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cuemby/collstore/pkg/collstore"
)

func init() {
	collstore.Register("postgres", connect)
	collstore.Register("postgresql", connect)
}

// connect implements collstore.Factory for postgres://[user:pass@]host[:port]/dbname
// connection URLs, delegated to pgxpool's own parser and pool management.
func connect(ctx context.Context, u *url.URL, opts collstore.ConnectOptions) (collstore.Database, error) {
	cfg, err := pgxpool.ParseConfig(u.String())
	if err != nil {
		return nil, &collstore.ConfigRejectedError{Reason: "postgres: " + err.Error()}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, &collstore.BackendTransientError{Backend: "postgres", Reason: err.Error()}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &collstore.BackendTransientError{Backend: "postgres", Reason: err.Error()}
	}

	return newDatabase(pool), nil
}
