package redis

import (
	"context"
	"crypto/tls"
	"net/url"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cuemby/collstore/pkg/collstore"
)

func init() {
	collstore.Register("redis", connect)
	collstore.Register("rediss", connect)
}

// connect implements collstore.Factory for redis://[user:pass@]host[:port]/db
// and rediss:// (TLS) connection URLs, delegated to go-redis's own parser.
func connect(ctx context.Context, u *url.URL, opts collstore.ConnectOptions) (collstore.Database, error) {
	raw := u.String()
	if u.Scheme == "rediss" {
		// ParseURL is handed the redis:// form; TLS for rediss:// is
		// enabled on the parsed options below.
		raw = "redis" + strings.TrimPrefix(raw, "rediss")
	}

	cfg, err := goredis.ParseURL(raw)
	if err != nil {
		return nil, &collstore.ConfigRejectedError{Reason: "redis: " + err.Error()}
	}
	if u.Scheme == "rediss" {
		cfg.TLSConfig = &tls.Config{ServerName: u.Hostname(), MinVersion: tls.VersionTLS12}
	}

	rdb := goredis.NewClient(cfg)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, &collstore.BackendTransientError{Backend: "redis", Reason: err.Error()}
	}

	ns := strings.TrimPrefix(u.Path, "/")
	if ns == "" {
		ns = "collstore"
	}
	return newDatabase(rdb, ns), nil
}
