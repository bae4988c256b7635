package memory

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/collstore/pkg/collstore"
)

func init() {
	collstore.Register("memory", connect)
}

// connect implements collstore.Factory for memory://<instance>[?simulatedLatency=<ms>]
// connection URLs. Two connections naming the same instance share the same
// underlying collections.
func connect(ctx context.Context, u *url.URL, opts collstore.ConnectOptions) (collstore.Database, error) {
	instance := strings.TrimPrefix(u.Path, "/")
	if instance == "" {
		instance = u.Host
	}
	if instance == "" {
		instance = "default"
	}

	latency := opts.SimulatedLatency
	if raw := u.Query().Get("simulatedLatency"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil {
			return nil, &collstore.ConfigRejectedError{Reason: "memory: invalid simulatedLatency: " + err.Error()}
		}
		latency = time.Duration(ms) * time.Millisecond
	}

	return newDatabase(instance, latency), nil
}
