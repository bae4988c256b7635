package collstore

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// Provision describes the desired provisioned throughput for a wide-column
// table or index. A nil *Provision means pay-per-request billing.
type Provision struct {
	Read  int64
	Write int64
}

// ProvisionResolver resolves the desired throughput for a (table, index)
// pair; index is "" for the table's own primary throughput. Backends that
// have no notion of provisioned capacity ignore it.
type ProvisionResolver func(table, index string) (*Provision, error)

// ConnectOptions collects the backend-agnostic knobs Connect accepts.
// Backends read the fields relevant to them and ignore the rest.
type ConnectOptions struct {
	// SimulatedLatency, if non-zero, is injected before every operation
	// by backends that support it (memory).
	SimulatedLatency time.Duration

	// TLS selects encrypted transport where the backend has a choice
	// (dynamo's tls=false query option flips this to false).
	TLS bool

	// ConsistentRead requests strongly consistent reads where the
	// backend distinguishes (dynamo's consistentRead=true).
	ConsistentRead bool

	// ProvisionResolver overrides the connection URL's provisioning
	// hints (§4.3.5); nil means "use whatever the URL specifies".
	ProvisionResolver ProvisionResolver
}

// ConnectOption mutates ConnectOptions.
type ConnectOption func(*ConnectOptions)

// WithSimulatedLatency sets ConnectOptions.SimulatedLatency.
func WithSimulatedLatency(d time.Duration) ConnectOption {
	return func(o *ConnectOptions) { o.SimulatedLatency = d }
}

// WithProvisionResolver sets ConnectOptions.ProvisionResolver.
func WithProvisionResolver(r ProvisionResolver) ConnectOption {
	return func(o *ConnectOptions) { o.ProvisionResolver = r }
}

// Factory constructs a Database for a parsed connection URL. Backends
// register one per scheme via Register.
type Factory func(ctx context.Context, u *url.URL, opts ConnectOptions) (Database, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register associates scheme with f, so Connect("scheme://...") dispatches
// to it. Backend packages call this from an init func; importing a backend
// package for its side effect is what makes its scheme available, exactly
// as database/sql drivers register themselves.
func Register(scheme string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[scheme] = f
}

// Connect parses rawURL (§6.1: scheme://[user:pass@]host[:port]/path[?opts])
// and dispatches to the backend registered for its scheme.
func Connect(ctx context.Context, rawURL string, opts ...ConnectOption) (Database, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &ConfigRejectedError{Reason: fmt.Sprintf("invalid connection url: %v", err)}
	}
	if u.Scheme == "" {
		return nil, &ConfigRejectedError{Reason: "connection url has no scheme"}
	}

	cfg := ConnectOptions{TLS: true}
	for _, f := range opts {
		f(&cfg)
	}
	if v := u.Query().Get("tls"); v == "false" {
		cfg.TLS = false
	}
	if v := u.Query().Get("consistentRead"); v == "true" {
		cfg.ConsistentRead = true
	}

	registryMu.RLock()
	factory, ok := registry[u.Scheme]
	registryMu.RUnlock()
	if !ok {
		return nil, &ConfigRejectedError{Reason: fmt.Sprintf("unknown backend scheme %q", u.Scheme)}
	}
	return factory(ctx, u, cfg)
}
