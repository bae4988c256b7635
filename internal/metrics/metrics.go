// Package metrics holds collstore's process-wide Prometheus collectors:
// counters and a histogram for the ready gate, the wide-column backend's
// capacity consumption and retries, and the field wrapper's key cache.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConsumedCapacityUnits sums the ConsumedCapacity returned by every
	// wide-column backend request (§4.3.4), labelled by table and
	// operation.
	ConsumedCapacityUnits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collstore_dynamo_consumed_capacity_units_total",
			Help: "Total DynamoDB ConsumedCapacity units, by table and operation",
		},
		[]string{"table", "operation"},
	)

	// ReadyGateLatency is a histogram of how long callers wait on a
	// collection's ready gate, labelled by backend. It is registered
	// below; no code in this module records observations into it.
	ReadyGateLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collstore_ready_gate_wait_seconds",
			Help:    "Time callers spent waiting on a collection's ready gate",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	// WrapperCacheEvents counts LRU key-cache hits, misses, and
	// evictions for the encryption wrappers.
	WrapperCacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collstore_wrapper_key_cache_events_total",
			Help: "Encryption wrapper LRU key cache hit/miss/eviction counts",
		},
		[]string{"event"},
	)

	// RetryAttempts counts transient-error retries performed by the
	// wide-column backend's HTTP layer, labelled by the error type that
	// triggered the retry.
	RetryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collstore_dynamo_retry_attempts_total",
			Help: "Transient-error retries performed against the wide-column backend",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		ConsumedCapacityUnits,
		ReadyGateLatency,
		WrapperCacheEvents,
		RetryAttempts,
	)
}

// Handler returns the Prometheus scrape handler for wiring into an HTTP mux.
func Handler() http.Handler {
	return promhttp.Handler()
}
