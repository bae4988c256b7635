package wrapper

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cuemby/collstore/internal/metrics"
)

// keyCache bounds the in-process cache of per-record encryption keys,
// evicting least-recently-used entries once over capacity and emitting
// hit/miss/eviction counters.
type keyCache struct {
	cache *lru.Cache[string, []byte]
}

func newKeyCache(capacity int) (*keyCache, error) {
	kc := &keyCache{}
	c, err := lru.NewWithEvict[string, []byte](capacity, func(key string, value []byte) {
		metrics.WrapperCacheEvents.WithLabelValues("eviction").Inc()
	})
	if err != nil {
		return nil, err
	}
	kc.cache = c
	return kc, nil
}

func (kc *keyCache) get(id string) ([]byte, bool) {
	v, ok := kc.cache.Get(id)
	if ok {
		metrics.WrapperCacheEvents.WithLabelValues("hit").Inc()
	} else {
		metrics.WrapperCacheEvents.WithLabelValues("miss").Inc()
	}
	return v, ok
}

func (kc *keyCache) set(id string, key []byte) {
	kc.cache.Add(id, key)
}

func (kc *keyCache) remove(id string) {
	kc.cache.Remove(id)
}
