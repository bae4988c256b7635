package collstoretest

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

var fixtureBucket = []byte("records")

// fixtureCache memoizes generated large-record fixtures on disk via bbolt,
// keyed by their generation parameters, so repeated runs of the
// large-record property test do not regenerate (and rehash) the same
// multi-megabyte payloads every time.
type fixtureCache struct {
	db *bolt.DB
}

func openFixtureCache(t *testing.T) *fixtureCache {
	t.Helper()
	path := filepath.Join(os.TempDir(), "collstore-collstoretest-fixtures.db")
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(fixtureBucket)
		return err
	}))
	return &fixtureCache{db: db}
}

// blobs returns n deterministic pseudo-random byte blobs of size bytes
// each, generated once per (n, size) and cached on disk thereafter.
func (f *fixtureCache) blobs(t *testing.T, n, size int) [][]byte {
	t.Helper()
	key := []byte(fmt.Sprintf("blobs-%d-%d", n, size))

	var cached [][]byte
	require.NoError(t, f.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(fixtureBucket).Get(key)
		if raw != nil {
			cached = splitBlobs(raw, n, size)
		}
		return nil
	}))
	if cached != nil {
		return cached
	}

	rng := rand.New(rand.NewSource(int64(n)*31 + int64(size)))
	blobs := make([][]byte, n)
	buf := make([]byte, 0, n*size)
	for i := range blobs {
		b := make([]byte, size)
		rng.Read(b)
		blobs[i] = b
		buf = append(buf, b...)
	}

	require.NoError(t, f.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(fixtureBucket).Put(key, buf)
	}))
	return blobs
}

func splitBlobs(raw []byte, n, size int) [][]byte {
	if len(raw) != n*size {
		return nil
	}
	out := make([][]byte, n)
	for i := 0; i < n; i++ {
		out[i] = raw[i*size : (i+1)*size]
	}
	return out
}
