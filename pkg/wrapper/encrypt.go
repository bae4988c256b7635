package wrapper

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/cuemby/collstore/internal/codec"
	"github.com/cuemby/collstore/internal/seal"
	"github.com/cuemby/collstore/pkg/collstore"
)

// MissingEncryptionKeyError reports that a per-record-key read found no
// key row for the record's id — the key collection was modified out of
// band, or the record predates the wrapper being enabled.
type MissingEncryptionKeyError struct {
	ID any
}

func (e *MissingEncryptionKeyError) Error() string {
	return fmt.Sprintf("wrapper: no encryption key found for record %v", e.ID)
}

// keySource resolves the AES-256 key for a record id. forWrite controls
// whether a missing key is generated (write path) or treated as an error
// (read path).
type keySource interface {
	keyFor(ctx context.Context, id any, forWrite bool) ([]byte, error)
}

type encryptWrapper struct {
	field    string
	keys     keySource
	allowRaw bool
}

// EncryptOption configures FixedKey, FixedKeyFromPassphrase, PerRecordKey,
// and PerRecordKeyWithMaster.
type EncryptOption func(*encryptWrapper)

// WithEncryptAllowRaw makes Unwrap pass through a pre-existing,
// non-binary value instead of raising "wrapped value is not a blob" — for
// collections being migrated onto this wrapper with legacy data already
// present. A binary payload is always treated as an envelope and decrypted
// regardless of this option, since an encrypted field can't otherwise be
// told apart from a raw blob written before the wrapper was enabled.
func WithEncryptAllowRaw() EncryptOption {
	return func(w *encryptWrapper) { w.allowRaw = true }
}

func (w *encryptWrapper) WrappedFields() []string { return []string{w.field} }

func (w *encryptWrapper) PreWrap(_ context.Context, partial collstore.Record) (any, error) {
	return idOrMissing(partial)
}

func (w *encryptWrapper) PreUnwrap(_ context.Context, partial collstore.Record) (any, error) {
	return idOrMissing(partial)
}

func idOrMissing(partial collstore.Record) (any, error) {
	id, ok := partial[collstore.IDField]
	if !ok || id == nil {
		return nil, &collstore.WrappedMissingContextError{Reason: "must provide id for encryption"}
	}
	return id, nil
}

func (w *encryptWrapper) Wrap(ctx context.Context, wctx any, _ string, value any) (any, error) {
	key, err := w.keys.keyFor(ctx, wctx, true)
	if err != nil {
		return nil, err
	}
	payload, err := codec.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("wrapper: encrypt: %w", err)
	}
	return sealEnvelope(key, payload)
}

func (w *encryptWrapper) Unwrap(ctx context.Context, wctx any, _ string, wrapped any) (any, error) {
	raw, ok := wrapped.([]byte)
	if !ok {
		if w.allowRaw {
			return wrapped, nil
		}
		return nil, fmt.Errorf("wrapper: encrypt: wrapped value is not a blob")
	}
	key, err := w.keys.keyFor(ctx, wctx, false)
	if err != nil {
		return nil, err
	}
	payload, err := openEnvelope(key, raw)
	if err != nil {
		return nil, err
	}
	return codec.Unmarshal(payload)
}

// FixedKey returns a Wrapper that encrypts field under a single externally
// supplied 32-byte AES-256 key shared by every record.
func FixedKey(field string, key []byte, opts ...EncryptOption) (Wrapper, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("wrapper: fixed key must be 32 bytes for AES-256, got %d", len(key))
	}
	w := &encryptWrapper{field: field, keys: fixedKeySource{key: key}}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

type fixedKeySource struct{ key []byte }

func (s fixedKeySource) keyFor(context.Context, any, bool) ([]byte, error) { return s.key, nil }

// FixedKeyFromPassphrase behaves like FixedKey, deriving the AES-256 key
// from an arbitrary-length passphrase instead of requiring the caller to
// manage raw key bytes.
func FixedKeyFromPassphrase(field, passphrase string, opts ...EncryptOption) (Wrapper, error) {
	key := seal.DeriveKey(passphrase)
	return FixedKey(field, key[:], opts...)
}

// perRecordEncryptWrapper adds PreRemove over encryptWrapper, forcing
// Remove through the read-ids-then-delete loop so each key row is deleted
// alongside its record.
type perRecordEncryptWrapper struct {
	*encryptWrapper
	src *perRecordKeySource
}

func (w *perRecordEncryptWrapper) PreRemove(ctx context.Context, id any) error {
	return w.src.forget(ctx, id)
}

// PerRecordKey returns a Wrapper that generates a fresh 32-byte key per
// record id on first write, persists it in keyColl (keyed by the same
// id, field "key"), and caches up to cacheSize keys in an LRU.
func PerRecordKey(field string, keyColl collstore.Collection, cacheSize int, opts ...EncryptOption) (Wrapper, error) {
	cache, err := newKeyCache(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("wrapper: %w", err)
	}
	src := &perRecordKeySource{keyColl: keyColl, cache: cache}
	w := &encryptWrapper{field: field, keys: src}
	for _, o := range opts {
		o(w)
	}
	return &perRecordEncryptWrapper{encryptWrapper: w, src: src}, nil
}

// PerRecordKeyWithMaster behaves like PerRecordKey, except the key
// collection's "key" field is itself wrapped with a FixedKey wrapper
// over masterKey, so persisted per-record keys are encrypted at rest. The
// key-collection wrapper never allows raw passthrough regardless of opts:
// key material predates the wrapper in no legitimate deployment.
func PerRecordKeyWithMaster(field string, keyColl collstore.Collection, masterKey []byte, cacheSize int, opts ...EncryptOption) (Wrapper, error) {
	sealKeyField, err := FixedKey("key", masterKey)
	if err != nil {
		return nil, err
	}
	return PerRecordKey(field, Stack(keyColl, sealKeyField), cacheSize, opts...)
}

type perRecordKeySource struct {
	mu      sync.Mutex
	keyColl collstore.Collection
	cache   *keyCache
}

func idString(id any) string { return fmt.Sprint(id) }

func (s *perRecordKeySource) keyFor(ctx context.Context, id any, forWrite bool) ([]byte, error) {
	if id == nil {
		return nil, &collstore.WrappedMissingContextError{Reason: "must provide id for encryption"}
	}
	idKey := idString(id)

	if key, ok := s.cache.get(idKey); ok {
		return key, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// re-check the cache under the lock: another goroutine may have
	// populated it while we waited.
	if key, ok := s.cache.get(idKey); ok {
		return key, nil
	}

	rec, found, err := s.keyColl.Get(ctx, collstore.IDField, id, "key")
	if err != nil {
		return nil, err
	}
	if found {
		key, ok := rec["key"].([]byte)
		if !ok {
			return nil, fmt.Errorf("wrapper: encrypt: stored key for record %v has unexpected type", id)
		}
		s.cache.set(idKey, key)
		return key, nil
	}
	if !forWrite {
		return nil, &MissingEncryptionKeyError{ID: id}
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("wrapper: encrypt: %w", err)
	}
	if err := s.keyColl.Add(ctx, collstore.Record{collstore.IDField: id, "key": key}); err != nil {
		return nil, err
	}
	s.cache.set(idKey, key)
	return key, nil
}

func (s *perRecordKeySource) forget(ctx context.Context, id any) error {
	s.mu.Lock()
	s.cache.remove(idString(id))
	s.mu.Unlock()
	_, err := s.keyColl.Remove(ctx, collstore.IDField, id)
	return err
}
