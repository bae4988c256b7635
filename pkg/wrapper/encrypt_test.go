package wrapper_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/collstore/pkg/collstore"
	"github.com/cuemby/collstore/pkg/wrapper"
)

func fixedKey(t *testing.T) []byte {
	t.Helper()
	return []byte("01234567890123456789012345678901")
}

func TestFixedKeyEncryptRoundTrip(t *testing.T) {
	ctx := context.Background()
	base := newColl(t, nil)
	enc, err := wrapper.FixedKey("secret", fixedKey(t))
	require.NoError(t, err)
	coll := wrapper.Stack(base, enc)

	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "1", "secret": "sensitive"}))

	rec, ok, err := coll.Get(ctx, "id", "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sensitive", rec["secret"])

	stored, ok, err := base.Get(ctx, "id", "1")
	require.NoError(t, err)
	require.True(t, ok)
	blob, ok := stored["secret"].([]byte)
	require.True(t, ok)
	assert.NotContains(t, string(blob), "sensitive")
}

func TestFixedKeyRejectsInvalidLength(t *testing.T) {
	_, err := wrapper.FixedKey("secret", []byte("tooshort"))
	require.Error(t, err)
}

func TestEncryptMissingIDContext(t *testing.T) {
	ctx := context.Background()
	base := newColl(t, nil)
	enc, err := wrapper.FixedKey("secret", fixedKey(t))
	require.NoError(t, err)
	coll := wrapper.Stack(base, enc)

	// a write touching the wrapped field with no id anywhere in the
	// record cannot resolve an encryption key.
	err = coll.Add(ctx, collstore.Record{"secret": "x"})
	require.Error(t, err)
	var want *collstore.WrappedMissingContextError
	require.ErrorAs(t, err, &want)

	// attr == "id" supplies the id itself even when delta omits it.
	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "1", "secret": "y"}))
	require.NoError(t, coll.Update(ctx, "id", "1", collstore.Record{"secret": "z"}))
}

func TestPerRecordKeyRoundTripAndRemove(t *testing.T) {
	ctx := context.Background()
	base := newColl(t, nil)
	keyColl := newNamedColl(t, "keys", nil)

	enc, err := wrapper.PerRecordKey("secret", keyColl, 16)
	require.NoError(t, err)
	coll := wrapper.Stack(base, enc)

	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "1", "secret": "sensitive"}))

	rec, ok, err := coll.Get(ctx, "id", "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sensitive", rec["secret"])

	// a key row was persisted for id "1"
	_, ok, err = keyColl.Get(ctx, "id", "1")
	require.NoError(t, err)
	require.True(t, ok)

	n, err := coll.Remove(ctx, "id", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// removing the record must also remove its key row
	_, ok, err = keyColl.Get(ctx, "id", "1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFixedKeyAllowRawPassesThroughLegacyValue(t *testing.T) {
	ctx := context.Background()
	base := newColl(t, nil)

	// a record written before the wrapper existed: "secret" holds a plain
	// string, not an encryption envelope.
	require.NoError(t, base.Add(ctx, collstore.Record{"id": "1", "secret": "legacy"}))

	enc, err := wrapper.FixedKey("secret", fixedKey(t), wrapper.WithEncryptAllowRaw())
	require.NoError(t, err)
	coll := wrapper.Stack(base, enc)

	rec, ok, err := coll.Get(ctx, "id", "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "legacy", rec["secret"])
}

func TestFixedKeyWithoutAllowRawRejectsNonBlob(t *testing.T) {
	ctx := context.Background()
	base := newColl(t, nil)
	require.NoError(t, base.Add(ctx, collstore.Record{"id": "1", "secret": "legacy"}))

	enc, err := wrapper.FixedKey("secret", fixedKey(t))
	require.NoError(t, err)
	coll := wrapper.Stack(base, enc)

	_, _, err = coll.Get(ctx, "id", "1")
	require.Error(t, err)
}

func TestPerRecordKeyWithMasterSealsKeyField(t *testing.T) {
	ctx := context.Background()
	base := newColl(t, nil)
	keyColl := newNamedColl(t, "keys", nil)

	enc, err := wrapper.PerRecordKeyWithMaster("secret", keyColl, fixedKey(t), 16)
	require.NoError(t, err)
	coll := wrapper.Stack(base, enc)

	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "1", "secret": "sensitive"}))

	rec, ok, err := coll.Get(ctx, "id", "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sensitive", rec["secret"])

	// the key collection's own storage holds an encrypted "key" blob,
	// not a raw 32-byte AES key.
	stored, ok, err := keyColl.Get(ctx, "id", "1")
	require.NoError(t, err)
	require.True(t, ok)
	_, isRawKey := stored["key"].([]byte)
	require.True(t, isRawKey)
	assert.NotEqual(t, 32, len(stored["key"].([]byte)))
}
