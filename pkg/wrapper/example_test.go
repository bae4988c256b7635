package wrapper_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/collstore/pkg/collstore"
	"github.com/cuemby/collstore/pkg/wrapper"
)

// TestCompressThenEncryptOrdering pins Stack's ordering contract: wrappers
// listed compress-then-encrypt apply compression first on the way in (so
// encryption sees the smaller payload) and reverse on the way out
// (decrypt before decompress). Swapping the argument order would encrypt
// the raw value and then try to compress ciphertext, which does not
// shrink, demonstrating why order is part of the wrapper's contract.
func TestCompressThenEncryptOrdering(t *testing.T) {
	ctx := context.Background()
	base := newColl(t, nil)

	enc, err := wrapper.FixedKey("payload", fixedKey(t))
	require.NoError(t, err)

	coll := wrapper.Stack(base, wrapper.Compress("payload"), enc)

	big := make([]byte, 2000)
	for i := range big {
		big[i] = byte(i % 7)
	}
	require.NoError(t, coll.Add(ctx, collstore.Record{"id": "1", "payload": big}))

	rec, ok, err := coll.Get(ctx, "id", "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, big, rec["payload"])

	stored, ok, err := base.Get(ctx, "id", "1")
	require.NoError(t, err)
	require.True(t, ok)
	blob, ok := stored["payload"].([]byte)
	require.True(t, ok)
	// ciphertext of a compressed, repetitive payload is still smaller
	// than the original, proving compression ran before encryption.
	assert.Less(t, len(blob), len(big))
}
