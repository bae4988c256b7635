package wrapper

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/cuemby/collstore/internal/codec"
)

const (
	// defaultCompressThreshold is the serialised-payload size, in bytes,
	// above which Compress attempts deflate compression.
	defaultCompressThreshold = 200

	markerRaw     byte = 0x00 // uncompressed: marker || codec.Marshal(value)
	markerDeflate byte = 0x01 // compressed: marker || flate(codec.Marshal(value))
)

// compressWrapper deflate-compresses a field's serialised value once it
// exceeds a size threshold, falling back to a marked uncompressed form
// otherwise so small values are not penalised with compressor overhead.
type compressWrapper struct {
	field     string
	threshold int
	allowRaw  bool
}

// CompressOption configures Compress.
type CompressOption func(*compressWrapper)

// WithThreshold overrides the default 200-byte compression threshold.
func WithThreshold(n int) CompressOption {
	return func(w *compressWrapper) { w.threshold = n }
}

// WithAllowRaw makes Unwrap treat any leading byte other than
// markerRaw/markerDeflate as a pre-existing, unwrapped value instead of
// raising "unknown compression type" — for collections being migrated
// onto this wrapper with legacy data already present.
func WithAllowRaw() CompressOption {
	return func(w *compressWrapper) { w.allowRaw = true }
}

// Compress returns a Wrapper that deflate-compresses field.
func Compress(field string, opts ...CompressOption) Wrapper {
	w := &compressWrapper{field: field, threshold: defaultCompressThreshold}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *compressWrapper) WrappedFields() []string { return []string{w.field} }

func (w *compressWrapper) Wrap(_ context.Context, _ any, _ string, value any) (any, error) {
	payload, err := codec.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("wrapper: compress: %w", err)
	}

	if len(payload) <= w.threshold {
		return append([]byte{markerRaw}, payload...), nil
	}

	var buf bytes.Buffer
	buf.WriteByte(markerDeflate)
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("wrapper: compress: %w", err)
	}
	if _, err := fw.Write(payload); err != nil {
		return nil, fmt.Errorf("wrapper: compress: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("wrapper: compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *compressWrapper) Unwrap(_ context.Context, _ any, _ string, wrapped any) (any, error) {
	raw, ok := wrapped.([]byte)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("wrapper: compress: wrapped value is not a non-empty blob")
	}

	marker, payload := raw[0], raw[1:]
	switch marker {
	case markerRaw:
		return codec.Unmarshal(payload)
	case markerDeflate:
		fr := flate.NewReader(bytes.NewReader(payload))
		defer fr.Close()
		decoded, err := io.ReadAll(fr)
		if err != nil {
			return nil, fmt.Errorf("wrapper: compress: %w", err)
		}
		return codec.Unmarshal(decoded)
	default:
		if w.allowRaw {
			return raw, nil
		}
		return nil, fmt.Errorf("wrapper: compress: unknown compression type %#x", marker)
	}
}
