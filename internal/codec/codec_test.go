package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"string", "hello"},
		{"empty string", ""},
		{"int", int64(-42)},
		{"float", 3.14159},
		{"bool true", true},
		{"bool false", false},
		{"null", nil},
		{"binary", []byte{0x00, 0x01, 0xff, 0xfe}},
		{"nested json", map[string]any{"a": int64(1), "b": []any{"x", "y"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(tt.in)
			require.NoError(t, err)
			out, err := Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, tt.in, out)
		})
	}
}

func TestUnmarshalAcceptsUnmarkedJSON(t *testing.T) {
	out, err := Unmarshal([]byte(`{"foo":"bar","n":5}`))
	require.NoError(t, err)
	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "bar", m["foo"])
	assert.Equal(t, int64(5), m["n"])
}

func TestUnmarshalEmptyFails(t *testing.T) {
	_, err := Unmarshal(nil)
	require.Error(t, err)
}
