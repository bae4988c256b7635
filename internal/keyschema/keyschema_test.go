package keyschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsID(t *testing.T) {
	_, err := New(map[string]FieldOptions{IDField: {}})
	require.Error(t, err)
}

func TestIndexedAndUnique(t *testing.T) {
	s, err := New(map[string]FieldOptions{
		"bar": {Unique: true},
		"baz": {Unique: false},
	})
	require.NoError(t, err)

	assert.True(t, s.IsIndexed(IDField))
	assert.True(t, s.IsUnique(IDField))
	assert.True(t, s.IsIndexed("bar"))
	assert.True(t, s.IsUnique("bar"))
	assert.True(t, s.IsIndexed("baz"))
	assert.False(t, s.IsUnique("baz"))
	assert.False(t, s.IsIndexed("qux"))

	assert.ElementsMatch(t, []string{"bar"}, s.UniqueFields())
	assert.ElementsMatch(t, []string{"bar", "baz"}, s.IndexedFields())
}
