package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMappingKeepsInsertionOrder(t *testing.T) {
	m := NewMapping()
	m.Set("b", 1)
	m.Set("a", "x")
	m.Set("c", nil)
	m.Set("b", 2)

	assert.Equal(t, []string{"b", "a", "c"}, m.Keys())
	assert.Equal(t, 3, m.Len())

	v, ok := m.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = m.Get("c")
	assert.True(t, ok, "nil values are present")
	assert.Nil(t, v)

	_, ok = m.Get("z")
	assert.False(t, ok)

	var visited []string
	m.Range(func(k string, _ any) bool {
		visited = append(visited, k)
		return k != "a"
	})
	assert.Equal(t, []string{"b", "a"}, visited)
}

func TestMappingMarshalJSON(t *testing.T) {
	m := NewMapping()
	m.Set("z", "last?")
	m.Set("a", map[string]any{"n": 1})
	m.Set("m", nil)

	data, err := m.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"z":"last?","a":{"n":1},"m":null}`, string(data))

	data, err = NewMapping().MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
}
