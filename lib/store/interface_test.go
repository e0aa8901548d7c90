package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"get", "get"},
		{"restore-asking", "restore_asking"},
		{"sort_ro", "sort_ro"},
		{"client kill", "client_kill"},
		{"3d", "_3d"},
		{"$ok", "$ok"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestBindingInternal(t *testing.T) {
	assert.True(t, Binding{Name: "lstore.internalQuit"}.Internal())
	assert.False(t, Binding{Name: "lstore.get"}.Internal())
}

func TestCatalogHasNoDuplicates(t *testing.T) {
	seen := make(map[string]bool, len(Catalog))
	for _, name := range Catalog {
		assert.False(t, seen[name], "duplicate catalog entry %s", name)
		seen[name] = true
	}
	for _, required := range []string{"scan", "get", "set", "del", "multi"} {
		assert.True(t, seen[required], "catalog misses %s", required)
	}
}

func TestErrorString(t *testing.T) {
	err := Errorf(RetCWrongType, "value at %s is not an integer", "k")
	assert.Equal(t, "KVStoreError (code WrongType): value at k is not an integer", err.Error())
}
