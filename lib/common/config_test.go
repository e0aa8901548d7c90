package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{in: "memory", want: BackendMemory},
		{in: " Bolt ", want: BackendBolt},
		{in: "REDIS", want: BackendRedis},
		{in: "etcd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBackend(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClientConfigString(t *testing.T) {
	conf := DefaultClientConfig()
	conf.Backend = BackendRedis
	conf.Endpoints = []string{"a:1", "b:2"}

	out := conf.String()
	assert.Contains(t, out, "ENDPOINTS")
	assert.Contains(t, out, "a:1")
	assert.Contains(t, out, "b:2")
	assert.False(t, strings.Contains(out, "Bolt File"))
}
