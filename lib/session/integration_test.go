package session

import (
	"fmt"
	"testing"

	"github.com/ValentinKolb/pxKV/lib/db"
	"github.com/ValentinKolb/pxKV/lib/db/engines/memdb"
	"github.com/ValentinKolb/pxKV/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLocalStore(t *testing.T) {
	st, err := lstore.NewLocalStore(func() (db.KVDB, error) {
		return memdb.NewMemDB(nil), nil
	}, &lstore.Options{ScanPageSize: 7, SweepInterval: -1})
	require.NoError(t, err)
	defer st.Close()

	s := New(st, nil)
	defer s.Close()

	for i := 0; i < 30; i++ {
		_, err := await(t, s.Do("SET", fmt.Sprintf("user:%02d", i), i))
		require.NoError(t, err)
	}
	_, err = await(t, s.Do("set", "other", "x"))
	require.NoError(t, err)

	res, err := await(t, s.GetSearch("user:*", nil, nil))
	require.NoError(t, err)
	m := res.(*Mapping)
	assert.Equal(t, 30, m.Len())
	v, _ := m.Get("user:07")
	assert.Equal(t, "7", v)

	res, err = await(t, s.DelSearch("user:1*", nil))
	require.NoError(t, err)
	assert.Equal(t, int64(10), res)

	res, err = await(t, s.Do("dbsize"))
	require.NoError(t, err)
	assert.Equal(t, int64(21), res)

	_, err = await(t, s.SetJSON("cfg", map[string]any{"on": true}, nil))
	require.NoError(t, err)
	res, err = await(t, s.GetJSON("cfg", nil))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"on": true}, res)

	res, err = await(t, s.Multi([]any{"incr", "n"}, []any{"incr", "n"}).Exec())
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, res)

	_, ok := s.Command("quit")
	assert.False(t, ok, "internal bindings are not installed")
}
