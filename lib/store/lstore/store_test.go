package lstore

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/pxKV/lib/db"
	"github.com/ValentinKolb/pxKV/lib/db/engines/boltdb"
	"github.com/ValentinKolb/pxKV/lib/db/engines/memdb"
	"github.com/ValentinKolb/pxKV/lib/store"
	storetesting "github.com/ValentinKolb/pxKV/lib/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memFactory() (db.KVDB, error) {
	return memdb.NewMemDB(nil), nil
}

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, opts *Options) store.IStore {
	s, err := NewLocalStore(memFactory, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMemDB(t *testing.T) {
	storetesting.RunStoreTests(t, "LocalStore/MemDB", func() store.IStore {
		s, err := NewLocalStore(memFactory, nil)
		require.NoError(t, err)
		return s
	})
}

func TestBoltDB(t *testing.T) {
	storetesting.RunStoreTests(t, "LocalStore/BoltDB", func() store.IStore {
		s, err := NewLocalStore(func() (db.KVDB, error) {
			return boltdb.NewBoltDB(boltdb.DBOptions{
				Path:   filepath.Join(t.TempDir(), "store.db"),
				NoSync: true,
			})
		}, &Options{SweepInterval: -1})
		require.NoError(t, err)
		return s
	})
}

func TestExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := newTestStore(t, &Options{SweepInterval: -1, Clock: clock.Now})

	storetesting.MustCall(t, s, "set", "k", "v", "PX", 1500)
	assert.Equal(t, int64(1500), storetesting.MustCall(t, s, "pttl", "k"))
	assert.Equal(t, int64(2), storetesting.MustCall(t, s, "ttl", "k"))

	clock.Advance(time.Second)
	assert.Equal(t, "v", storetesting.MustCall(t, s, "get", "k"))

	clock.Advance(time.Second)
	assert.Nil(t, storetesting.MustCall(t, s, "get", "k"))
	assert.Equal(t, int64(0), storetesting.MustCall(t, s, "exists", "k"))
	assert.Equal(t, int64(-2), storetesting.MustCall(t, s, "ttl", "k"))
	assert.Equal(t, int64(0), storetesting.MustCall(t, s, "del", "k"), "expired keys do not count as deleted")

	// KEEPTTL carries the old deadline over
	storetesting.MustCall(t, s, "setex", "t", 10, "a")
	storetesting.MustCall(t, s, "set", "t", "b", "KEEPTTL")
	assert.Equal(t, int64(10), storetesting.MustCall(t, s, "ttl", "t"))
}

func TestSweeper(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s, err := NewLocalStore(memFactory, &Options{SweepInterval: -1, Clock: clock.Now})
	require.NoError(t, err)
	defer s.Close()

	storetesting.MustCall(t, s, "set", "short", "v", "EX", 1)
	storetesting.MustCall(t, s, "set", "long", "v", "EX", 100)
	storetesting.MustCall(t, s, "set", "forever", "v")
	clock.Advance(2 * time.Second)

	removed, err := s.(*storeImpl).purgeExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, int64(2), storetesting.MustCall(t, s, "dbsize"))
}

func TestSweeperRuns(t *testing.T) {
	s := newTestStore(t, &Options{SweepInterval: 5 * time.Millisecond})

	storetesting.MustCall(t, s, "set", "k", "v", "PX", 1)
	assert.Eventually(t, func() bool {
		return storetesting.MustCall(t, s, "dbsize") == int64(0)
	}, time.Second, 5*time.Millisecond)
}

func TestSetSyntax(t *testing.T) {
	s := newTestStore(t, nil)

	for _, args := range [][]any{
		{"k", "v", "NX", "XX"},
		{"k", "v", "EX"},
		{"k", "v", "EX", 0},
		{"k", "v", "EX", 1, "PX", 1},
		{"k", "v", "EX", 1, "KEEPTTL"},
		{"k", "v", "BOGUS"},
	} {
		_, err := storetesting.Call(t, s, "set", args...)
		assert.Error(t, err, "%v", args)
	}
}

func TestScanPages(t *testing.T) {
	s := newTestStore(t, &Options{ScanPageSize: 3, SweepInterval: -1})
	storetesting.MustCall(t, s, "mset", "a", 1, "b", 2, "c", 3, "d", 4)

	assert.Equal(t, []any{"3", []any{"a", "b", "c"}}, storetesting.MustCall(t, s, "scan", 0))
	assert.Equal(t, []any{"0", []any{"d"}}, storetesting.MustCall(t, s, "scan", "3"))
	assert.Equal(t, []any{"0", []any{"d"}}, storetesting.MustCall(t, s, "scan", 1, "COUNT", 10, "MATCH", "d*"))

	_, err := storetesting.Call(t, s, "scan", "x")
	assert.Error(t, err)
	_, err = storetesting.Call(t, s, "scan", 0, "MATCH")
	assert.Error(t, err)
}

func TestKeysAndFlush(t *testing.T) {
	s := newTestStore(t, nil)
	storetesting.MustCall(t, s, "mset", "user:1", "a", "user:2", "b", "x", "c")

	assert.Equal(t, []any{"user:1", "user:2"}, storetesting.MustCall(t, s, "keys", "user:*"))
	assert.Equal(t, "string", storetesting.MustCall(t, s, "type", "x"))
	assert.Equal(t, "none", storetesting.MustCall(t, s, "type", "y"))

	assert.Equal(t, "OK", storetesting.MustCall(t, s, "flushdb"))
	assert.Equal(t, int64(0), storetesting.MustCall(t, s, "dbsize"))
}

func TestConnectionCommandsAreInternal(t *testing.T) {
	s := newTestStore(t, nil)

	for _, name := range []string{"quit", "select"} {
		b, ok := s.Lookup(name)
		require.True(t, ok)
		assert.True(t, b.Internal(), name)
	}

	// catalog commands without a handler are not bound
	_, ok := s.Lookup("restore-asking")
	assert.False(t, ok)
}

func TestTransactionAbort(t *testing.T) {
	s := newTestStore(t, nil)

	tx := s.Transaction([]any{"set", "a", "1"}, []any{"nosuchcommand"})
	b, ok := tx.Lookup(store.ExecTransaction)
	require.True(t, ok)

	var gotErr error
	b.Fn(nil, func(_ any, err error) { gotErr = err })
	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "EXECABORT")
	assert.Nil(t, storetesting.MustCall(t, s, "get", "a"), "nothing of an aborted transaction runs")

	// exec drains the queue
	b.Fn(nil, func(res any, err error) {
		assert.NoError(t, err)
		assert.Empty(t, res)
	})
}

func TestExecAtomicSingleCommand(t *testing.T) {
	s := newTestStore(t, nil)

	tx := s.Transaction([]any{"incr", "n"})
	b, ok := tx.Lookup("EXEC_ATOMIC")
	require.True(t, ok)

	b.Fn(nil, func(res any, err error) {
		require.NoError(t, err)
		assert.Equal(t, []any{int64(1)}, res)
	})
}
