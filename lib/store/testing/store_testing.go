package testing

import (
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/pxKV/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreFactory creates a new, empty store
type StoreFactory func() store.IStore

// RunStoreTests runs the conformance suite for a store implementation.
// Every subtest gets its own store which is closed afterwards.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		run := func(name string, fn func(t *testing.T, s store.IStore)) {
			t.Run(name, func(t *testing.T) {
				s := factory()
				defer s.Close()
				fn(t, s)
			})
		}

		run("Catalog", testCatalog)
		run("Lookup", testLookup)
		run("SetGet", testSetGet)
		run("SetOptions", testSetOptions)
		run("Del", testDel)
		run("Counters", testCounters)
		run("WrongType", testWrongType)
		run("TTL", testTTL)
		run("Scan", testScan)
		run("TransactionAtomic", testTransactionAtomic)
		run("TransactionPipeline", testTransactionPipeline)
		run("TransactionLegacy", testTransactionLegacy)
		run("ConcurrentCalls", testConcurrentCalls)
	})
}

// Call runs a command on the store and waits for its callback
func Call(t testing.TB, s store.IStore, name string, args ...any) (any, error) {
	t.Helper()
	b, ok := s.Lookup(name)
	require.True(t, ok, "command %s not bound", name)
	return invoke(t, b, args)
}

// MustCall is like Call but fails the test on error
func MustCall(t testing.TB, s store.IStore, name string, args ...any) any {
	t.Helper()
	res, err := Call(t, s, name, args...)
	require.NoError(t, err, "command %s %v", name, args)
	return res
}

func invoke(t testing.TB, b store.Binding, args []any) (any, error) {
	t.Helper()
	type reply struct {
		res any
		err error
	}
	ch := make(chan reply, 1)
	b.Fn(args, func(res any, err error) {
		ch <- reply{res, err}
	})
	select {
	case r := <-ch:
		return r.res, r.err
	case <-time.After(5 * time.Second):
		t.Fatalf("binding %s never called back", b.Name)
		return nil, nil
	}
}

func exec(t testing.TB, tx store.ITx, alias string) (any, error) {
	t.Helper()
	b, ok := tx.Lookup(alias)
	require.True(t, ok, "finalize alias %s not bound", alias)
	return invoke(t, b, nil)
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func testCatalog(t *testing.T, s store.IStore) {
	assert.Equal(t, store.Catalog, s.Commands())

	for _, name := range []string{"get", "set", "del", "scan", "exists", "incr"} {
		_, ok := s.Lookup(name)
		assert.True(t, ok, name)
	}
}

func testLookup(t *testing.T, s store.IStore) {
	_, ok := s.Lookup("definitely_not_a_command")
	assert.False(t, ok)

	b, ok := s.Lookup("GET")
	require.True(t, ok)
	assert.False(t, b.Internal())
}

func testSetGet(t *testing.T, s store.IStore) {
	assert.Equal(t, "OK", MustCall(t, s, "set", "k", "v"))
	assert.Equal(t, "v", MustCall(t, s, "get", "k"))
	assert.Nil(t, MustCall(t, s, "get", "missing"))

	// non-string arguments are sent in their textual form
	MustCall(t, s, "set", "n", 42)
	assert.Equal(t, "42", MustCall(t, s, "get", "n"))

	MustCall(t, s, "mset", "a", "1", "b", "2")
	assert.Equal(t, []any{"1", "2", nil}, MustCall(t, s, "mget", "a", "b", "c"))

	assert.Equal(t, int64(2), MustCall(t, s, "exists", "a", "b", "c"))
	assert.Equal(t, int64(3), MustCall(t, s, "append", "a", "23"))
	assert.Equal(t, "123", MustCall(t, s, "get", "a"))
}

func testSetOptions(t *testing.T, s store.IStore) {
	assert.Nil(t, MustCall(t, s, "set", "k", "v", "XX"))
	assert.Equal(t, "OK", MustCall(t, s, "set", "k", "v", "NX"))
	assert.Nil(t, MustCall(t, s, "set", "k", "w", "NX"))
	assert.Equal(t, "v", MustCall(t, s, "get", "k"))
	assert.Equal(t, "v", MustCall(t, s, "set", "k", "w", "GET"))
	assert.Equal(t, "w", MustCall(t, s, "get", "k"))
}

func testDel(t *testing.T, s store.IStore) {
	MustCall(t, s, "mset", "a", "1", "b", "2")
	assert.Equal(t, int64(2), MustCall(t, s, "del", "a", "b", "c"))
	assert.Equal(t, int64(0), MustCall(t, s, "del", "a"))
	assert.Nil(t, MustCall(t, s, "get", "a"))
}

func testCounters(t *testing.T, s store.IStore) {
	assert.Equal(t, int64(1), MustCall(t, s, "incr", "c"))
	assert.Equal(t, int64(11), MustCall(t, s, "incrby", "c", 10))
	assert.Equal(t, int64(10), MustCall(t, s, "decr", "c"))
	assert.Equal(t, int64(5), MustCall(t, s, "decrby", "c", "5"))
	assert.Equal(t, "5", MustCall(t, s, "get", "c"))
}

func testWrongType(t *testing.T, s store.IStore) {
	MustCall(t, s, "set", "k", "not a number")
	_, err := Call(t, s, "incr", "k")
	assert.Error(t, err)

	_, err = Call(t, s, "get")
	assert.Error(t, err, "missing argument")
}

func testTTL(t *testing.T, s store.IStore) {
	assert.Equal(t, int64(-2), MustCall(t, s, "ttl", "missing"))

	MustCall(t, s, "set", "k", "v")
	assert.Equal(t, int64(-1), MustCall(t, s, "ttl", "k"))

	MustCall(t, s, "set", "k", "v", "EX", 100)
	ttl := MustCall(t, s, "ttl", "k").(int64)
	assert.True(t, ttl > 90 && ttl <= 100, "ttl %d", ttl)

	assert.Equal(t, int64(1), MustCall(t, s, "persist", "k"))
	assert.Equal(t, int64(-1), MustCall(t, s, "ttl", "k"))

	assert.Equal(t, int64(1), MustCall(t, s, "expire", "k", 50))
	assert.Equal(t, int64(0), MustCall(t, s, "expire", "missing", 50))
}

func testScan(t *testing.T, s store.IStore) {
	want := make([]string, 0, 25)
	for i := 0; i < 25; i++ {
		key := fmt.Sprintf("user:%02d", i)
		want = append(want, key)
		MustCall(t, s, "set", key, i)
		MustCall(t, s, "set", fmt.Sprintf("other:%02d", i), i)
	}

	seen := make(map[string]bool)
	cursor := "0"
	for rounds := 0; ; rounds++ {
		require.Less(t, rounds, 1000, "scan does not terminate")

		reply, ok := MustCall(t, s, "scan", cursor, "MATCH", "user:*").([]any)
		require.True(t, ok)
		require.Len(t, reply, 2)

		cursor, ok = reply[0].(string)
		require.True(t, ok, "cursor must be a string, got %T", reply[0])
		keys, ok := reply[1].([]any)
		require.True(t, ok, "keys must be a list, got %T", reply[1])
		for _, k := range keys {
			seen[k.(string)] = true
		}
		if cursor == "0" {
			break
		}
	}

	got := make([]string, 0, len(seen))
	for k := range seen {
		got = append(got, k)
	}
	sort.Strings(got)
	assert.Equal(t, want, got)
}

func testTransactionAtomic(t *testing.T, s store.IStore) {
	tx := s.Transaction([]any{"set", "a", "1"}, []any{"incr", "a"})
	tx.Queue("get", "a")

	res, err := exec(t, tx, store.ExecTransaction)
	require.NoError(t, err)
	assert.Equal(t, []any{"OK", int64(2), "2"}, res)

	// runtime errors are reported per command, the others still run
	tx = s.Transaction([]any{"set", "b", "x"}, []any{"incr", "b"}, []any{"set", "c", "y"})
	res, err = exec(t, tx, store.ExecTransaction)
	require.NoError(t, err)
	replies := res.([]any)
	require.Len(t, replies, 3)
	assert.Equal(t, "OK", replies[0])
	assert.Implements(t, (*error)(nil), replies[1])
	assert.Equal(t, "OK", replies[2])
	assert.Equal(t, "y", MustCall(t, s, "get", "c"))
}

func testTransactionPipeline(t *testing.T, s store.IStore) {
	tx := s.Transaction()
	tx.Queue("set", "p", "1")
	tx.Queue("get", "p")
	tx.Queue("del", "p")

	res, err := exec(t, tx, store.Exec)
	require.NoError(t, err)
	assert.Equal(t, []any{"OK", "1", int64(1)}, res)
}

func testTransactionLegacy(t *testing.T, s store.IStore) {
	tx := s.Transaction([]any{"set", "l", "1"}, []any{"get", "l"})
	res, err := exec(t, tx, store.ExecAtomic)
	require.NoError(t, err)
	assert.Equal(t, []any{"OK", "1"}, res)

	_, ok := tx.Lookup("exec_nonsense")
	assert.False(t, ok)
}

func testConcurrentCalls(t *testing.T, s store.IStore) {
	const workers, perWorker = 8, 50

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := Call(t, s, "incr", "counter"); err != nil {
					t.Errorf("incr failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, fmt.Sprint(workers*perWorker), MustCall(t, s, "get", "counter"))
}
