package session

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/pxKV/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, f *fakeStore) *Session {
	s := New(f, nil)
	t.Cleanup(s.Close)
	return s
}

// await waits for p and fails the test if it does not settle in time
func await(t *testing.T, p *Promise) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := p.Await(ctx)
	require.False(t, errors.Is(err, context.DeadlineExceeded), "promise never settled")
	return res, err
}

func TestCommandTable(t *testing.T) {
	s := newTestSession(t, newFakeStore())

	assert.Equal(t, []string{
		"ping", "PING", "get", "GET", "set", "SET", "del", "DEL", "scan", "SCAN",
		"fail", "FAIL", "restore_asking", "RESTORE_ASKING",
	}, s.Commands())

	for _, name := range []string{"quit", "QUIT", "multi", "MULTI", "exec", "unbound", "Get"} {
		_, ok := s.Command(name)
		assert.False(t, ok, name)
	}
}

func TestEveryCommandSettlesOnce(t *testing.T) {
	for _, async := range []bool{false, true} {
		f := newFakeStore("k", "v")
		f.async = async
		s := newTestSession(t, f)
		s.SetThrowErrors(false)

		for _, name := range s.Commands() {
			fn, ok := s.Command(name)
			require.True(t, ok)

			// without callback
			_, _ = await(t, fn("k"))

			// with callback: called once, before the promise settles
			var (
				p     *Promise
				calls int
			)
			done := make(chan struct{})
			p = fn("k", store.Callback(func(any, error) {
				calls++
				<-done // p is assigned once fn returned
				assert.False(t, p.Settled(), "%s: callback must run before the promise settles", name)
			}))
			close(done)
			_, _ = await(t, p)
			assert.Equal(t, 1, calls, name)
		}
	}
}

func TestCallbackAndPromiseSeeSameOutcome(t *testing.T) {
	s := newTestSession(t, newFakeStore("k", "v"))

	var cbRes any
	var cbErr error
	res, err := await(t, s.Do("get", "k", func(r any, e error) { cbRes, cbErr = r, e }))
	require.NoError(t, err)
	assert.Equal(t, "v", res)
	assert.Equal(t, res, cbRes)
	assert.NoError(t, cbErr)

	// failures: the callback gets the raw outcome, the promise rejects
	res, err = await(t, s.Do("FAIL", store.Callback(func(r any, e error) { cbRes, cbErr = r, e })))
	assert.ErrorIs(t, err, errBoom)
	assert.Nil(t, res)
	assert.ErrorIs(t, cbErr, errBoom)
	assert.Equal(t, "partial", cbRes)
	assert.Equal(t, KindStore, KindOf(err))
}

func TestTrailingNilCallbackIsDropped(t *testing.T) {
	s := newTestSession(t, newFakeStore())

	var cb store.Callback
	res, err := await(t, s.Do("ping", cb))
	require.NoError(t, err)
	assert.Equal(t, "PONG", res)
}

func TestNormalizedNames(t *testing.T) {
	s := newTestSession(t, newFakeStore())

	for _, name := range []string{"restore_asking", "RESTORE_ASKING", "restore-asking"} {
		res, err := await(t, s.Do(name))
		require.NoError(t, err, name)
		assert.Equal(t, "restored", res)
	}
}

func TestUnknownCommand(t *testing.T) {
	s := newTestSession(t, newFakeStore())

	var cbErr error
	_, err := await(t, s.Do("nope", store.Callback(func(_ any, e error) { cbErr = e })))
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.ErrorIs(t, cbErr, ErrUnknownCommand)
	assert.ErrorIs(t, s.LastError(), ErrUnknownCommand)

	s.SetThrowErrors(false)
	res, err := await(t, s.Do("nope"))
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestErrorPolicy(t *testing.T) {
	s := newTestSession(t, newFakeStore("k", "v"))
	assert.True(t, s.ThrowErrors())

	_, err := await(t, s.Do("fail"))
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, s.LastError(), errBoom)
	assert.Equal(t, "partial", s.LastResult())

	s.SetThrowErrors(false)
	res, err := await(t, s.Do("fail"))
	assert.NoError(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, s.LastError(), errBoom)

	// a success clears the last error
	_, err = await(t, s.Do("get", "k"))
	require.NoError(t, err)
	assert.NoError(t, s.LastError())
	assert.Equal(t, "v", s.LastResult())
}

func TestConfig(t *testing.T) {
	s := New(newFakeStore(), &Config{ThrowErrors: false})
	defer s.Close()
	assert.False(t, s.ThrowErrors())
}

func TestClosed(t *testing.T) {
	s := New(newFakeStore(), nil)
	s.Close()

	_, err := await(t, s.Do("ping"))
	assert.ErrorIs(t, err, ErrClosed)

	_, err = await(t, s.GetSearch("*", nil, nil))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestInFlightOperationSettlesAfterClose(t *testing.T) {
	f := newFakeStore("a1", "1", "a2", "2", "a3", "3")
	f.async = true
	s := New(f, nil)

	p := s.GetSearch("a*", nil, nil)
	s.Close()

	res, err := await(t, p)
	require.NoError(t, err)
	assert.Equal(t, 3, res.(*Mapping).Len())
}

func TestCloseDuringSearchKeepsStackBounded(t *testing.T) {
	f := newFakeStore()
	f.pageSize = 500
	for i := 0; i < 5000; i++ {
		f.data[fmt.Sprintf("k%05d", i)] = "v"
	}
	s := newTestSession(t, f)

	var first, max, n int
	_, err := await(t, s.GetSearch("k*", func(_ string, _ any, next func()) bool {
		d := runtime.Callers(0, make([]uintptr, 4096))
		if n == 0 {
			first = d
			s.Close()
		}
		if d > max {
			max = d
		}
		n++
		next()
		return true
	}, nil))
	require.NoError(t, err)
	assert.Equal(t, 5000, n)
	assert.Equal(t, first, max, "closing must not turn the key loop into recursion")

	_, err = await(t, s.Do("ping"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseDuringAsyncSearchRunsIteratorsOneAtATime(t *testing.T) {
	f := newFakeStore()
	f.async = true
	for i := 0; i < 200; i++ {
		f.data[fmt.Sprintf("k%03d", i)] = "v"
	}
	s := newTestSession(t, f)

	var running int32
	n := 0
	_, err := await(t, s.GetSearch("k*", func(_ string, _ any, next func()) bool {
		assert.Equal(t, int32(1), atomic.AddInt32(&running, 1))
		if n == 0 {
			s.Close()
		}
		n++
		atomic.AddInt32(&running, -1)
		next()
		return true
	}, nil))
	require.NoError(t, err)
	assert.Equal(t, 200, n)
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func TestGetDefault(t *testing.T) {
	s := newTestSession(t, newFakeStore("empty", "", "k", "v"))

	res, err := await(t, s.GetDefault("k", "D", nil))
	require.NoError(t, err)
	assert.Equal(t, "v", res)

	res, err = await(t, s.GetDefault("empty", "D", nil))
	require.NoError(t, err)
	assert.Equal(t, "", res, "present but empty values are returned as stored")

	var cbRes any
	res, err = await(t, s.GetDefault("missing", "D", func(r any, _ error) { cbRes = r }))
	require.NoError(t, err)
	assert.Equal(t, "D", res)
	assert.Equal(t, "D", cbRes)
}

func TestGetDefaultError(t *testing.T) {
	f := newFakeStore()
	f.getErr["k"] = errBoom
	s := newTestSession(t, f)

	_, err := await(t, s.GetDefault("k", "D", nil))
	assert.ErrorIs(t, err, errBoom)
}

func TestJSONRoundTrip(t *testing.T) {
	s := newTestSession(t, newFakeStore())

	obj := map[string]any{
		"name":   "alice",
		"age":    float64(42),
		"admin":  false,
		"tags":   []any{"a", "b"},
		"nested": map[string]any{"x": nil},
	}
	res, err := await(t, s.SetJSON("user", obj, nil))
	require.NoError(t, err)
	assert.Equal(t, "OK", res)

	res, err = await(t, s.GetJSON("user", nil))
	require.NoError(t, err)
	assert.Equal(t, obj, res)

	res, err = await(t, s.GetJSON("missing", nil))
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestGetJSONParseError(t *testing.T) {
	f := newFakeStore("bad", "{not json")
	f.data["number"] = int64(7)
	s := newTestSession(t, f)

	res, err := await(t, s.GetJSON("bad", nil))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, KindParse, KindOf(err))

	var serr *Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "bad", serr.Key)

	_, err = await(t, s.GetJSON("number", nil))
	assert.Equal(t, KindParse, KindOf(err))

	// without throwErrors the parse error is only visible through LastError
	s.SetThrowErrors(false)
	res, err = await(t, s.GetJSON("bad", nil))
	assert.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, KindParse, KindOf(s.LastError()))
}

func TestSetJSONSerializationError(t *testing.T) {
	f := newFakeStore()
	s := newTestSession(t, f)

	var cbErr error
	_, err := await(t, s.SetJSON("k", make(chan int), func(_ any, e error) { cbErr = e }))
	assert.Equal(t, KindSerialization, KindOf(err))
	assert.Equal(t, KindSerialization, KindOf(cbErr))
	assert.Equal(t, 0, f.Calls("set"), "nothing is written")
}

// --------------------------------------------------------------------------
// Transactions
// --------------------------------------------------------------------------

func TestMultiNormalizesExec(t *testing.T) {
	s := newTestSession(t, newFakeStore())

	tx := s.Multi([]any{"set", "a", 1}).Queue("get", "a")
	res, err := await(t, tx.Exec())
	require.NoError(t, err)
	assert.Equal(t, "exec_transaction:2", res)

	exec, ok := tx.Command("EXEC")
	require.True(t, ok)
	res, err = await(t, exec())
	require.NoError(t, err)
	assert.Equal(t, "exec_transaction:0", res)

	res, err = await(t, tx.ExecAtomic())
	require.NoError(t, err)
	assert.Equal(t, "exec_atomic:0", res)
}

func TestBatchKeepsAliasesDistinct(t *testing.T) {
	s := newTestSession(t, newFakeStore())

	tx, ok := s.Tx("BATCH", []any{"set", "a", 1})
	require.True(t, ok)
	assert.Equal(t, "batch", tx.Via())

	res, err := await(t, tx.Exec())
	require.NoError(t, err)
	assert.Equal(t, "exec:1", res)

	for _, alias := range []string{"exec", "EXEC", "exec_atomic", "EXEC_ATOMIC", "exec_transaction", "EXEC_TRANSACTION"} {
		_, ok := tx.Command(alias)
		assert.True(t, ok, alias)
	}
	for _, name := range []string{"get", "set", "multi", "Exec"} {
		_, ok := tx.Command(name)
		assert.False(t, ok, name)
	}

	res, err = await(t, tx.ExecTransaction())
	require.NoError(t, err)
	assert.Equal(t, "exec_transaction:0", res)
}

func TestTxEntryAliases(t *testing.T) {
	s := newTestSession(t, newFakeStore())

	for _, name := range []string{"multi", "MULTI", "batch", "BATCH"} {
		_, ok := s.Tx(name)
		assert.True(t, ok, name)
	}
	for _, name := range []string{"Multi", "exec", "get"} {
		_, ok := s.Tx(name)
		assert.False(t, ok, name)
	}
}

func TestTxSharesSessionState(t *testing.T) {
	s := newTestSession(t, newFakeStore())

	_, err := await(t, s.Multi().Queue("ping").Exec())
	require.NoError(t, err)
	assert.Equal(t, "exec_transaction:1", s.LastResult())
}
