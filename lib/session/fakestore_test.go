package session

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ValentinKolb/pxKV/lib/store"
)

var errBoom = errors.New("boom")

// fakeStore is a scripted store.IStore for session tests
type fakeStore struct {
	mu    sync.Mutex
	data  map[string]any
	calls map[string]int

	// async delivers replies from a new goroutine
	async bool
	// pageSize splits scan replies, the cursor is the offset of the next page
	pageSize int
	// scanReply replaces the scan implementation if set
	scanReply func(cursor uint64) (any, error)
	// delAcks replaces the del acknowledgements in call order if set
	delAcks []any
	// getErr fails get for the listed keys
	getErr map[string]error
}

func newFakeStore(kv ...string) *fakeStore {
	f := &fakeStore{
		data:     make(map[string]any),
		calls:    make(map[string]int),
		pageSize: 2,
		getErr:   make(map[string]error),
	}
	for i := 0; i+1 < len(kv); i += 2 {
		f.data[kv[i]] = kv[i+1]
	}
	return f
}

func (f *fakeStore) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeStore) Value(key string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok
}

func (f *fakeStore) Commands() []string {
	return []string{"ping", "get", "set", "del", "scan", "fail", "restore-asking", "quit", "multi", "exec", "unbound"}
}

func (f *fakeStore) reply(cb store.Callback, res any, err error) {
	if f.async {
		go cb(res, err)
		return
	}
	cb(res, err)
}

func (f *fakeStore) bind(name string, fn func(args []any) (any, error)) store.Binding {
	return store.Binding{
		Name: "fake." + name,
		Fn: func(args []any, cb store.Callback) {
			f.mu.Lock()
			f.calls[name]++
			res, err := fn(args)
			f.mu.Unlock()
			f.reply(cb, res, err)
		},
	}
}

func (f *fakeStore) Lookup(name string) (store.Binding, bool) {
	switch strings.ToLower(name) {
	case "ping":
		return f.bind("ping", func(args []any) (any, error) {
			if len(args) > 0 {
				return args[0], nil
			}
			return "PONG", nil
		}), true
	case "get":
		return f.bind("get", func(args []any) (any, error) {
			if len(args) != 1 {
				return nil, errors.New("wrong number of arguments for 'get'")
			}
			key := fmt.Sprint(args[0])
			if err := f.getErr[key]; err != nil {
				return nil, err
			}
			return f.data[key], nil
		}), true
	case "set":
		return f.bind("set", func(args []any) (any, error) {
			if len(args) != 2 {
				return nil, errors.New("wrong number of arguments for 'set'")
			}
			f.data[fmt.Sprint(args[0])] = args[1]
			return "OK", nil
		}), true
	case "del":
		return f.bind("del", func(args []any) (any, error) {
			if len(args) != 1 {
				return nil, errors.New("wrong number of arguments for 'del'")
			}
			key := fmt.Sprint(args[0])
			if len(f.delAcks) > 0 {
				ack := f.delAcks[0]
				f.delAcks = f.delAcks[1:]
				delete(f.data, key)
				return ack, nil
			}
			if _, ok := f.data[key]; !ok {
				return int64(0), nil
			}
			delete(f.data, key)
			return int64(1), nil
		}), true
	case "scan":
		return f.bind("scan", f.scan), true
	case "fail":
		return f.bind("fail", func([]any) (any, error) {
			return "partial", errBoom
		}), true
	case "restore-asking":
		return f.bind("restore-asking", func([]any) (any, error) {
			return "restored", nil
		}), true
	case "quit":
		return store.Binding{
			Name: "fake." + store.InternalMarker + "Quit",
			Fn:   func(_ []any, cb store.Callback) { cb("OK", nil) },
		}, true
	case "multi":
		return f.bind("multi", func([]any) (any, error) { return "OK", nil }), true
	}
	return store.Binding{}, false
}

// scan pages through the sorted keys matching the pattern
func (f *fakeStore) scan(args []any) (any, error) {
	if len(args) != 3 || args[1] != "MATCH" {
		return nil, fmt.Errorf("bad scan args %v", args)
	}
	cursor, _ := args[0].(uint64)
	if f.scanReply != nil {
		return f.scanReply(cursor)
	}
	pattern := fmt.Sprint(args[2])

	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	end := int(cursor) + f.pageSize
	next := uint64(end)
	if end >= len(keys) {
		end, next = len(keys), 0
	}

	page := make([]any, 0, f.pageSize)
	for _, k := range keys[cursor:end] {
		if ok, _ := path.Match(pattern, k); ok {
			page = append(page, k)
		}
	}
	return []any{strconv.FormatUint(next, 10), page}, nil
}

func (f *fakeStore) Transaction(cmds ...[]any) store.ITx {
	tx := &fakeTx{f: f}
	for _, c := range cmds {
		tx.Queue(fmt.Sprint(c[0]), c[1:]...)
	}
	return tx
}

func (f *fakeStore) Close() error {
	return nil
}

// fakeTx replies with the finalize alias and the number of queued commands
type fakeTx struct {
	f      *fakeStore
	mu     sync.Mutex
	queued []string
}

func (t *fakeTx) Queue(name string, _ ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queued = append(t.queued, name)
}

func (t *fakeTx) Lookup(name string) (store.Binding, bool) {
	alias := strings.ToLower(name)
	for _, a := range store.FinalizeAliases {
		if a == alias {
			return store.Binding{
				Name: "fakeTx." + alias,
				Fn: func(_ []any, cb store.Callback) {
					t.mu.Lock()
					res := fmt.Sprintf("%s:%d", alias, len(t.queued))
					t.queued = nil
					t.mu.Unlock()
					t.f.reply(cb, res, nil)
				},
			}, true
		}
	}
	return store.Binding{}, false
}
