package session

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/pxKV/lib/store"
)

// GetDefault gets key and resolves with def if the key does not exist.
// Present values are returned as stored, including the empty string.
func (s *Session) GetDefault(key string, def any, cb store.Callback) *Promise {
	p := newPromise()
	start := time.Now()

	s.runRaw(p, cb, s.get, "get", []any{key}, func(res any, err error) {
		observeOperation("getdefault", start, err)
		if err == nil && res == nil {
			res = def
		}
		s.settle(p, cb, res, err)
	})
	return p
}

// SetJSON stores obj as JSON text under key. If obj cannot be encoded the
// promise fails with a KindSerialization error and nothing is written.
func (s *Session) SetJSON(key string, obj any, cb store.Callback) *Promise {
	p := newPromise()
	start := time.Now()

	data, err := jsonAPI.Marshal(obj)
	if err != nil {
		observeOperation("setjson", start, err)
		s.settle(p, cb, nil, &Error{Kind: KindSerialization, Key: key, Err: err})
		return p
	}

	s.runRaw(p, cb, s.set, "set", []any{key, string(data)}, func(res any, err error) {
		observeOperation("setjson", start, err)
		s.settle(p, cb, res, err)
	})
	return p
}

// GetJSON gets key and decodes its value as JSON. A missing key resolves with nil,
// stored text that is not JSON fails with a KindParse error.
func (s *Session) GetJSON(key string, cb store.Callback) *Promise {
	p := newPromise()
	start := time.Now()

	s.runRaw(p, cb, s.get, "get", []any{key}, func(res any, err error) {
		if err == nil && res != nil {
			res, err = decodeJSON(key, res)
		}
		observeOperation("getjson", start, err)
		s.settle(p, cb, res, err)
	})
	return p
}

func decodeJSON(key string, raw any) (any, error) {
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return nil, &Error{Kind: KindParse, Key: key, Err: fmt.Errorf("stored value has type %T, not text", raw)}
	}

	var out any
	if err := jsonAPI.Unmarshal(data, &out); err != nil {
		return nil, &Error{Kind: KindParse, Key: key, Err: err}
	}
	return out, nil
}

// runRaw calls a raw store binding on the loop and hands its reply to done (on the loop)
func (s *Session) runRaw(p *Promise, cb store.Callback, fn store.CommandFunc, name string, args []any, done store.Callback) {
	if fn == nil {
		s.settle(p, cb, nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name))
		return
	}
	s.submit(p, cb, func() {
		fn(args, s.deliver(done))
	})
}
