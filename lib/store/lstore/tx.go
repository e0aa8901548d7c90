package lstore

import (
	"strings"
	"sync"

	"github.com/ValentinKolb/pxKV/lib/db"
	"github.com/ValentinKolb/pxKV/lib/store"
)

// queued is one command waiting for exec
type queued struct {
	name string
	args []any
}

// txImpl implements store.ITx for the local store
type txImpl struct {
	s     *storeImpl
	mu    sync.Mutex
	queue []queued
}

func (t *txImpl) Queue(name string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = append(t.queue, queued{name: strings.ToLower(name), args: args})
}

func (t *txImpl) Lookup(name string) (store.Binding, bool) {
	var fn func([]queued) (any, error)

	switch strings.ToLower(name) {
	case store.ExecTransaction:
		fn = t.s.execTransaction
	case store.ExecAtomic:
		fn = func(cmds []queued) (any, error) {
			if len(cmds) > 1 {
				return t.s.execTransaction(cmds)
			}
			return t.s.execPipeline(cmds)
		}
	case store.Exec:
		fn = t.s.execPipeline
	default:
		return store.Binding{}, false
	}

	return store.Binding{
		Name: "lstore.tx." + strings.ToLower(name),
		Fn: func(_ []any, cb store.Callback) {
			cb(fn(t.drain()))
		},
	}, true
}

// drain hands out the queued commands and resets the queue
func (t *txImpl) drain() []queued {
	t.mu.Lock()
	defer t.mu.Unlock()
	cmds := t.queue
	t.queue = nil
	return cmds
}

// execTransaction runs all commands inside one db.Update.
// Unknown commands or wrong arities abort the whole transaction before anything runs;
// runtime errors of single commands are returned in their reply slot.
func (s *storeImpl) execTransaction(cmds []queued) (any, error) {
	type prepared struct {
		h    handler
		args []string
	}

	plan := make([]prepared, len(cmds))
	for i, c := range cmds {
		h, ok := s.lookupHandler(c.name)
		if !ok {
			return nil, store.Errorf(store.RetCInvalidOperation, "EXECABORT unknown command '%s'", c.name)
		}
		args := toStrings(c.args)
		if err := h.checkArity(c.name, len(args)); err != nil {
			return nil, store.Errorf(store.RetCInvalidOperation, "EXECABORT %s", err.Msg)
		}
		plan[i] = prepared{h: h, args: args}
	}

	replies := make([]any, len(plan))
	now := s.now()
	err := s.db.Update(func(tx db.KVDB) error {
		for i, p := range plan {
			res, err := p.h.fn(tx, now, p.args)
			if err != nil {
				replies[i] = err
				continue
			}
			replies[i] = res
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return replies, nil
}

// execPipeline runs the commands one after another without isolation
func (s *storeImpl) execPipeline(cmds []queued) (any, error) {
	replies := make([]any, len(cmds))
	for i, c := range cmds {
		res, err := s.execute(c.name, c.args)
		if err != nil {
			replies[i] = err
			continue
		}
		replies[i] = res
	}
	return replies, nil
}
