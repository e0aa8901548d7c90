package rstore

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ValentinKolb/pxKV/lib/store"
	"github.com/redis/go-redis/v9"
)

type txImpl struct {
	s     *storeImpl
	mu    sync.Mutex
	queue [][]any
}

func (t *txImpl) Queue(name string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = append(t.queue, command(strings.ToLower(name), args))
}

func (t *txImpl) Lookup(name string) (store.Binding, bool) {
	var atomic func(n int) bool

	switch strings.ToLower(name) {
	case store.ExecTransaction:
		atomic = func(int) bool { return true }
	case store.ExecAtomic:
		atomic = func(n int) bool { return n > 1 }
	case store.Exec:
		atomic = func(int) bool { return false }
	default:
		return store.Binding{}, false
	}

	return store.Binding{
		Name: "rstore.tx." + strings.ToLower(name),
		Fn: func(_ []any, cb store.Callback) {
			cmds := t.drain()
			go func() {
				cb(t.s.exec(cmds, atomic(len(cmds))))
			}()
		},
	}, true
}

func (t *txImpl) drain() [][]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	cmds := t.queue
	t.queue = nil
	return cmds
}

// exec sends the commands as one pipeline, wrapped in MULTI/EXEC if atomic.
// A transaction discarded by the server fails as a whole; otherwise every
// command gets its own reply slot holding either its result or its error.
func (s *storeImpl) exec(cmds [][]any, atomic bool) (any, error) {
	if len(cmds) == 0 {
		return []any{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	queue := func(p redis.Pipeliner) error {
		for _, c := range cmds {
			p.Do(ctx, c...)
		}
		return nil
	}

	var (
		results []redis.Cmder
		err     error
	)
	if atomic {
		results, err = s.client.TxPipelined(ctx, queue)
	} else {
		results, err = s.client.Pipelined(ctx, queue)
	}

	if err != nil && !isServerError(err) {
		return nil, err
	}

	replies := make([]any, len(results))
	for i, r := range results {
		if aborted(r.Err()) {
			return nil, r.Err()
		}
		res, cmdErr := reply(r.(*redis.Cmd).Result())
		if cmdErr != nil {
			replies[i] = cmdErr
			continue
		}
		replies[i] = res
	}
	return replies, nil
}

func isServerError(err error) bool {
	var rerr redis.Error
	return errors.As(err, &rerr)
}

func aborted(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "EXECABORT")
}
