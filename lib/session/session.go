package session

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/pxKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("session")
)

// Config holds the session options
type Config struct {
	// ThrowErrors makes failed operations reject their promise.
	// If false they resolve with nil and the error is only visible through LastError.
	ThrowErrors bool
}

// DefaultConfig returns the default session configuration
func DefaultConfig() *Config {
	return &Config{ThrowErrors: true}
}

// CommandFunc is an adapted store command. If the last argument is a
// store.Callback (or a func(any, error)) it is called with the outcome
// before the returned promise settles.
type CommandFunc func(args ...any) *Promise

// Session wraps a callback-style store.IStore and exposes every store command
// and the composite operations (GetSearch, DelSearch, JSON helpers) as
// promise-returning methods.
//
// All store calls, callbacks and iterators of a session run one at a time on
// the session loop. Operations may be started from any goroutine.
type Session struct {
	store store.IStore
	queue *taskQueue

	// command table, built once in New
	table map[string]CommandFunc
	names []string

	// raw bindings used by the composite operations
	scan, get, set, del store.CommandFunc

	throwErrors atomic.Bool
	stateMu     sync.Mutex
	lastError   error
	lastResult  any
}

// New creates a session on top of st and starts its loop.
// The store is not closed by the session.
func New(st store.IStore, cfg *Config) *Session {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Session{
		store: st,
		queue: newTaskQueue(),
		table: make(map[string]CommandFunc),
	}
	s.throwErrors.Store(cfg.ThrowErrors)
	s.buildTable()
	s.scan = s.rawBinding("scan")
	s.get = s.rawBinding("get")
	s.set = s.rawBinding("set")
	s.del = s.rawBinding("del")

	go s.queue.run()

	Logger.Debugf("session ready, %d commands installed (catalog %s)", len(s.names), store.CatalogVersion)
	return s
}

// Close stops the session loop. Operations already started still run to
// completion on the loop; operations started afterwards fail with ErrClosed.
func (s *Session) Close() {
	s.queue.close()
}

// --------------------------------------------------------------------------
// Command table
// --------------------------------------------------------------------------

// buildTable installs one adapted function per catalog command, under the
// normalized lower-case and upper-case identifier. multi and batch are
// served by Tx and are never installed.
func (s *Session) buildTable() {
	for _, name := range s.store.Commands() {
		id := store.NormalizeName(strings.ToLower(name))
		if isTxEntry(id) {
			continue
		}

		b, ok := s.store.Lookup(name)
		if !ok || b.Fn == nil || b.Internal() {
			continue
		}

		for _, alias := range []string{id, strings.ToUpper(id)} {
			if _, exists := s.table[alias]; !exists {
				s.names = append(s.names, alias)
			}
			s.table[alias] = s.adapt(id, b.Fn)
		}
	}
}

func (s *Session) rawBinding(name string) store.CommandFunc {
	b, ok := s.store.Lookup(name)
	if !ok || b.Fn == nil {
		return nil
	}
	return b.Fn
}

// Commands returns the installed command identifiers in catalog order
func (s *Session) Commands() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Command returns the adapted function installed under name
func (s *Session) Command(name string) (CommandFunc, bool) {
	fn, ok := s.table[name]
	return fn, ok
}

// Do runs the command installed under name (e.g. "get" or "GET").
// Names are normalized first, so "restore-asking" finds "restore_asking".
// An unknown name settles the promise with ErrUnknownCommand.
func (s *Session) Do(name string, args ...any) *Promise {
	fn, ok := s.table[name]
	if !ok {
		fn, ok = s.table[store.NormalizeName(name)]
	}
	if ok {
		return fn(args...)
	}

	p := newPromise()
	_, cb := splitCallback(args)
	s.settle(p, cb, nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name))
	return p
}

// adapt wraps a callback-style binding into a CommandFunc
func (s *Session) adapt(name string, fn store.CommandFunc) CommandFunc {
	return func(args ...any) *Promise {
		p := newPromise()
		args, cb := splitCallback(args)
		start := time.Now()

		s.submit(p, cb, func() {
			fn(args, s.deliver(func(res any, err error) {
				observeCommand(name, start, err)
				s.settle(p, cb, res, err)
			}))
		})
		return p
	}
}

// splitCallback removes a trailing callback from args
func splitCallback(args []any) ([]any, store.Callback) {
	if len(args) == 0 {
		return args, nil
	}

	last := len(args) - 1
	switch cb := args[last].(type) {
	case store.Callback:
		if cb == nil {
			return args[:last], nil
		}
		return args[:last], cb
	case func(any, error):
		if cb == nil {
			return args[:last], nil
		}
		return args[:last], cb
	}
	return args, nil
}

// --------------------------------------------------------------------------
// Loop helpers
// --------------------------------------------------------------------------

// submit starts an operation on the loop, or fails it with ErrClosed.
// The loop keeps running until p settled.
func (s *Session) submit(p *Promise, cb store.Callback, fn task) {
	p.onSettle = s.queue.end
	if s.queue.start(fn) {
		return
	}
	p.onSettle = nil
	s.settle(p, cb, nil, ErrClosed)
}

// schedule runs fn on the loop after the tasks queued so far. The loop only
// stops once no operation is in flight, so a dropped task has nothing left
// to settle.
func (s *Session) schedule(fn task) {
	if !s.queue.push(fn) {
		Logger.Debugf("session loop stopped, dropping late task")
	}
}

// deliver returns a store callback that hands the reply over to the loop
func (s *Session) deliver(cb store.Callback) store.Callback {
	return func(res any, err error) {
		s.schedule(func() {
			cb(res, err)
		})
	}
}
