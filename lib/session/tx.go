package session

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/pxKV/lib/store"
)

const (
	txMulti = "multi"
	txBatch = "batch"
)

func isTxEntry(id string) bool {
	id = strings.ToLower(id)
	return id == txMulti || id == txBatch
}

// Tx is a transaction builder. Commands are queued with Queue and sent
// with one of the finalize aliases, which are the only commands a Tx exposes.
// A Tx reports its outcome through the error policy of its session.
type Tx struct {
	s     *Session
	tx    store.ITx
	via   string
	table map[string]CommandFunc
}

// Multi creates a transaction builder whose exec runs atomically
func (s *Session) Multi(cmds ...[]any) *Tx {
	return s.newTx(txMulti, cmds)
}

// Batch creates a transaction builder whose finalize aliases stay distinct
func (s *Session) Batch(cmds ...[]any) *Tx {
	return s.newTx(txBatch, cmds)
}

// Tx creates a transaction builder through one of the entry aliases
// ("multi", "MULTI", "batch", "BATCH").
func (s *Session) Tx(name string, cmds ...[]any) (*Tx, bool) {
	if !isTxEntry(name) || (name != strings.ToLower(name) && name != strings.ToUpper(name)) {
		return nil, false
	}
	return s.newTx(strings.ToLower(name), cmds), true
}

func (s *Session) newTx(via string, cmds [][]any) *Tx {
	t := &Tx{
		s:     s,
		tx:    s.store.Transaction(cmds...),
		via:   via,
		table: make(map[string]CommandFunc, 2*len(store.FinalizeAliases)),
	}

	for _, alias := range store.FinalizeAliases {
		b, ok := t.tx.Lookup(alias)
		if !ok || b.Fn == nil || b.Internal() {
			continue
		}
		id := store.NormalizeName(alias)
		fn := s.adapt("tx."+id, b.Fn)
		t.table[id] = fn
		t.table[strings.ToUpper(id)] = fn
	}

	if via == txMulti {
		if fn, ok := t.table[store.ExecTransaction]; ok {
			t.table[store.Exec] = fn
			t.table[strings.ToUpper(store.Exec)] = fn
		}
	}
	return t
}

// Via returns the entry alias the builder was created with
func (t *Tx) Via() string {
	return t.via
}

// Queue adds a command to the transaction
func (t *Tx) Queue(name string, args ...any) *Tx {
	t.tx.Queue(name, args...)
	return t
}

// Command returns the finalize alias installed under name
func (t *Tx) Command(name string) (CommandFunc, bool) {
	fn, ok := t.table[name]
	return fn, ok
}

// Exec sends the queued commands. Built with Multi it runs atomically,
// built with Batch it is pipelined.
func (t *Tx) Exec(args ...any) *Promise {
	return t.finalize(store.Exec, args)
}

// ExecTransaction sends the queued commands atomically
func (t *Tx) ExecTransaction(args ...any) *Promise {
	return t.finalize(store.ExecTransaction, args)
}

// ExecAtomic sends the queued commands, atomically if more than one is queued
func (t *Tx) ExecAtomic(args ...any) *Promise {
	return t.finalize(store.ExecAtomic, args)
}

func (t *Tx) finalize(alias string, args []any) *Promise {
	if fn, ok := t.table[alias]; ok {
		return fn(args...)
	}

	p := newPromise()
	_, cb := splitCallback(args)
	t.s.settle(p, cb, nil, fmt.Errorf("%w: %s", ErrUnknownCommand, alias))
	return p
}
