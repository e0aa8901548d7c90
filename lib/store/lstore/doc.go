// Package lstore implements a local, single-node store based on the
// store.IStore interface. It executes the supported catalog commands itself
// on top of any db.KVDB engine, so the same store runs in memory (memdb) or
// persisted to disk (boltdb).
//
// Key Features:
//   - One callback-style binding per supported catalog command
//   - Expiration stored per entry and honoured on every read
//   - Optional background sweeper that purges expired keys
//   - Transactions with the three finalize aliases of store.ITx
//
// Implementation Details:
//
//   - Command Table: every command is a handler with an argument range, a
//     write flag and a function working on a db.KVDB view. Arguments are
//     converted to strings before the handler runs, like a RESP server
//     would receive them.
//
//   - Writes: write handlers run inside db.Update, so read-modify-write
//     commands (INCR, APPEND, SET NX ...) are atomic on every engine.
//
//   - Scan: the cursor is the offset into the ordered key space of the
//     engine. A full iteration returns every key that existed for its whole
//     duration at least once; keys added or removed meanwhile may or may not
//     be reported.
//
//   - Transactions: exec_transaction validates all queued commands first
//     (EXECABORT on unknown commands or bad arity) and then runs them in one
//     db.Update. exec runs the commands one after the other. exec_atomic is
//     atomic only when more than one command is queued. Runtime errors of a
//     single command are placed in its reply slot.
//
// Thread Safety:
//
// The store is safe for concurrent use. Callbacks are invoked synchronously on
// the calling goroutine before the binding returns.
package lstore
