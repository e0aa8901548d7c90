// Package store defines the callback-style client contract that sessions are
// built on, together with the command catalog and the store error type.
//
// The package focuses on:
//   - The IStore / ITx interfaces (the collaborator a session wraps)
//   - A fixed, versioned command catalog (Catalog, CatalogVersion)
//   - Name normalization shared by every store and the session registry
//   - A structured error type with return codes
//
// Key Components:
//
//   - IStore Interface: exposes one Binding per supported catalog command. A binding
//     is a CommandFunc of shape (args, callback(result, err)). Bindings whose name
//     contains InternalMarker are reserved for the store itself.
//
//   - ITx Interface: a transaction builder that queues commands and binds the three
//     finalize aliases exec_transaction (atomic), exec_atomic (legacy) and exec
//     (pipelined).
//
//   - Error System: Error carries a RetCode so callers can tell wrong-type,
//     syntax and unsupported-operation failures apart.
//
// Implementations:
//
//   - Local Store (lstore): executes the commands itself on top of a db.KVDB engine
//     (in-memory or bbolt). Available in "github.com/ValentinKolb/pxKV/lib/store/lstore".
//
//   - Redis Store (rstore): forwards every catalog command to a RESP server using
//     go-redis. Available in "github.com/ValentinKolb/pxKV/lib/store/rstore".
//
// The testing package holds the conformance suite both implementations run.
package store
