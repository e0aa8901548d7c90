// Package db defines the storage engine contract used by the in-process stores.
//
// An engine is deliberately dumb: it maps string keys to entries (raw bytes plus an
// optional expiration timestamp), iterates keys in byte order and can run a group of
// operations in isolation. Command semantics such as expiry, counters or glob
// matching live one layer up in lib/store/lstore.
//
// Key Components:
//
//   - KVDB Interface: Get, Set, Delete, Keys, Len, Clear and Update (isolated groups).
//
//   - Feature Flags: engines advertise expiry storage, atomic groups, rollback and
//     persistence through SupportsFeature.
//
// Engines:
//
//   - engines/memdb: sharded in-memory engine built on xsync.MapOf.
//   - engines/boltdb: single-file engine built on bbolt.
//
// The testing package runs the same conformance suite against every engine.
package db
