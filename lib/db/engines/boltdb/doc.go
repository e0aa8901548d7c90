// Package boltdb implements db.KVDB on top of a single bbolt file.
//
// All keys live in one bucket. Each value is stored with an 8 byte big-endian
// prefix holding the expiration timestamp, so expiry survives restarts. Update maps
// onto a bbolt read-write transaction and therefore rolls back when the callback
// fails. Keys are naturally ordered by bbolt's B+tree.
package boltdb
