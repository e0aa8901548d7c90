// Package memdb implements db.KVDB entirely in memory.
//
// Entries live in an xsync.MapOf, so single reads and writes from many goroutines
// do not contend on a global lock. Update groups take an exclusive lock for their
// duration; the group is isolated but writes made before a failing callback are
// kept (no FeatureRollback). Keys are sorted on every iteration, which makes Keys
// O(n log n) and fine for the key counts this engine is meant for.
package memdb
