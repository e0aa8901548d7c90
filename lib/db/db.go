package db

import "time"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMemDB  Implementation = "memdb"
	ImplBoltDB Implementation = "boltdb"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureExpire     Feature = 1 << iota // Entries may carry an expiration timestamp
	FeatureAtomic                         // Update runs the whole group in isolation
	FeatureRollback                       // A failing Update discards its writes
	FeaturePersistent                     // Data survives Close
)

func (f Feature) String() string {
	switch f {
	case FeatureExpire:
		return "Expire"
	case FeatureAtomic:
		return "Atomic"
	case FeatureRollback:
		return "Rollback"
	case FeaturePersistent:
		return "Persistent"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	Keys              int            `json:"keys"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Entry
// --------------------------------------------------------------------------

// Entry is a stored value with an optional expiration timestamp
type Entry struct {
	Value    []byte
	ExpireAt int64 // unix milliseconds, 0 = never
}

// Expired reports whether the entry is logically gone at the given time
func (e Entry) Expired(now time.Time) bool {
	return e.ExpireAt != 0 && now.UnixMilli() >= e.ExpireAt
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for key-value database implementations.
// Engines store raw entries and never interpret expiration timestamps themselves;
// expiry is applied by the layer above.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or replaces the entry for key.
	// Implementations must copy the value.
	Set(key string, entry Entry) (err error)

	// Delete removes key. deleted reports whether the key existed.
	Delete(key string) (deleted bool, err error)

	// Clear removes every key.
	Clear() (err error)

	// Update runs fn with a view of the database in which no other writer is active.
	// Calling Update on the view runs fn directly. Whether writes made before fn
	// returns an error are kept depends on FeatureRollback.
	Update(fn func(tx KVDB) error) (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get returns a copy of the entry for key.
	Get(key string) (entry Entry, loaded bool, err error)

	// Keys calls fn for every key in ascending byte order until fn returns false.
	Keys(fn func(key string) bool) (err error)

	// Len returns the number of stored keys, expired ones included.
	Len() (n int, err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database.
	Close() (err error)
}

// Factory creates the database used by a store
type Factory func() (KVDB, error)

// Features lists the single features set in f
func Features(f Feature) []Feature {
	var out []Feature
	for _, ft := range []Feature{FeatureExpire, FeatureAtomic, FeatureRollback, FeaturePersistent} {
		if f&ft != 0 {
			out = append(out, ft)
		}
	}
	return out
}
