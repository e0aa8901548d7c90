package memdb

import (
	"sort"
	"sync"

	"github.com/ValentinKolb/pxKV/lib/db"
	"github.com/puzpuzpuz/xsync/v3"
)

// memDB keeps all entries in a concurrent map.
// Single operations only take the read side of mu, Update takes the write side,
// so a group never interleaves with other writers.
type memDB struct {
	mu   sync.RWMutex
	data *xsync.MapOf[string, db.Entry]
}

// DBOptions configures the memDB behavior during initialization
type DBOptions struct {
	SizeHint int // initial capacity (0 = xsync default)
}

// NewMemDB creates a new in-memory engine with the specified options (optional)
func NewMemDB(opts *DBOptions) db.KVDB {
	if opts == nil {
		opts = &DBOptions{}
	}

	var data *xsync.MapOf[string, db.Entry]
	if opts.SizeHint > 0 {
		data = xsync.NewMapOf[string, db.Entry](xsync.WithPresize(opts.SizeHint))
	} else {
		data = xsync.NewMapOf[string, db.Entry]()
	}

	return &memDB{data: data}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db/db.go)
// --------------------------------------------------------------------------

func (m *memDB) Set(key string, entry db.Entry) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m}.Set(key, entry)
}

func (m *memDB) Delete(key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m}.Delete(key)
}

func (m *memDB) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return view{m}.Clear()
}

func (m *memDB) Update(fn func(tx db.KVDB) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(view{m})
}

func (m *memDB) Get(key string) (db.Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return view{m}.Get(key)
}

func (m *memDB) Keys(fn func(key string) bool) error {
	m.mu.RLock()
	keys := view{m}.sortedKeys()
	m.mu.RUnlock()

	for _, k := range keys {
		if !fn(k) {
			break
		}
	}
	return nil
}

func (m *memDB) Len() (int, error) {
	return m.data.Size(), nil
}

func (m *memDB) SupportsFeature(feature db.Feature) bool {
	return feature&supported == feature
}

func (m *memDB) GetInfo() db.DatabaseInfo {
	return db.DatabaseInfo{
		Keys:              m.data.Size(),
		DbType:            db.ImplMemDB,
		SupportedFeatures: db.Features(supported),
	}
}

func (m *memDB) Close() error {
	m.data.Clear()
	return nil
}

const supported = db.FeatureExpire | db.FeatureAtomic

// --------------------------------------------------------------------------
// Unlocked view (used directly inside Update)
// --------------------------------------------------------------------------

type view struct {
	m *memDB
}

func (v view) Set(key string, entry db.Entry) error {
	value := make([]byte, len(entry.Value))
	copy(value, entry.Value)
	v.m.data.Store(key, db.Entry{Value: value, ExpireAt: entry.ExpireAt})
	return nil
}

func (v view) Delete(key string) (bool, error) {
	_, loaded := v.m.data.LoadAndDelete(key)
	return loaded, nil
}

func (v view) Clear() error {
	v.m.data.Clear()
	return nil
}

func (v view) Update(fn func(tx db.KVDB) error) error {
	return fn(v)
}

func (v view) Get(key string) (db.Entry, bool, error) {
	e, ok := v.m.data.Load(key)
	if !ok {
		return db.Entry{}, false, nil
	}
	value := make([]byte, len(e.Value))
	copy(value, e.Value)
	return db.Entry{Value: value, ExpireAt: e.ExpireAt}, true, nil
}

func (v view) Keys(fn func(key string) bool) error {
	for _, k := range v.sortedKeys() {
		if !fn(k) {
			break
		}
	}
	return nil
}

func (v view) sortedKeys() []string {
	keys := make([]string, 0, v.m.data.Size())
	v.m.data.Range(func(k string, _ db.Entry) bool {
		keys = append(keys, k)
		return true
	})
	sort.Strings(keys)
	return keys
}

func (v view) Len() (int, error)                 { return v.m.Len() }
func (v view) SupportsFeature(f db.Feature) bool { return v.m.SupportsFeature(f) }
func (v view) GetInfo() db.DatabaseInfo          { return v.m.GetInfo() }
func (v view) Close() error                      { return nil }
