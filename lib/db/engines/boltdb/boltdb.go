package boltdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/pxKV/lib/db"
	"github.com/lni/dragonboat/v4/logger"
	bolt "go.etcd.io/bbolt"
)

var (
	Logger = logger.GetLogger("db")

	bucketName = []byte("pxkv")
)

// entryHeader is the size of the expiration prefix stored in front of every value
const entryHeader = 8

// DBOptions configures the bolt engine
type DBOptions struct {
	Path        string        // database file
	OpenTimeout time.Duration // how long to wait for the file lock (0 = 1 sec)
	NoSync      bool          // skip fsync after each commit (tests, benchmarks)
}

type boltDB struct {
	bdb  *bolt.DB
	path string
}

// NewBoltDB opens (or creates) a bbolt file and returns it as a db.KVDB
func NewBoltDB(opts DBOptions) (db.KVDB, error) {
	if opts.Path == "" {
		return nil, errors.New("boltdb: path must not be empty")
	}
	if opts.OpenTimeout == 0 {
		opts.OpenTimeout = time.Second
	}

	bdb, err := bolt.Open(opts.Path, 0600, &bolt.Options{Timeout: opts.OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("boltdb: open %s: %w", opts.Path, err)
	}
	bdb.NoSync = opts.NoSync

	err = bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("boltdb: create bucket: %w", err)
	}

	Logger.Infof("opened %s", opts.Path)
	return &boltDB{bdb: bdb, path: opts.Path}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db/db.go)
// --------------------------------------------------------------------------

func (b *boltDB) Set(key string, entry db.Entry) error {
	return b.bdb.Update(func(tx *bolt.Tx) error {
		return txView{tx}.Set(key, entry)
	})
}

func (b *boltDB) Delete(key string) (deleted bool, err error) {
	err = b.bdb.Update(func(tx *bolt.Tx) error {
		deleted, err = txView{tx}.Delete(key)
		return err
	})
	return deleted, err
}

func (b *boltDB) Clear() error {
	return b.bdb.Update(func(tx *bolt.Tx) error {
		return txView{tx}.Clear()
	})
}

func (b *boltDB) Update(fn func(tx db.KVDB) error) error {
	return b.bdb.Update(func(tx *bolt.Tx) error {
		return fn(txView{tx})
	})
}

func (b *boltDB) Get(key string) (entry db.Entry, loaded bool, err error) {
	err = b.bdb.View(func(tx *bolt.Tx) error {
		entry, loaded, err = txView{tx}.Get(key)
		return err
	})
	return entry, loaded, err
}

// Keys collects the keys inside a read transaction and calls fn afterwards,
// so fn is free to write to the database.
func (b *boltDB) Keys(fn func(key string) bool) error {
	var keys []string
	err := b.bdb.View(func(tx *bolt.Tx) error {
		return txView{tx}.Keys(func(key string) bool {
			keys = append(keys, key)
			return true
		})
	})
	if err != nil {
		return err
	}
	for _, k := range keys {
		if !fn(k) {
			break
		}
	}
	return nil
}

func (b *boltDB) Len() (n int, err error) {
	err = b.bdb.View(func(tx *bolt.Tx) error {
		n, err = txView{tx}.Len()
		return err
	})
	return n, err
}

func (b *boltDB) SupportsFeature(feature db.Feature) bool {
	return feature&supported == feature
}

func (b *boltDB) GetInfo() db.DatabaseInfo {
	n, _ := b.Len()
	return db.DatabaseInfo{
		Keys:              n,
		DbType:            db.ImplBoltDB,
		SupportedFeatures: db.Features(supported),
		Metadata:          map[string]string{"path": b.path},
	}
}

func (b *boltDB) Close() error {
	Logger.Infof("closing %s", b.path)
	return b.bdb.Close()
}

const supported = db.FeatureExpire | db.FeatureAtomic | db.FeatureRollback | db.FeaturePersistent

// --------------------------------------------------------------------------
// Transaction view
// --------------------------------------------------------------------------

type txView struct {
	tx *bolt.Tx
}

func (v txView) bucket() *bolt.Bucket {
	return v.tx.Bucket(bucketName)
}

func (v txView) Set(key string, entry db.Entry) error {
	buf := make([]byte, entryHeader+len(entry.Value))
	binary.BigEndian.PutUint64(buf, uint64(entry.ExpireAt))
	copy(buf[entryHeader:], entry.Value)
	return v.bucket().Put([]byte(key), buf)
}

func (v txView) Delete(key string) (bool, error) {
	b := v.bucket()
	if b.Get([]byte(key)) == nil {
		return false, nil
	}
	return true, b.Delete([]byte(key))
}

func (v txView) Clear() error {
	if err := v.tx.DeleteBucket(bucketName); err != nil {
		return err
	}
	_, err := v.tx.CreateBucket(bucketName)
	return err
}

func (v txView) Update(fn func(tx db.KVDB) error) error {
	return fn(v)
}

func (v txView) Get(key string) (db.Entry, bool, error) {
	raw := v.bucket().Get([]byte(key))
	if raw == nil {
		return db.Entry{}, false, nil
	}
	if len(raw) < entryHeader {
		return db.Entry{}, false, fmt.Errorf("boltdb: corrupt entry for key %q", key)
	}
	// bolt memory is only valid inside the transaction
	value := make([]byte, len(raw)-entryHeader)
	copy(value, raw[entryHeader:])
	return db.Entry{
		Value:    value,
		ExpireAt: int64(binary.BigEndian.Uint64(raw[:entryHeader])),
	}, true, nil
}

func (v txView) Keys(fn func(key string) bool) error {
	c := v.bucket().Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		if !fn(string(k)) {
			break
		}
	}
	return nil
}

func (v txView) Len() (int, error) {
	n := 0
	c := v.bucket().Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n, nil
}

func (v txView) SupportsFeature(f db.Feature) bool { return f&supported == f }

func (v txView) GetInfo() db.DatabaseInfo {
	n, _ := v.Len()
	return db.DatabaseInfo{Keys: n, DbType: db.ImplBoltDB, SupportedFeatures: db.Features(supported)}
}

func (v txView) Close() error { return nil }
