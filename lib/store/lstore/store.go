package lstore

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/pxKV/lib/db"
	"github.com/ValentinKolb/pxKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("lstore")
)

const (
	defaultScanPageSize  = 10
	defaultSweepInterval = time.Second
)

// Options configures a local store
type Options struct {
	// ScanPageSize is the number of keys a scan examines when no COUNT is given
	ScanPageSize int
	// SweepInterval is the time between two passes that purge expired keys (< 0 = never)
	SweepInterval time.Duration
	// Clock returns the current time (nil = time.Now)
	Clock func() time.Time
}

// DefaultOptions returns the default local store options
func DefaultOptions() *Options {
	return &Options{
		ScanPageSize:  defaultScanPageSize,
		SweepInterval: defaultSweepInterval,
		Clock:         time.Now,
	}
}

type storeImpl struct {
	db       db.KVDB
	pageSize int
	now      func() time.Time

	stop      chan struct{}
	stopOnce  sync.Once
	sweepDone sync.WaitGroup
}

// NewLocalStore creates a new local store on top of the database returned by factory.
// The store executes every supported catalog command itself.
func NewLocalStore(factory db.Factory, opts *Options) (store.IStore, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.ScanPageSize <= 0 {
		opts.ScanPageSize = defaultScanPageSize
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	database, err := factory()
	if err != nil {
		return nil, err
	}

	s := &storeImpl{
		db:       database,
		pageSize: opts.ScanPageSize,
		now:      opts.Clock,
		stop:     make(chan struct{}),
	}

	if opts.SweepInterval > 0 {
		s.sweepDone.Add(1)
		go s.sweep(opts.SweepInterval)
	}

	Logger.Infof("local store ready (engine=%s, %d commands)", database.GetInfo().DbType, len(handlers))
	return s, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Commands() []string {
	return store.Catalog
}

func (s *storeImpl) Lookup(name string) (store.Binding, bool) {
	name = strings.ToLower(name)

	switch name {
	case "quit", "select":
		// connection level commands are handled by the session lifecycle
		return store.Binding{
			Name: "lstore." + store.InternalMarker + "Conn",
			Fn: func(args []any, cb store.Callback) {
				cb("OK", nil)
			},
		}, true
	}

	if _, ok := handlers[name]; !ok {
		return store.Binding{}, false
	}

	return store.Binding{
		Name: "lstore." + name,
		Fn: func(args []any, cb store.Callback) {
			cb(s.execute(name, args))
		},
	}, true
}

func (s *storeImpl) Transaction(cmds ...[]any) store.ITx {
	tx := &txImpl{s: s}
	for _, c := range cmds {
		if len(c) == 0 {
			continue
		}
		tx.Queue(toString(c[0]), c[1:]...)
	}
	return tx
}

func (s *storeImpl) Close() error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.sweepDone.Wait()
	return s.db.Close()
}

// --------------------------------------------------------------------------
// Execution
// --------------------------------------------------------------------------

// execute runs one command. Writes run inside db.Update so read-modify-write
// commands are atomic.
func (s *storeImpl) execute(name string, rawArgs []any) (any, error) {
	h, ok := s.lookupHandler(name)
	if !ok {
		return nil, store.Errorf(store.RetCUnsupportedOperation, "unknown command '%s'", name)
	}

	args := toStrings(rawArgs)
	if err := h.checkArity(name, len(args)); err != nil {
		return nil, err
	}

	now := s.now()
	if !h.write {
		return h.fn(s.db, now, args)
	}

	var res any
	err := s.db.Update(func(tx db.KVDB) error {
		var err error
		res, err = h.fn(tx, now, args)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *storeImpl) lookupHandler(name string) (handler, bool) {
	h, ok := handlers[name]
	if ok && name == "scan" {
		h.fn = s.scan
	}
	return h, ok
}

// sweep periodically deletes expired entries
func (s *storeImpl) sweep(interval time.Duration) {
	defer s.sweepDone.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n, err := s.purgeExpired(); err != nil {
				Logger.Warningf("sweep failed: %v", err)
			} else if n > 0 {
				Logger.Debugf("sweep removed %d expired keys", n)
			}
		}
	}
}

func (s *storeImpl) purgeExpired() (int, error) {
	var expired []string
	now := s.now()
	err := s.db.Keys(func(key string) bool {
		if e, ok, err := s.db.Get(key); err == nil && ok && e.Expired(now) {
			expired = append(expired, key)
		}
		return true
	})
	if err != nil || len(expired) == 0 {
		return 0, err
	}

	removed := 0
	err = s.db.Update(func(tx db.KVDB) error {
		for _, key := range expired {
			// the key may have been rewritten since it was listed
			if _, ok, err := load(tx, now, key); err != nil {
				return err
			} else if ok {
				continue
			}
			if deleted, err := tx.Delete(key); err != nil {
				return err
			} else if deleted {
				removed++
			}
		}
		return nil
	})
	return removed, err
}

// --------------------------------------------------------------------------
// Argument helpers
// --------------------------------------------------------------------------

func toString(arg any) string {
	switch v := arg.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func toStrings(args []any) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = toString(a)
	}
	return out
}
