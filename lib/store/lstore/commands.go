package lstore

import (
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/pxKV/lib/db"
	"github.com/ValentinKolb/pxKV/lib/store"
	"github.com/tidwall/match"
)

// handler executes one command against a database view.
// min and max bound the number of arguments without the command name (max < 0 = unbounded).
type handler struct {
	min, max int
	write    bool
	fn       func(x db.KVDB, now time.Time, args []string) (any, error)
}

func (h handler) checkArity(name string, n int) *store.Error {
	if n < h.min || (h.max >= 0 && n > h.max) {
		return store.Errorf(store.RetCInvalidOperation, "wrong number of arguments for '%s' command", name)
	}
	return nil
}

var handlers map[string]handler

func init() {
	handlers = map[string]handler{
		"ping":     {min: 0, max: 1, fn: cmdPing},
		"echo":     {min: 1, max: 1, fn: cmdEcho},
		"get":      {min: 1, max: 1, fn: cmdGet},
		"strlen":   {min: 1, max: 1, fn: cmdStrlen},
		"mget":     {min: 1, max: -1, fn: cmdMGet},
		"exists":   {min: 1, max: -1, fn: cmdExists},
		"ttl":      {min: 1, max: 1, fn: cmdTTL(time.Second)},
		"pttl":     {min: 1, max: 1, fn: cmdTTL(time.Millisecond)},
		"type":     {min: 1, max: 1, fn: cmdType},
		"keys":     {min: 1, max: 1, fn: cmdKeys},
		"dbsize":   {min: 0, max: 0, fn: cmdDBSize},
		"set":      {min: 2, max: -1, write: true, fn: cmdSet},
		"setnx":    {min: 2, max: 2, write: true, fn: cmdSetNX},
		"setex":    {min: 3, max: 3, write: true, fn: cmdSetEx(time.Second)},
		"psetex":   {min: 3, max: 3, write: true, fn: cmdSetEx(time.Millisecond)},
		"getset":   {min: 2, max: 2, write: true, fn: cmdGetSet},
		"getdel":   {min: 1, max: 1, write: true, fn: cmdGetDel},
		"mset":     {min: 2, max: -1, write: true, fn: cmdMSet},
		"del":      {min: 1, max: -1, write: true, fn: cmdDel},
		"unlink":   {min: 1, max: -1, write: true, fn: cmdDel},
		"expire":   {min: 2, max: 2, write: true, fn: cmdExpire(time.Second)},
		"pexpire":  {min: 2, max: 2, write: true, fn: cmdExpire(time.Millisecond)},
		"persist":  {min: 1, max: 1, write: true, fn: cmdPersist},
		"incr":     {min: 1, max: 1, write: true, fn: cmdIncrBy(1, false)},
		"decr":     {min: 1, max: 1, write: true, fn: cmdIncrBy(-1, false)},
		"incrby":   {min: 2, max: 2, write: true, fn: cmdIncrBy(1, true)},
		"decrby":   {min: 2, max: 2, write: true, fn: cmdIncrBy(-1, true)},
		"append":   {min: 2, max: 2, write: true, fn: cmdAppend},
		"flushdb":  {min: 0, max: 0, write: true, fn: cmdFlush},
		"flushall": {min: 0, max: 0, write: true, fn: cmdFlush},
	}
	// scan needs the page size of its store, see storeImpl.lookupHandler
	handlers["scan"] = handler{min: 1, max: 5}
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

const statusOK = "OK"

// load reads a key, treating expired entries as missing
func load(x db.KVDB, now time.Time, key string) (db.Entry, bool, error) {
	e, ok, err := x.Get(key)
	if err != nil || !ok {
		return db.Entry{}, false, err
	}
	if e.Expired(now) {
		return db.Entry{}, false, nil
	}
	return e, true, nil
}

func expireAt(now time.Time, d time.Duration) int64 {
	return now.Add(d).UnixMilli()
}

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, store.NewError(store.RetCWrongType, "value is not an integer or out of range")
	}
	return n, nil
}

func syntaxError() error {
	return store.NewError(store.RetCSyntaxError, "syntax error")
}

// --------------------------------------------------------------------------
// Connection & keyspace
// --------------------------------------------------------------------------

func cmdPing(_ db.KVDB, _ time.Time, args []string) (any, error) {
	if len(args) == 0 {
		return "PONG", nil
	}
	return args[0], nil
}

func cmdEcho(_ db.KVDB, _ time.Time, args []string) (any, error) {
	return args[0], nil
}

func cmdExists(x db.KVDB, now time.Time, args []string) (any, error) {
	var n int64
	for _, key := range args {
		_, ok, err := load(x, now, key)
		if err != nil {
			return nil, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func cmdDel(x db.KVDB, now time.Time, args []string) (any, error) {
	var n int64
	for _, key := range args {
		_, live, err := load(x, now, key)
		if err != nil {
			return nil, err
		}
		deleted, err := x.Delete(key)
		if err != nil {
			return nil, err
		}
		if deleted && live {
			n++
		}
	}
	return n, nil
}

func cmdType(x db.KVDB, now time.Time, args []string) (any, error) {
	_, ok, err := load(x, now, args[0])
	if err != nil {
		return nil, err
	}
	if !ok {
		return "none", nil
	}
	return "string", nil
}

func cmdTTL(unit time.Duration) func(db.KVDB, time.Time, []string) (any, error) {
	return func(x db.KVDB, now time.Time, args []string) (any, error) {
		e, ok, err := load(x, now, args[0])
		if err != nil {
			return nil, err
		}
		switch {
		case !ok:
			return int64(-2), nil
		case e.ExpireAt == 0:
			return int64(-1), nil
		}
		remaining := time.Duration(e.ExpireAt-now.UnixMilli()) * time.Millisecond
		// round to the nearest unit like the RESP servers do
		return int64((remaining + unit/2) / unit), nil
	}
}

func cmdExpire(unit time.Duration) func(db.KVDB, time.Time, []string) (any, error) {
	return func(x db.KVDB, now time.Time, args []string) (any, error) {
		n, err := parseInt(args[1])
		if err != nil {
			return nil, err
		}
		e, ok, err := load(x, now, args[0])
		if err != nil || !ok {
			return int64(0), err
		}
		if n <= 0 {
			if _, err := x.Delete(args[0]); err != nil {
				return nil, err
			}
			return int64(1), nil
		}
		e.ExpireAt = expireAt(now, time.Duration(n)*unit)
		return int64(1), x.Set(args[0], e)
	}
}

func cmdPersist(x db.KVDB, now time.Time, args []string) (any, error) {
	e, ok, err := load(x, now, args[0])
	if err != nil || !ok || e.ExpireAt == 0 {
		return int64(0), err
	}
	e.ExpireAt = 0
	return int64(1), x.Set(args[0], e)
}

func cmdKeys(x db.KVDB, now time.Time, args []string) (any, error) {
	keys := make([]any, 0)
	err := x.Keys(func(key string) bool {
		if match.Match(key, args[0]) {
			keys = append(keys, key)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	// drop expired keys after iterating, engines may hold a read lock during Keys
	live := keys[:0]
	for _, k := range keys {
		if _, ok, err := load(x, now, k.(string)); err != nil {
			return nil, err
		} else if ok {
			live = append(live, k)
		}
	}
	return live, nil
}

func cmdDBSize(x db.KVDB, _ time.Time, _ []string) (any, error) {
	n, err := x.Len()
	return int64(n), err
}

func cmdFlush(x db.KVDB, _ time.Time, _ []string) (any, error) {
	return statusOK, x.Clear()
}

// scan implements SCAN cursor [MATCH pattern] [COUNT count].
// The cursor is the offset into the ordered key space, so a full iteration
// returns every key that existed for its whole duration at least once.
func (s *storeImpl) scan(x db.KVDB, now time.Time, args []string) (any, error) {
	cursor, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return nil, store.NewError(store.RetCInvalidOperation, "invalid cursor")
	}

	pattern, count := "*", s.pageSize
	for i := 1; i < len(args); i += 2 {
		if i+1 >= len(args) {
			return nil, syntaxError()
		}
		switch strings.ToUpper(args[i]) {
		case "MATCH":
			pattern = args[i+1]
		case "COUNT":
			n, err := parseInt(args[i+1])
			if err != nil || n < 1 {
				return nil, syntaxError()
			}
			count = int(n)
		default:
			return nil, syntaxError()
		}
	}

	var (
		page  []string
		pos   uint64
		total uint64
	)
	err = x.Keys(func(key string) bool {
		if pos >= cursor && pos < cursor+uint64(count) {
			page = append(page, key)
		}
		pos++
		total++
		return true
	})
	if err != nil {
		return nil, err
	}

	keys := make([]any, 0, len(page))
	for _, key := range page {
		if !match.Match(key, pattern) {
			continue
		}
		if _, ok, err := load(x, now, key); err != nil {
			return nil, err
		} else if ok {
			keys = append(keys, key)
		}
	}

	next := cursor + uint64(count)
	if next >= total {
		next = 0
	}
	return []any{strconv.FormatUint(next, 10), keys}, nil
}

// --------------------------------------------------------------------------
// Strings
// --------------------------------------------------------------------------

func cmdGet(x db.KVDB, now time.Time, args []string) (any, error) {
	e, ok, err := load(x, now, args[0])
	if err != nil || !ok {
		return nil, err
	}
	return string(e.Value), nil
}

func cmdStrlen(x db.KVDB, now time.Time, args []string) (any, error) {
	e, _, err := load(x, now, args[0])
	return int64(len(e.Value)), err
}

func cmdMGet(x db.KVDB, now time.Time, args []string) (any, error) {
	out := make([]any, len(args))
	for i, key := range args {
		v, err := cmdGet(x, now, []string{key})
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// cmdSet implements SET key value [NX|XX] [EX s|PX ms|KEEPTTL] [GET]
func cmdSet(x db.KVDB, now time.Time, args []string) (any, error) {
	key, value := args[0], args[1]

	var (
		nx, xx, keepTTL, get bool
		ttl                  time.Duration
	)
	for i := 2; i < len(args); i++ {
		switch opt := strings.ToUpper(args[i]); opt {
		case "NX":
			nx = true
		case "XX":
			xx = true
		case "KEEPTTL":
			keepTTL = true
		case "GET":
			get = true
		case "EX", "PX":
			if i+1 >= len(args) || ttl != 0 {
				return nil, syntaxError()
			}
			n, err := parseInt(args[i+1])
			if err != nil || n <= 0 {
				return nil, store.NewError(store.RetCInvalidOperation, "invalid expire time in 'set' command")
			}
			unit := time.Second
			if opt == "PX" {
				unit = time.Millisecond
			}
			ttl = time.Duration(n) * unit
			i++
		default:
			return nil, syntaxError()
		}
	}
	if (nx && xx) || (keepTTL && ttl != 0) {
		return nil, syntaxError()
	}

	old, exists, err := load(x, now, key)
	if err != nil {
		return nil, err
	}

	var reply any = statusOK
	if get {
		reply = nil
		if exists {
			reply = string(old.Value)
		}
	}
	if (nx && exists) || (xx && !exists) {
		if get {
			return reply, nil
		}
		return nil, nil
	}

	entry := db.Entry{Value: []byte(value)}
	switch {
	case ttl != 0:
		entry.ExpireAt = expireAt(now, ttl)
	case keepTTL && exists:
		entry.ExpireAt = old.ExpireAt
	}
	if err := x.Set(key, entry); err != nil {
		return nil, err
	}
	return reply, nil
}

func cmdSetNX(x db.KVDB, now time.Time, args []string) (any, error) {
	res, err := cmdSet(x, now, []string{args[0], args[1], "NX"})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return int64(0), nil
	}
	return int64(1), nil
}

func cmdSetEx(unit time.Duration) func(db.KVDB, time.Time, []string) (any, error) {
	return func(x db.KVDB, now time.Time, args []string) (any, error) {
		n, err := parseInt(args[1])
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, store.NewError(store.RetCInvalidOperation, "invalid expire time")
		}
		return statusOK, x.Set(args[0], db.Entry{
			Value:    []byte(args[2]),
			ExpireAt: expireAt(now, time.Duration(n)*unit),
		})
	}
}

func cmdGetSet(x db.KVDB, now time.Time, args []string) (any, error) {
	return cmdSet(x, now, []string{args[0], args[1], "GET"})
}

func cmdGetDel(x db.KVDB, now time.Time, args []string) (any, error) {
	e, ok, err := load(x, now, args[0])
	if err != nil || !ok {
		return nil, err
	}
	if _, err := x.Delete(args[0]); err != nil {
		return nil, err
	}
	return string(e.Value), nil
}

func cmdMSet(x db.KVDB, _ time.Time, args []string) (any, error) {
	if len(args)%2 != 0 {
		return nil, store.NewError(store.RetCInvalidOperation, "wrong number of arguments for 'mset' command")
	}
	for i := 0; i < len(args); i += 2 {
		if err := x.Set(args[i], db.Entry{Value: []byte(args[i+1])}); err != nil {
			return nil, err
		}
	}
	return statusOK, nil
}

func cmdIncrBy(sign int64, withArg bool) func(db.KVDB, time.Time, []string) (any, error) {
	return func(x db.KVDB, now time.Time, args []string) (any, error) {
		delta := sign
		if withArg {
			n, err := parseInt(args[1])
			if err != nil {
				return nil, err
			}
			delta = sign * n
		}

		e, ok, err := load(x, now, args[0])
		if err != nil {
			return nil, err
		}
		var current int64
		if ok {
			if current, err = parseInt(string(e.Value)); err != nil {
				return nil, err
			}
		}

		current += delta
		e.Value = []byte(strconv.FormatInt(current, 10))
		return current, x.Set(args[0], e)
	}
}

func cmdAppend(x db.KVDB, now time.Time, args []string) (any, error) {
	e, _, err := load(x, now, args[0])
	if err != nil {
		return nil, err
	}
	e.Value = append(e.Value, args[1]...)
	return int64(len(e.Value)), x.Set(args[0], e)
}
