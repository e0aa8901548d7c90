package session

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/ValentinKolb/pxKV/lib/store"
)

// Iterator receives the keys of a streaming GetSearch one at a time.
// It must call next to get the following key. Returning false stops the
// search early; a stop wins over a next call made before returning.
// The iterator runs on the session loop and must not wait for promises of
// the same session.
type Iterator func(key string, value any, next func()) bool

type scanState int

const (
	stateScanning scanState = iota
	stateCollecting
	stateDone
	stateFailed
)

func (s scanState) String() string {
	switch s {
	case stateScanning:
		return "SCANNING"
	case stateCollecting:
		return "COLLECTING"
	case stateDone:
		return "DONE"
	case stateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

type scanMode int

const (
	modeMaterialize scanMode = iota // fetch values into a Mapping
	modeStream                      // fetch values and hand them to an Iterator
	modeDelete                      // delete the keys and sum the acknowledgements
)

// scanner drives one GetSearch or DelSearch. All methods run on the session loop.
type scanner struct {
	s       *Session
	op      string
	mode    scanMode
	pattern string
	p       *Promise
	final   store.Callback
	start   time.Time

	state  scanState
	cursor uint64
	keys   []string
	pos    int

	iterator Iterator
	result   *Mapping
	deleted  int64
}

// GetSearch collects all keys matching pattern and fetches their values one by one.
//
// Without iterator the promise resolves with a *Mapping of key to value in
// discovery order. With iterator every (key, value) pair is handed to it and
// the promise resolves with nil. final, if given, receives the same outcome
// as the promise, before it settles. Any failure aborts the search and
// discards partial results.
func (s *Session) GetSearch(pattern string, iterator Iterator, final store.Callback) *Promise {
	sc := s.newScanner("getsearch", pattern, final)
	if iterator == nil {
		sc.mode = modeMaterialize
		sc.result = NewMapping()
	} else {
		sc.mode = modeStream
		sc.iterator = iterator
	}
	return sc.run()
}

// DelSearch deletes all keys matching pattern one by one and resolves with
// the sum of the deletion counts reported by the store.
func (s *Session) DelSearch(pattern string, final store.Callback) *Promise {
	sc := s.newScanner("delsearch", pattern, final)
	sc.mode = modeDelete
	return sc.run()
}

func (s *Session) newScanner(op, pattern string, final store.Callback) *scanner {
	return &scanner{
		s:       s,
		op:      op,
		pattern: pattern,
		p:       newPromise(),
		final:   final,
		start:   time.Now(),
		state:   stateScanning,
	}
}

func (sc *scanner) run() *Promise {
	if sc.s.scan == nil {
		sc.fail("", fmt.Errorf("%w: scan", ErrUnknownCommand))
		return sc.p
	}
	sc.s.submit(sc.p, sc.final, sc.scanStep)
	return sc.p
}

// --------------------------------------------------------------------------
// SCANNING
// --------------------------------------------------------------------------

func (sc *scanner) scanStep() {
	if sc.state != stateScanning {
		return
	}
	sc.s.scan([]any{sc.cursor, "MATCH", sc.pattern}, sc.s.deliver(sc.onPage))
}

func (sc *scanner) onPage(reply any, err error) {
	if err != nil {
		sc.fail("", err)
		return
	}

	next, keys, ok := parseScanReply(reply)
	if !ok {
		sc.fail("", protocolViolation("", ErrNoReply))
		return
	}

	scanPages.Inc()
	scanKeys.Add(len(keys))
	sc.keys = append(sc.keys, keys...)

	if next != 0 {
		sc.cursor = next
		sc.s.schedule(sc.scanStep)
		return
	}

	sc.state = stateCollecting
	sc.s.schedule(sc.collectStep)
}

// parseScanReply accepts exactly a (cursor, keys) pair
func parseScanReply(reply any) (uint64, []string, bool) {
	pair, ok := reply.([]any)
	if !ok || len(pair) != 2 {
		return 0, nil, false
	}

	cursor, ok := parseCursor(pair[0])
	if !ok {
		return 0, nil, false
	}

	switch raw := pair[1].(type) {
	case []string:
		return cursor, raw, true
	case []any:
		keys := make([]string, 0, len(raw))
		for _, k := range raw {
			switch k := k.(type) {
			case string:
				keys = append(keys, k)
			case []byte:
				keys = append(keys, string(k))
			default:
				return 0, nil, false
			}
		}
		return cursor, keys, true
	case nil:
		return cursor, nil, true
	default:
		return 0, nil, false
	}
}

func parseCursor(v any) (uint64, bool) {
	switch c := v.(type) {
	case string:
		n, err := strconv.ParseUint(c, 10, 64)
		return n, err == nil
	case []byte:
		n, err := strconv.ParseUint(string(c), 10, 64)
		return n, err == nil
	case int:
		return uint64(c), c >= 0
	case int64:
		return uint64(c), c >= 0
	case uint64:
		return c, true
	default:
		return 0, false
	}
}

// --------------------------------------------------------------------------
// COLLECTING
// --------------------------------------------------------------------------

// collectStep handles the next key. Every step is its own loop task, so the
// stack depth does not grow with the number of keys.
func (sc *scanner) collectStep() {
	if sc.state != stateCollecting {
		return
	}
	if sc.pos >= len(sc.keys) {
		sc.finish()
		return
	}

	key := sc.keys[sc.pos]
	sc.pos++

	if sc.mode == modeDelete {
		sc.s.del([]any{key}, sc.s.deliver(func(res any, err error) {
			sc.onDeleted(key, res, err)
		}))
		return
	}

	sc.s.get([]any{key}, sc.s.deliver(func(res any, err error) {
		sc.onValue(key, res, err)
	}))
}

func (sc *scanner) onValue(key string, value any, err error) {
	if err != nil {
		sc.fail(key, err)
		return
	}
	visitedKeys.Inc()

	if sc.mode == modeMaterialize {
		sc.result.Set(key, value)
		sc.s.schedule(sc.collectStep)
		return
	}

	var once sync.Once
	next := func() {
		once.Do(func() {
			sc.s.schedule(sc.collectStep)
		})
	}
	if !sc.iterator(key, value, next) {
		sc.finish()
	}
}

func (sc *scanner) onDeleted(key string, ack any, err error) {
	if err != nil {
		sc.fail(key, err)
		return
	}

	n, ok := toInt64(ack)
	if !ok {
		sc.fail(key, protocolViolation(key, fmt.Errorf("del replied %T, not an integer", ack)))
		return
	}
	visitedKeys.Inc()
	sc.deleted += n
	sc.s.schedule(sc.collectStep)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

// --------------------------------------------------------------------------
// DONE / FAILED
// --------------------------------------------------------------------------

func (sc *scanner) finish() {
	if sc.state == stateDone || sc.state == stateFailed {
		return
	}
	sc.state = stateDone

	var res any
	switch sc.mode {
	case modeMaterialize:
		res = sc.result
	case modeDelete:
		res = sc.deleted
	}
	sc.keys = nil

	observeOperation(sc.op, sc.start, nil)
	sc.s.settle(sc.p, sc.final, res, nil)
}

func (sc *scanner) fail(key string, err error) {
	if sc.state == stateDone || sc.state == stateFailed {
		return
	}
	sc.state = stateFailed
	sc.keys, sc.result = nil, nil

	Logger.Debugf("%s %q failed at key %q: %v", sc.op, sc.pattern, key, err)
	observeOperation(sc.op, sc.start, err)
	sc.s.settle(sc.p, sc.final, nil, err)
}
