package session

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// task is one unit of work run by the session loop
type task func()

type taskNode struct {
	fn   task
	next atomic.Pointer[taskNode]
}

// taskQueue is an unbounded multi-producer single-consumer queue of tasks.
// Producers append to a linked list with CAS, the loop goroutine pops from
// the head and runs the tasks one at a time. For a single producer the tasks
// run in push order.
//
// Tasks pushed with start open an operation that stays in flight until end is
// called. After close no operation can be started, but continuation tasks are
// still accepted until the last in-flight operation ended. Only then the loop
// stops.
type taskQueue struct {
	head atomic.Pointer[taskNode] // sentinel, only moved by the consumer
	tail atomic.Pointer[taskNode]
	wake chan struct{}
	done chan struct{}

	inflight atomic.Int64

	// closeMu is held shared by producers so close and stop never race with an append
	closeMu sync.RWMutex
	closed  bool
	stopped bool
}

func newTaskQueue() *taskQueue {
	sentinel := &taskNode{}
	q := &taskQueue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q
}

// start appends the first task of an operation and marks the operation as in
// flight. Returns false if the queue is closed.
func (q *taskQueue) start(fn task) bool {
	if fn == nil {
		return false
	}

	q.closeMu.RLock()
	if q.closed {
		q.closeMu.RUnlock()
		return false
	}
	q.inflight.Add(1)
	q.append(fn)
	q.closeMu.RUnlock()

	q.signal()
	return true
}

// end marks one operation as finished
func (q *taskQueue) end() {
	q.inflight.Add(-1)
	q.signal()
}

// push appends a continuation task. Returns false once the loop stopped.
func (q *taskQueue) push(fn task) bool {
	if fn == nil {
		return false
	}

	q.closeMu.RLock()
	if q.stopped {
		q.closeMu.RUnlock()
		return false
	}
	q.append(fn)
	q.closeMu.RUnlock()

	q.signal()
	return true
}

// append links fn at the tail, the caller holds closeMu shared
func (q *taskQueue) append(fn task) {
	n := &taskNode{fn: fn}
	var backoff uint8
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				q.tail.CompareAndSwap(tail, n)
				return
			}
		} else {
			// another producer appended but did not move the tail yet
			q.tail.CompareAndSwap(tail, next)
		}

		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

func (q *taskQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// pop removes the oldest task (consumer only). Returns nil if the queue is empty.
func (q *taskQueue) pop() task {
	head := q.head.Load()
	next := head.next.Load()
	if next == nil {
		return nil
	}
	q.head.Store(next)
	fn := next.fn
	next.fn = nil
	return fn
}

// run executes tasks until the queue is closed, drained and no operation
// is in flight anymore
func (q *taskQueue) run() {
	defer close(q.done)

	for {
		for fn := q.pop(); fn != nil; fn = q.pop() {
			fn()
		}
		if q.tryStop() {
			return
		}
		<-q.wake
	}
}

func (q *taskQueue) tryStop() bool {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()

	if !q.closed || q.inflight.Load() > 0 || q.head.Load().next.Load() != nil {
		return false
	}
	q.stopped = true
	return true
}

// close stops accepting operations. Queued tasks and the continuations of
// in-flight operations still run.
func (q *taskQueue) close() {
	q.closeMu.Lock()
	q.closed = true
	q.closeMu.Unlock()
	q.signal()
}

func (q *taskQueue) isClosed() bool {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	return q.closed
}
