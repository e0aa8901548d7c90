package session

import (
	"context"
	"sync"
)

// Promise is the asynchronous result of a session operation.
// It settles exactly once, either with a result or with an error.
type Promise struct {
	once   sync.Once
	done   chan struct{}
	result any
	err    error

	// onSettle runs once after the promise settled
	onSettle func()
}

func newPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

func (p *Promise) settle(result any, err error) {
	p.once.Do(func() {
		p.result, p.err = result, err
		close(p.done)
		if p.onSettle != nil {
			p.onSettle()
		}
	})
}

// Done returns a channel that is closed once the promise settled
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// Settled reports whether the promise has a result
func (p *Promise) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Await blocks until the promise settles or ctx is done. A done context only
// stops the waiting, the operation itself keeps running.
//
// Do not call Await from a callback or iterator of the same session: they run
// on the session loop which would then wait for itself.
func (p *Promise) Await(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Wait is Await without a context
func (p *Promise) Wait() (any, error) {
	<-p.done
	return p.result, p.err
}
