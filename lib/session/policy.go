package session

import (
	"github.com/ValentinKolb/pxKV/lib/store"
)

// settle applies the error policy to the outcome of an operation: the caller's
// callback gets the raw outcome first, then the session state is recorded and
// the promise settles. Failures reject the promise if ThrowErrors is set and
// resolve it with nil otherwise.
func (s *Session) settle(p *Promise, cb store.Callback, result any, err error) {
	if cb != nil {
		cb(result, err)
	}

	s.stateMu.Lock()
	s.lastError, s.lastResult = err, result
	s.stateMu.Unlock()

	switch {
	case err == nil:
		p.settle(result, nil)
	case s.throwErrors.Load():
		p.settle(nil, err)
	default:
		p.settle(nil, nil)
	}
}

// ThrowErrors reports whether failed operations reject their promise
func (s *Session) ThrowErrors() bool {
	return s.throwErrors.Load()
}

// SetThrowErrors switches the error policy for the whole session
func (s *Session) SetThrowErrors(v bool) {
	s.throwErrors.Store(v)
}

// LastError returns the error of the most recently settled operation (nil on success).
// With concurrent operations the last writer wins, prefer the promise outcome.
func (s *Session) LastError() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastError
}

// LastResult returns the result of the most recently settled operation
func (s *Session) LastResult() any {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastResult
}
