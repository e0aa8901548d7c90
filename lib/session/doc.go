// Package session puts a promise-style API in front of a callback-style
// store.IStore.
//
// The package focuses on:
//   - Adapting every catalog command into a CommandFunc returning a *Promise
//   - Transaction builders (Multi, Batch) exposing only the finalize aliases
//   - Pattern operations built on the SCAN cursor (GetSearch, DelSearch)
//   - JSON and default-value helpers (SetJSON, GetJSON, GetDefault)
//   - A session wide error policy (ThrowErrors, LastError, LastResult)
//
// Key Components:
//
//   - Command Table: built once in New from store.Catalog. Every command the
//     store binds (and does not mark as internal) is installed under its
//     normalized lower-case and upper-case identifier, e.g. "get"/"GET" or
//     "restore_asking"/"RESTORE_ASKING". A trailing store.Callback argument is
//     called with the outcome right before the promise settles.
//
//   - Session Loop: each session owns one goroutine that runs tasks from an
//     unbounded lock-free queue. Every store call, every reply and every step
//     of a scan runs as its own task, so the composite operations need no
//     locking and their stack depth does not depend on the number of keys.
//
//   - Scanner: GetSearch and DelSearch first call SCAN until the cursor is 0
//     (SCANNING), then handle the collected keys strictly one after the other
//     (COLLECTING). The first error aborts the operation (FAILED) and partial
//     results are dropped.
//
//   - Error Policy: an operation records its outcome in LastError/LastResult
//     and then settles. With ThrowErrors (the default) failures reject the
//     promise, without it they resolve with nil.
//
// Example:
//
//	s := session.New(st, nil)
//	defer s.Close()
//
//	if _, err := s.Do("set", "user:1", "alice").Wait(); err != nil {
//		return err
//	}
//	res, err := s.GetSearch("user:*", nil, nil).Await(ctx)
//	users := res.(*session.Mapping)
//
// Callbacks and iterators run on the session loop. They must not block on
// promises of the same session.
package session
