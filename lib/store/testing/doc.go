// Package testing provides a conformance suite for store.IStore implementations.
//
// Example usage:
//
//	storetesting.RunStoreTests(t, "LocalStore", func() store.IStore {
//		s, _ := lstore.NewLocalStore(factory, nil)
//		return s
//	})
package testing
