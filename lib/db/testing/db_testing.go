package testing

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/pxKV/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("ExpireAt", func(t *testing.T) {
			testExpireAt(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("KeysOrder", func(t *testing.T) {
			testKeysOrder(t, factory())
		})

		t.Run("KeysWriteDuringIteration", func(t *testing.T) {
			testKeysWriteDuringIteration(t, factory())
		})

		t.Run("LenClear", func(t *testing.T) {
			testLenClear(t, factory())
		})

		t.Run("Update", func(t *testing.T) {
			testUpdate(t, factory())
		})

		t.Run("UpdateIsolation", func(t *testing.T) {
			testUpdateIsolation(t, factory())
		})

		t.Run("UpdateRollback", func(t *testing.T) {
			testUpdateRollback(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

func mustGet(t testing.TB, database db.KVDB, key string) (db.Entry, bool) {
	t.Helper()
	entry, ok, err := database.Get(key)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	return entry, ok
}

func mustSet(t testing.TB, database db.KVDB, key string, value []byte) {
	t.Helper()
	if err := database.Set(key, db.Entry{Value: value}); err != nil {
		t.Fatalf("Set(%q) failed: %v", key, err)
	}
}

func collectKeys(t testing.TB, database db.KVDB) []string {
	t.Helper()
	var keys []string
	if err := database.Keys(func(k string) bool {
		keys = append(keys, k)
		return true
	}); err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	return keys
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	mustSet(t, database, testKey, testValue1)

	result, exists := mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result.Value, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result.Value)
	}

	mustSet(t, database, testKey, testValue2)

	result, exists = mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result.Value, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result.Value)
	}

	if _, exists = mustGet(t, database, "nonexistent-key"); exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	// the engine must neither keep nor hand out references
	input := []byte("mutable")
	mustSet(t, database, "copy-key", input)
	input[0] = 'X'

	retrieved, _ := mustGet(t, database, "copy-key")
	if !bytes.Equal(retrieved.Value, []byte("mutable")) {
		t.Errorf("Set should copy the value, got %s", retrieved.Value)
	}
	retrieved.Value[0] = 'Y'

	again, _ := mustGet(t, database, "copy-key")
	if !bytes.Equal(again.Value, []byte("mutable")) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}
}

func testExpireAt(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureExpire)

	if err := database.Set("expiring", db.Entry{Value: []byte("v"), ExpireAt: 1234567}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	entry, ok := mustGet(t, database, "expiring")
	if !ok {
		t.Fatalf("Expected key to exist")
	}
	if entry.ExpireAt != 1234567 {
		t.Errorf("Expected ExpireAt 1234567, got %d", entry.ExpireAt)
	}

	mustSet(t, database, "expiring", []byte("v2"))
	entry, _ = mustGet(t, database, "expiring")
	if entry.ExpireAt != 0 {
		t.Errorf("Set without ExpireAt should clear the expiration, got %d", entry.ExpireAt)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	mustSet(t, database, "delete-key", []byte("v"))

	deleted, err := database.Delete("delete-key")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !deleted {
		t.Errorf("Expected Delete to report an existing key")
	}

	if _, exists := mustGet(t, database, "delete-key"); exists {
		t.Errorf("Expected key to be gone after Delete")
	}

	deleted, err = database.Delete("delete-key")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if deleted {
		t.Errorf("Deleting a missing key should report false")
	}
}

func testKeysOrder(t *testing.T, database db.KVDB) {
	defer database.Close()

	for _, k := range []string{"b", "a2", "c", "a1", "a10"} {
		mustSet(t, database, k, []byte(k))
	}

	want := []string{"a1", "a10", "a2", "b", "c"}
	got := collectKeys(t, database)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Expected keys %v, got %v", want, got)
	}

	// early stop
	var seen []string
	_ = database.Keys(func(k string) bool {
		seen = append(seen, k)
		return len(seen) < 2
	})
	if len(seen) != 2 {
		t.Errorf("Expected iteration to stop after 2 keys, saw %v", seen)
	}
}

func testKeysWriteDuringIteration(t *testing.T, database db.KVDB) {
	defer database.Close()

	for i := 0; i < 20; i++ {
		mustSet(t, database, fmt.Sprintf("k-%02d", i), []byte("v"))
	}

	// deleting while iterating must neither deadlock nor fail
	err := database.Keys(func(k string) bool {
		if _, err := database.Delete(k); err != nil {
			t.Errorf("Delete during Keys failed: %v", err)
			return false
		}
		return true
	})
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}

	if n, _ := database.Len(); n != 0 {
		t.Errorf("Expected empty database, got %d keys", n)
	}
}

func testLenClear(t *testing.T, database db.KVDB) {
	defer database.Close()

	for i := 0; i < 50; i++ {
		mustSet(t, database, fmt.Sprintf("len-%d", i), []byte("v"))
	}

	n, err := database.Len()
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 50 {
		t.Errorf("Expected 50 keys, got %d", n)
	}
	if info := database.GetInfo(); info.Keys != 50 {
		t.Errorf("Expected GetInfo to report 50 keys, got %d", info.Keys)
	}

	if err := database.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if n, _ = database.Len(); n != 0 {
		t.Errorf("Expected 0 keys after Clear, got %d", n)
	}

	// database must stay usable after Clear
	mustSet(t, database, "after-clear", []byte("v"))
	if _, ok := mustGet(t, database, "after-clear"); !ok {
		t.Errorf("Expected key written after Clear to exist")
	}
}

func testUpdate(t *testing.T, database db.KVDB) {
	defer database.Close()

	mustSet(t, database, "counter", []byte("1"))

	err := database.Update(func(tx db.KVDB) error {
		entry, ok, err := tx.Get("counter")
		if err != nil || !ok {
			return fmt.Errorf("counter missing inside Update: %v", err)
		}
		if err := tx.Set("counter", db.Entry{Value: append(entry.Value, '1')}); err != nil {
			return err
		}
		if _, err := tx.Delete("missing"); err != nil {
			return err
		}
		// nested Update runs inline
		return tx.Update(func(inner db.KVDB) error {
			return inner.Set("nested", db.Entry{Value: []byte("yes")})
		})
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	entry, _ := mustGet(t, database, "counter")
	if string(entry.Value) != "11" {
		t.Errorf("Expected counter 11, got %s", entry.Value)
	}
	if _, ok := mustGet(t, database, "nested"); !ok {
		t.Errorf("Expected nested write to be visible")
	}

	keys := collectKeys(t, database)
	if len(keys) != 2 {
		t.Errorf("Expected 2 keys, got %v", keys)
	}
}

func testUpdateIsolation(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureAtomic)

	mustSet(t, database, "n", []byte{0})

	// read-modify-write inside Update must not lose increments
	const workers, rounds = 8, 25
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				err := database.Update(func(tx db.KVDB) error {
					entry, _, err := tx.Get("n")
					if err != nil {
						return err
					}
					return tx.Set("n", db.Entry{Value: []byte{entry.Value[0] + 1}})
				})
				if err != nil {
					t.Errorf("Update failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	entry, _ := mustGet(t, database, "n")
	if int(entry.Value[0]) != workers*rounds {
		t.Errorf("Expected %d increments, got %d", workers*rounds, entry.Value[0])
	}
}

func testUpdateRollback(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureRollback)

	boom := errors.New("boom")
	err := database.Update(func(tx db.KVDB) error {
		if err := tx.Set("rolled-back", db.Entry{Value: []byte("v")}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected Update to return the callback error, got %v", err)
	}

	if _, ok := mustGet(t, database, "rolled-back"); ok {
		t.Errorf("Write of a failed Update should have been rolled back")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	// empty value is a present value
	mustSet(t, database, "empty-value", []byte{})
	entry, ok := mustGet(t, database, "empty-value")
	if !ok {
		t.Errorf("Expected key with empty value to exist")
	}
	if len(entry.Value) != 0 {
		t.Errorf("Expected empty value, got %q", entry.Value)
	}

	// nil value behaves like an empty one
	mustSet(t, database, "nil-value", nil)
	if _, ok := mustGet(t, database, "nil-value"); !ok {
		t.Errorf("Expected key with nil value to exist")
	}

	// large value
	large := bytes.Repeat([]byte("x"), 1<<20)
	mustSet(t, database, "large", large)
	entry, _ = mustGet(t, database, "large")
	if !bytes.Equal(entry.Value, large) {
		t.Errorf("Large value was not stored correctly")
	}

	// keys with separators and unicode
	for _, k := range []string{"a:b:c", "with space", "ключ", "*?[]"} {
		mustSet(t, database, k, []byte(k))
		entry, ok := mustGet(t, database, k)
		if !ok || string(entry.Value) != k {
			t.Errorf("Unexpected round trip for key %q: %q (found=%v)", k, entry.Value, ok)
		}
	}
}

func testRealisticUsage(t *testing.T, database db.KVDB) {
	defer database.Close()

	numOperations := 2_000
	numWorkers := 8
	opsPerWorker := numOperations / numWorkers

	var errorCount int32
	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func(workerId int) {
			defer wg.Done()

			for i := workerId * opsPerWorker; i < (workerId+1)*opsPerWorker; i++ {
				var key string
				if i%5 == 0 {
					key = fmt.Sprintf("hot-key-%d", i%50)
				} else {
					key = fmt.Sprintf("key-%d", i)
				}

				var err error
				switch i % 10 {
				case 7, 8:
					_, _, err = database.Get(key)
				case 9:
					_, err = database.Delete(key)
				default:
					err = database.Set(key, db.Entry{Value: []byte(key)})
				}
				if err != nil {
					atomic.AddInt32(&errorCount, 1)
				}
			}
		}(w)
	}

	wg.Wait()

	if atomic.LoadInt32(&errorCount) > 0 {
		t.Fatalf("Test had %d errors during parallel operations", errorCount)
	}

	// every remaining key must hold its own name
	for _, k := range collectKeys(t, database) {
		entry, ok := mustGet(t, database, k)
		if !ok {
			t.Errorf("Key %s listed but not found", k)
			continue
		}
		if string(entry.Value) != k {
			t.Errorf("Value mismatch for key %s: %s", k, entry.Value)
		}
	}
}
