package testing

import (
	"fmt"
	"testing"

	"github.com/ValentinKolb/pxKV/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {
	b.Run("Set", func(b *testing.B) {
		benchmarkSet(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("Delete", func(b *testing.B) {
		benchmarkDelete(b, factory())
	})

	b.Run("Keys", func(b *testing.B) {
		benchmarkKeys(b, factory())
	})

	b.Run("Update", func(b *testing.B) {
		benchmarkUpdate(b, factory())
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkSet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	value := []byte("value")
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_ = database.Set(fmt.Sprintf("key-%d", counter%1000), db.Entry{Value: value})
			counter++
		}
	})
}

func benchmarkGet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	for i := 0; i < 1000; i++ {
		_ = database.Set(fmt.Sprintf("key-%d", i), db.Entry{Value: []byte("value")})
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _, _ = database.Get(fmt.Sprintf("key-%d", counter%1000))
			counter++
		}
	})
}

func benchmarkDelete(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	for i := 0; i < b.N; i++ {
		_ = database.Set(fmt.Sprintf("key-%d", i), db.Entry{Value: []byte("value")})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = database.Delete(fmt.Sprintf("key-%d", i))
	}
}

func benchmarkKeys(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	for i := 0; i < 1000; i++ {
		_ = database.Set(fmt.Sprintf("key-%d", i), db.Entry{Value: []byte("value")})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = database.Keys(func(string) bool { return true })
	}
}

func benchmarkUpdate(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = database.Update(func(tx db.KVDB) error {
			if err := tx.Set("a", db.Entry{Value: []byte("1")}); err != nil {
				return err
			}
			return tx.Set("b", db.Entry{Value: []byte("2")})
		})
	}
}
