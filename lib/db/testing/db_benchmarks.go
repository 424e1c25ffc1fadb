package testing

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dLayer/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Set", func(b *testing.B) {
		benchmarkSet(b, factory())
	})

	b.Run("SetLargeValue", func(b *testing.B) {
		benchmarkSetLargeValue(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("Delete", func(b *testing.B) {
		benchmarkDelete(b, factory())
	})

	b.Run("Batch", func(b *testing.B) {
		benchmarkBatch(b, factory())
	})

	b.Run("Scan", func(b *testing.B) {
		benchmarkScan(b, factory())
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory())
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// prefill writes numKeys sequential keys
func prefill(b *testing.B, database db.KVDB, numKeys int) {
	for i := 0; i < numKeys; i++ {
		key := []byte(fmt.Sprintf("test-key-%08d", i))
		if err := database.Set(key, []byte(fmt.Sprintf("test-value-%d", i))); err != nil {
			b.Fatalf("prefill failed: %v", err)
		}
	}
}

// Benchmark for Set operation
func benchmarkSet(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			key := []byte(fmt.Sprintf("test-key-%d", i))
			_ = database.Set(key, []byte("test-value"))
		}
	})
}

// Benchmark for Set operation with large values
func benchmarkSetLargeValue(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	largeValue := make([]byte, 64*1024) // 64KB

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := []byte(fmt.Sprintf("test-key-%d", i%1000))
		_ = database.Set(key, largeValue)
	}
}

// Parallel benchmarking for Get operation
func benchmarkGet(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureGet)

	numKeys := 10000
	prefill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := []byte(fmt.Sprintf("test-key-%08d", counter%numKeys))
			_, _, _ = database.Get(key)
			counter++
		}
	})
}

// Benchmark for Delete operation
func benchmarkDelete(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureDelete)

	numKeys := 100000
	if b.N < numKeys {
		numKeys = b.N
	}
	prefill(b, database, numKeys)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := []byte(fmt.Sprintf("test-key-%08d", i%numKeys))
		_ = database.Delete(key)
	}
}

// Benchmark for batches of 100 writes
func benchmarkBatch(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureBatch)

	const batchSize = 100

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		batch := database.NewBatch()
		for j := 0; j < batchSize; j++ {
			key := []byte(fmt.Sprintf("batch-%d-%d", i, j))
			_ = batch.Set(key, key)
		}
		_ = batch.Commit()
		_ = batch.Close()
	}
}

// Benchmark for scanning 100 entries from a random start key
func benchmarkScan(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureIterate)

	numKeys := 10000
	prefill(b, database, numKeys)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		it, err := database.NewIterator(nil)
		if err != nil {
			b.Fatalf("NewIterator failed: %v", err)
		}
		start := []byte(fmt.Sprintf("test-key-%08d", rand.Intn(numKeys)))
		n := 0
		for ok := it.SeekGE(start); ok && n < 100; ok = it.Next() {
			n++
		}
		_ = it.Close()
	}
}

// Benchmark for a mix of reads (80%) and writes (20%)
func benchmarkMixedUsage(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureGet)

	numKeys := 10000
	prefill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			key := []byte(fmt.Sprintf("test-key-%08d", r.Intn(numKeys)))
			if r.Intn(100) < 80 {
				_, _, _ = database.Get(key)
			} else {
				_ = database.Set(key, []byte("updated"))
			}
		}
	})
}
