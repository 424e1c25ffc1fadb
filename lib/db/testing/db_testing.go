package testing

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dLayer/lib/db"
	"github.com/cockroachdb/errors"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Batch", func(t *testing.T) {
			testBatch(t, factory())
		})

		t.Run("IterateForward", func(t *testing.T) {
			testIterateForward(t, factory())
		})

		t.Run("IterateReverse", func(t *testing.T) {
			testIterateReverse(t, factory())
		})

		t.Run("IterateBounds", func(t *testing.T) {
			testIterateBounds(t, factory())
		})

		t.Run("Seek", func(t *testing.T) {
			testSeek(t, factory())
		})

		t.Run("IteratorSnapshot", func(t *testing.T) {
			testIteratorSnapshot(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("Closed", func(t *testing.T) {
			testClosed(t, factory())
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

// mustSet writes a key and fails the test on error
func mustSet(t testing.TB, database db.KVDB, key, value string) {
	t.Helper()
	if err := database.Set([]byte(key), []byte(value)); err != nil {
		t.Fatalf("Set(%s) failed: %v", key, err)
	}
}

// collect drains an iterator in the given direction and returns "key=value" pairs
func collect(t testing.TB, it db.Iterator, reverse bool) []string {
	t.Helper()
	var out []string
	var ok bool
	if reverse {
		ok = it.Last()
	} else {
		ok = it.First()
	}
	for ok {
		out = append(out, fmt.Sprintf("%s=%s", it.Key(), it.Value()))
		if reverse {
			ok = it.Prev()
		} else {
			ok = it.Next()
		}
	}
	if err := it.Error(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	testKey := []byte("test-key")
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	if err := database.Set(testKey, testValue1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, exists, err := database.Get(testKey)
	if err != nil || !exists {
		t.Errorf("Expected key %s to exist after Set (err=%v)", testKey, err)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	if err := database.Set(testKey, testValue2); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, _, _ = database.Get(testKey)
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	_, exists, err = database.Get([]byte("nonexistent-key"))
	if err != nil || exists {
		t.Errorf("Expected nonexistent key to return exists=false (err=%v)", err)
	}

	// the returned value must be a copy
	retrievedValue, _, _ := database.Get(testKey)
	retrievedValue[0] = 'X'

	originalValue, _, _ := database.Get(testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	// the stored value must not alias the caller's buffer
	buf := []byte("buffer-value")
	if err := database.Set([]byte("aliased"), buf); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	buf[0] = 'X'
	stored, _, _ := database.Get([]byte("aliased"))
	if string(stored) != "buffer-value" {
		t.Errorf("Set should copy the value, got %s", stored)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	mustSet(t, database, "key", "value")

	if err := database.Delete([]byte("key")); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, exists, _ := database.Get([]byte("key")); exists {
		t.Errorf("Key should not exist after Delete")
	}

	// deleting an absent key is not an error
	if err := database.Delete([]byte("key")); err != nil {
		t.Errorf("Deleting a missing key should not fail: %v", err)
	}
	if err := database.Delete([]byte("never-written")); err != nil {
		t.Errorf("Deleting a never written key should not fail: %v", err)
	}

	// the key can be written again
	mustSet(t, database, "key", "value2")
	if value, exists, _ := database.Get([]byte("key")); !exists || string(value) != "value2" {
		t.Errorf("Expected value2 after re-set, got %s (exists=%t)", value, exists)
	}
}

func testBatch(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureBatch|db.FeatureGet)

	mustSet(t, database, "existing", "old")

	b := database.NewBatch()
	defer b.Close()

	if err := b.Set([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("batch Set failed: %v", err)
	}
	if err := b.Set([]byte("b"), []byte("2")); err != nil {
		t.Fatalf("batch Set failed: %v", err)
	}
	if err := b.Delete([]byte("existing")); err != nil {
		t.Fatalf("batch Delete failed: %v", err)
	}

	if b.Count() != 3 {
		t.Errorf("Expected 3 batched operations, got %d", b.Count())
	}

	// nothing is visible before commit
	if _, exists, _ := database.Get([]byte("a")); exists {
		t.Errorf("Batched write should not be visible before Commit")
	}
	if _, exists, _ := database.Get([]byte("existing")); !exists {
		t.Errorf("Batched delete should not be visible before Commit")
	}

	if err := b.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	for key, want := range map[string]string{"a": "1", "b": "2"} {
		if value, exists, _ := database.Get([]byte(key)); !exists || string(value) != want {
			t.Errorf("Expected %s=%s after Commit, got %s (exists=%t)", key, want, value, exists)
		}
	}
	if _, exists, _ := database.Get([]byte("existing")); exists {
		t.Errorf("Batched delete should be applied after Commit")
	}

	// later operations on the same key win
	b2 := database.NewBatch()
	defer b2.Close()
	_ = b2.Set([]byte("k"), []byte("first"))
	_ = b2.Delete([]byte("k"))
	_ = b2.Set([]byte("k"), []byte("last"))
	if err := b2.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if value, _, _ := database.Get([]byte("k")); string(value) != "last" {
		t.Errorf("Expected the last batched operation to win, got %s", value)
	}

	// an empty batch commits fine
	b3 := database.NewBatch()
	defer b3.Close()
	if err := b3.Commit(); err != nil {
		t.Errorf("Empty batch commit should succeed: %v", err)
	}
}

func testIterateForward(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureIterate|db.FeatureSet)

	for _, k := range []string{"c", "a", "e", "b", "d"} {
		mustSet(t, database, k, "v"+k)
	}

	it, err := database.NewIterator(nil)
	if err != nil {
		t.Fatalf("NewIterator failed: %v", err)
	}
	defer it.Close()

	got := collect(t, it, false)
	want := []string{"a=va", "b=vb", "c=vc", "d=vd", "e=ve"}
	if !equalStrings(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if it.Valid() {
		t.Errorf("Iterator should be invalid after the last entry")
	}
}

func testIterateReverse(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureReverse|db.FeatureSet)

	for _, k := range []string{"c", "a", "e", "b", "d"} {
		mustSet(t, database, k, "v"+k)
	}

	it, err := database.NewIterator(nil)
	if err != nil {
		t.Fatalf("NewIterator failed: %v", err)
	}
	defer it.Close()

	got := collect(t, it, true)
	want := []string{"e=ve", "d=vd", "c=vc", "b=vb", "a=va"}
	if !equalStrings(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func testIterateBounds(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureIterate|db.FeatureReverse|db.FeatureSet)

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		mustSet(t, database, k, "v"+k)
	}

	it, err := database.NewIterator(&db.IterOptions{LowerBound: []byte("b"), UpperBound: []byte("d")})
	if err != nil {
		t.Fatalf("NewIterator failed: %v", err)
	}
	defer it.Close()

	if got, want := collect(t, it, false), []string{"b=vb", "c=vc"}; !equalStrings(got, want) {
		t.Errorf("Forward: expected %v, got %v", want, got)
	}
	if got, want := collect(t, it, true), []string{"c=vc", "b=vb"}; !equalStrings(got, want) {
		t.Errorf("Reverse: expected %v, got %v", want, got)
	}

	// seeks are clamped to the bounds
	if !it.SeekGE([]byte("a")) || string(it.Key()) != "b" {
		t.Errorf("SeekGE below the lower bound should land on b, got %s", it.Key())
	}
	if it.SeekGE([]byte("d")) {
		t.Errorf("SeekGE at the upper bound should be invalid, got %s", it.Key())
	}
	if !it.SeekLE([]byte("z")) || string(it.Key()) != "c" {
		t.Errorf("SeekLE above the upper bound should land on c, got %s", it.Key())
	}
}

func testSeek(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureIterate|db.FeatureReverse|db.FeatureSet)

	for _, k := range []string{"key10", "key20", "key30"} {
		mustSet(t, database, k, k)
	}

	it, err := database.NewIterator(nil)
	if err != nil {
		t.Fatalf("NewIterator failed: %v", err)
	}
	defer it.Close()

	cases := []struct {
		seek    string
		le      bool
		want    string
		isValid bool
	}{
		{"key20", false, "key20", true},
		{"key15", false, "key20", true},
		{"key31", false, "", false},
		{"key20", true, "key20", true},
		{"key25", true, "key20", true},
		{"key0", true, "", false},
	}

	for _, c := range cases {
		var ok bool
		if c.le {
			ok = it.SeekLE([]byte(c.seek))
		} else {
			ok = it.SeekGE([]byte(c.seek))
		}
		if ok != c.isValid {
			t.Errorf("seek(%s, le=%t): expected valid=%t, got %t", c.seek, c.le, c.isValid, ok)
			continue
		}
		if ok && string(it.Key()) != c.want {
			t.Errorf("seek(%s, le=%t): expected %s, got %s", c.seek, c.le, c.want, it.Key())
		}
	}

	// stepping after a seek continues in order
	it.SeekGE([]byte("key15"))
	if !it.Next() || string(it.Key()) != "key30" {
		t.Errorf("Next after SeekGE should land on key30, got %s", it.Key())
	}
	if !it.Prev() || string(it.Key()) != "key20" {
		t.Errorf("Prev should land on key20, got %s", it.Key())
	}
}

func testIteratorSnapshot(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureIterate|db.FeatureSet|db.FeatureDelete)

	mustSet(t, database, "a", "1")
	mustSet(t, database, "b", "2")

	it, err := database.NewIterator(nil)
	if err != nil {
		t.Fatalf("NewIterator failed: %v", err)
	}
	defer it.Close()

	// writes after the iterator was created are not observed
	mustSet(t, database, "c", "3")
	if err := database.Delete([]byte("a")); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if got, want := collect(t, it, false), []string{"a=1", "b=2"}; !equalStrings(got, want) {
		t.Errorf("Expected snapshot %v, got %v", want, got)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	defer database.Close()

	requireFeature(t, database, db.FeatureSave|db.FeatureLoad)

	snap, ok := database.(db.Snapshotter)
	if !ok {
		t.Fatalf("database advertises Save/Load but does not implement db.Snapshotter")
	}

	for i := 0; i < 100; i++ {
		mustSet(t, database, fmt.Sprintf("key-%03d", i), fmt.Sprintf("value-%d", i))
	}

	var buf bytes.Buffer
	if err := snap.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored := factory()
	defer restored.Close()

	mustSet(t, restored, "stale", "should be replaced")

	if err := restored.(db.Snapshotter).Load(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key-%03d", i)
		value, exists, err := restored.Get([]byte(key))
		if err != nil || !exists || string(value) != fmt.Sprintf("value-%d", i) {
			t.Errorf("Expected %s to be restored, got %s (exists=%t, err=%v)", key, value, exists, err)
		}
	}
	if _, exists, _ := restored.Get([]byte("stale")); exists {
		t.Errorf("Load should replace the previous content")
	}

	// a corrupt snapshot is rejected and leaves the data untouched
	if err := restored.(db.Snapshotter).Load(bytes.NewReader([]byte("garbage"))); err == nil {
		t.Errorf("Load should reject an invalid snapshot")
	}
	if _, exists, _ := restored.Get([]byte("key-000")); !exists {
		t.Errorf("A failed Load must not modify the database")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureIterate)

	// empty value is a value, not an absence
	mustSet(t, database, "empty", "")
	if value, exists, _ := database.Get([]byte("empty")); !exists || len(value) != 0 {
		t.Errorf("Empty value should be found with length 0, got %q (exists=%t)", value, exists)
	}

	// binary keys are ordered byte-lexicographically
	keys := [][]byte{{0xff}, {0x00, 0x01}, {0x00}, {0x7f, 0xff}}
	for _, k := range keys {
		if err := database.Set(k, []byte{0x01}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	it, err := database.NewIterator(&db.IterOptions{UpperBound: []byte("a")})
	if err != nil {
		t.Fatalf("NewIterator failed: %v", err)
	}
	defer it.Close()

	var got [][]byte
	for ok := it.First(); ok; ok = it.Next() {
		got = append(got, append([]byte(nil), it.Key()...))
	}
	want := [][]byte{{0x00}, {0x00, 0x01}, {0x7f, 0xff}}
	if len(got) != len(want) {
		t.Fatalf("Expected %d binary keys below 'a', got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Errorf("Position %d: expected %x, got %x", i, want[i], got[i])
		}
	}

	// large value
	large := bytes.Repeat([]byte{'x'}, 1<<20)
	if err := database.Set([]byte("large"), large); err != nil {
		t.Fatalf("Set large failed: %v", err)
	}
	if value, _, _ := database.Get([]byte("large")); !bytes.Equal(value, large) {
		t.Errorf("Large value was not stored correctly")
	}
}

func testClosed(t *testing.T, database db.KVDB) {
	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := database.Set([]byte("k"), []byte("v")); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Set on a closed database should return ErrClosed, got %v", err)
	}
	if _, _, err := database.Get([]byte("k")); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Get on a closed database should return ErrClosed, got %v", err)
	}
	if _, err := database.NewIterator(nil); !errors.Is(err, db.ErrClosed) {
		t.Errorf("NewIterator on a closed database should return ErrClosed, got %v", err)
	}
}

func testRealisticUsage(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete|db.FeatureBatch)

	const (
		numWriters = 4
		numReaders = 4
		numOps     = 200
	)

	var (
		wg       sync.WaitGroup
		failures atomic.Int64
	)

	// writers own disjoint key spaces and alternate single writes and batches
	for w := 0; w < numWriters; w++ {
		wg.Add(1)
		go func(writer int) {
			defer wg.Done()
			for i := 0; i < numOps; i++ {
				key := []byte(fmt.Sprintf("w%d-%04d", writer, i))
				if i%2 == 0 {
					if err := database.Set(key, key); err != nil {
						failures.Add(1)
					}
					continue
				}
				b := database.NewBatch()
				_ = b.Set(key, key)
				_ = b.Delete([]byte(fmt.Sprintf("w%d-%04d", writer, i-1)))
				if err := b.Commit(); err != nil {
					failures.Add(1)
				}
				_ = b.Close()
			}
		}(w)
	}

	// readers only check that reads never fail and never return foreign values
	for r := 0; r < numReaders; r++ {
		wg.Add(1)
		go func(reader int) {
			defer wg.Done()
			for i := 0; i < numOps; i++ {
				key := []byte(fmt.Sprintf("w%d-%04d", reader%numWriters, i))
				value, exists, err := database.Get(key)
				if err != nil {
					failures.Add(1)
				}
				if exists && !bytes.Equal(value, key) {
					failures.Add(1)
				}
			}
		}(r)
	}

	wg.Wait()

	if n := failures.Load(); n > 0 {
		t.Fatalf("%d operations failed during concurrent usage", n)
	}

	// every odd key survives, every even key was deleted by the following batch
	for w := 0; w < numWriters; w++ {
		for i := 0; i < numOps; i++ {
			key := []byte(fmt.Sprintf("w%d-%04d", w, i))
			_, exists, _ := database.Get(key)
			if wantExists := i%2 == 1; exists != wantExists {
				t.Errorf("key %s: expected exists=%t, got %t", key, wantExists, exists)
			}
		}
	}
}
