package pebble

import (
	"testing"

	"github.com/ValentinKolb/dLayer/lib/db"
	dbtesting "github.com/ValentinKolb/dLayer/lib/db/testing"
)

func newInMemory(t testing.TB) db.KVDB {
	database, err := Open(&DBOptions{InMemory: true})
	if err != nil {
		t.Fatalf("failed to open in-memory pebble: %v", err)
	}
	return database
}

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "PebbleDB", func() db.KVDB {
		return newInMemory(t)
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "PebbleDB", func() db.KVDB {
		return newInMemory(b)
	})
}

// TestDurability reopens a database on disk and expects the data to survive
func TestDurability(t *testing.T) {
	dir := t.TempDir()

	database, err := Open(DefaultOptions(dir))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	b := database.NewBatch()
	_ = b.Set([]byte("foo1"), []byte("hello world"))
	_ = b.Set([]byte("foo2"), []byte("hello again"))
	if err := b.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	_ = b.Close()

	if err := database.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	database, err = Open(DefaultOptions(dir))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer database.Close()

	for key, want := range map[string]string{"foo1": "hello world", "foo2": "hello again"} {
		value, ok, err := database.Get([]byte(key))
		if err != nil || !ok || string(value) != want {
			t.Errorf("Expected %s=%s after reopen, got %q (found=%t, err=%v)", key, want, value, ok, err)
		}
	}
}

// TestOpenRequiresDir verifies the option validation
func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open(&DBOptions{}); err == nil {
		t.Error("Open without a directory should fail")
	}
	if _, err := Open(nil); err == nil {
		t.Error("Open without options should fail")
	}
}

// TestGetInfoAfterClose expects zero metrics instead of a panic on a closed database
func TestGetInfoAfterClose(t *testing.T) {
	database := newInMemory(t)
	if err := database.Set([]byte("foo"), []byte("bar")); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	info := database.GetInfo()
	if info.DbType != db.ImplPebble {
		t.Errorf("Expected type %s, got %s", db.ImplPebble, info.DbType)
	}
	if info.SizeBytes != 0 {
		t.Errorf("Expected zero size after close, got %d", info.SizeBytes)
	}
	meta, ok := info.Metadata.(*metadata)
	if !ok || !meta.Closed || meta.WALBytesWritten != 0 {
		t.Errorf("Expected closed metadata with zero metrics, got %+v", info.Metadata)
	}
}
