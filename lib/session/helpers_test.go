package session

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dLayer/lib/db"
	"github.com/ValentinKolb/dLayer/lib/db/engines/maple"
	pebbledb "github.com/ValentinKolb/dLayer/lib/db/engines/pebble"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Backends
// --------------------------------------------------------------------------

type backend struct {
	name string
	open func(t *testing.T) db.KVDB
}

var backends = []backend{
	{
		name: "maple",
		open: func(t *testing.T) db.KVDB {
			return maple.NewMapleDB(nil)
		},
	},
	{
		name: "pebble",
		open: func(t *testing.T) db.KVDB {
			database, err := pebbledb.Open(&pebbledb.DBOptions{InMemory: true})
			require.NoError(t, err)
			return database
		},
	},
}

// forEachBackend runs fn once per engine with a fresh database
func forEachBackend(t *testing.T, fn func(t *testing.T, database db.KVDB)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			database := b.open(t)
			t.Cleanup(func() {
				_ = database.Close()
			})
			fn(t, database)
		})
	}
}

// --------------------------------------------------------------------------
// Fault injection
// --------------------------------------------------------------------------

var errInjected = errors.New("injected batch failure")

// faultyDB fails batch commits while failBatches is set
type faultyDB struct {
	db.KVDB
	failBatches atomic.Bool
}

func (f *faultyDB) NewBatch() db.Batch {
	return &faultyBatch{Batch: f.KVDB.NewBatch(), db: f}
}

type faultyBatch struct {
	db.Batch
	db *faultyDB
}

func (b *faultyBatch) Commit() error {
	if b.db.failBatches.Load() {
		return errInjected
	}
	return b.Batch.Commit()
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func read(t *testing.T, layer Layer, key string) (string, bool) {
	t.Helper()
	value, found, err := layer.Read(Bytes(key))
	require.NoError(t, err)
	return string(value), found
}

func requireValue(t *testing.T, layer Layer, key, want string) {
	t.Helper()
	got, found := read(t, layer, key)
	require.True(t, found, "key %q should be present", key)
	require.Equal(t, want, got, "key %q", key)
}

func requireAbsent(t *testing.T, layer Layer, key string) {
	t.Helper()
	got, found := read(t, layer, key)
	require.False(t, found, "key %q should be absent, got %q", key, got)
}

func dbValue(t *testing.T, database db.KVDB, key string) (string, bool) {
	t.Helper()
	value, found, err := database.Get([]byte(key))
	require.NoError(t, err)
	return string(value), found
}

// scan returns "key=value" pairs in iteration order
func scan(t *testing.T, layer Layer, opts IterOptions) []string {
	t.Helper()
	it, err := layer.NewIterator(opts)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, it.Close())
	}()

	var out []string
	for ok := it.First(); ok; ok = it.Next() {
		out = append(out, fmt.Sprintf("%s=%s", it.Key(), it.Value()))
	}
	require.NoError(t, it.Error())
	return out
}

// keySpace returns n keys in ascending order
func keySpace(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%03d", i)
	}
	return keys
}

// view resolves every key through layer with single-key reads
func view(t *testing.T, layer Layer, keys []string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	for _, key := range keys {
		if value, found := read(t, layer, key); found {
			out[key] = value
		}
	}
	return out
}

// orderedView renders view as "key=value" pairs in ascending key order
func orderedView(t *testing.T, layer Layer, keys []string) []string {
	t.Helper()
	m := view(t, layer, keys)
	var out []string
	for _, key := range keys {
		if value, ok := m[key]; ok {
			out = append(out, fmt.Sprintf("%s=%s", key, value))
		}
	}
	return out
}

func reversed(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[len(in)-1-i] = s
	}
	return out
}
