package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/dLayer/lib/db"
	"github.com/ValentinKolb/dLayer/lib/db/engines/maple"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionReadsOwnWrites(t *testing.T) {
	forEachBackend(t, func(t *testing.T, database db.KVDB) {
		require.NoError(t, database.Set([]byte("k"), []byte("root")))
		root := NewRootAdapter(database, nil)

		// depth 0: the root itself
		requireValue(t, root, "k", "root")

		var layer Layer = root
		previous := "root"
		for depth := 1; depth <= 4; depth++ {
			layer = NewSession(layer)
			requireValue(t, layer, "k", previous)

			value := fmt.Sprintf("v%d", depth)
			require.NoError(t, layer.Write(Bytes("k"), Bytes(value)))
			requireValue(t, layer, "k", value)
			previous = value
		}
	})
}

func TestSessionEraseShadowsAncestors(t *testing.T) {
	forEachBackend(t, func(t *testing.T, database db.KVDB) {
		require.NoError(t, database.Set([]byte("k"), []byte("root")))
		root := NewRootAdapter(database, nil)

		parent := NewSession(root)
		require.NoError(t, parent.Write(Bytes("k"), Bytes("parent")))

		child := NewSession(parent)
		require.NoError(t, child.Write(Bytes("k"), Bytes("child")))
		require.NoError(t, child.Erase(Bytes("k")))

		requireAbsent(t, child, "k")
		requireValue(t, parent, "k", "parent")
		requireValue(t, root, "k", "root")

		// writing again replaces the tombstone
		require.NoError(t, child.Write(Bytes("k"), Bytes("again")))
		requireValue(t, child, "k", "again")
		assert.Equal(t, 1, child.Len())
	})
}

func TestSessionUndo(t *testing.T) {
	root := NewRootAdapter(maple.NewMapleDB(nil), nil)
	require.NoError(t, root.Write(Bytes("a"), Bytes("1")))

	parent := NewSession(root)
	require.NoError(t, parent.Write(Bytes("b"), Bytes("2")))
	keys := []string{"a", "b", "c"}
	before := view(t, parent, keys)

	child := NewSession(parent)
	require.NoError(t, child.Write(Bytes("a"), Bytes("x")))
	require.NoError(t, child.Erase(Bytes("b")))
	require.NoError(t, child.Write(Bytes("c"), Bytes("3")))

	child.Undo()

	assert.Equal(t, 0, child.Len())
	assert.Equal(t, before, view(t, child, keys))
	assert.Equal(t, before, view(t, parent, keys))
}

func TestSessionCommitIntoSession(t *testing.T) {
	root := NewRootAdapter(maple.NewMapleDB(nil), nil)
	require.NoError(t, root.Write(Bytes("gone"), Bytes("root")))

	parent := NewSession(root)
	require.NoError(t, parent.Write(Bytes("a"), Bytes("parent")))

	child := NewSession(parent)
	require.NoError(t, child.Write(Bytes("a"), Bytes("child")))
	require.NoError(t, child.Write(Bytes("b"), Bytes("new")))
	require.NoError(t, child.Erase(Bytes("gone")))

	keys := []string{"a", "b", "gone"}
	before := view(t, child, keys)

	require.NoError(t, child.Commit())

	assert.Equal(t, 0, child.Len())
	assert.Equal(t, before, view(t, child, keys))
	assert.Equal(t, before, view(t, parent, keys))
	requireValue(t, root, "gone", "root")
}

func TestSessionCommitDropsRedundantTombstones(t *testing.T) {
	root := NewRootAdapter(maple.NewMapleDB(nil), nil)
	require.NoError(t, root.Write(Bytes("present"), Bytes("v")))

	parent := NewSession(root)
	child := NewSession(parent)
	require.NoError(t, child.Erase(Bytes("never-written")))
	require.NoError(t, child.Erase(Bytes("present")))

	require.NoError(t, child.Commit())

	// only the tombstone that shadows a value survives
	assert.Equal(t, 1, parent.Len())
	requireAbsent(t, parent, "present")
	requireAbsent(t, parent, "never-written")
}

func TestSessionCommitIntoRoot(t *testing.T) {
	forEachBackend(t, func(t *testing.T, database db.KVDB) {
		require.NoError(t, database.Set([]byte("old"), []byte("v")))
		root := NewRootAdapter(database, nil)

		s := NewSession(root)
		require.NoError(t, s.Write(Bytes("new"), Bytes("v")))
		require.NoError(t, s.Erase(Bytes("old")))

		_, found := dbValue(t, database, "new")
		require.False(t, found, "uncommitted writes must not reach the database")

		require.NoError(t, s.Commit())

		value, found := dbValue(t, database, "new")
		require.True(t, found)
		assert.Equal(t, "v", value)
		_, found = dbValue(t, database, "old")
		assert.False(t, found)
		assert.Equal(t, 0, root.Pending())
		assert.Equal(t, 0, s.Len())
	})
}

func TestSessionCommitFailureKeepsState(t *testing.T) {
	database := &faultyDB{KVDB: maple.NewMapleDB(nil)}
	root := NewRootAdapter(database, nil)

	s := NewSession(root)
	require.NoError(t, s.Write(Bytes("a"), Bytes("1")))
	require.NoError(t, s.Write(Bytes("b"), Bytes("2")))

	database.failBatches.Store(true)
	err := s.Commit()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBackingStore))
	assert.True(t, errors.Is(err, errInjected))

	assert.Equal(t, 2, s.Len())
	requireValue(t, s, "a", "1")
	_, found := dbValue(t, database, "a")
	assert.False(t, found)

	// retry once the store recovers
	database.failBatches.Store(false)
	require.NoError(t, s.Commit())
	value, found := dbValue(t, database, "b")
	require.True(t, found)
	assert.Equal(t, "2", value)
}

func TestDetachedSession(t *testing.T) {
	s := NewSession(nil)
	requireAbsent(t, s, "missing")

	require.NoError(t, s.Write(Bytes("k"), Bytes("v")))
	requireValue(t, s, "k", "v")
	assert.Nil(t, s.Parent())

	require.NoError(t, s.Commit())
	assert.Equal(t, 1, s.Len())

	assert.Equal(t, []string{"k=v"}, scan(t, s, IterOptions{}))
}

func TestSessionConcurrentReaders(t *testing.T) {
	root := NewRootAdapter(maple.NewMapleDB(nil), nil)
	keys := keySpace(50)

	var layer Layer = root
	for depth := 0; depth < 5; depth++ {
		layer = NewSession(layer)
		for i, key := range keys {
			if i%(depth+2) == 0 {
				require.NoError(t, layer.Write(Bytes(key), Bytes(fmt.Sprintf("d%d", depth))))
			}
		}
	}
	want := view(t, layer, keys)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				for _, key := range keys {
					value, found, err := layer.Read(Bytes(key))
					if err != nil {
						errs <- err
						return
					}
					if w, ok := want[key]; ok != found || (found && w != string(value)) {
						errs <- fmt.Errorf("key %s: got %q/%t want %q/%t", key, value, found, w, ok)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
