package session

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/dLayer/lib/db"
	"github.com/ValentinKolb/dLayer/lib/db/engines/maple"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitScenario(t *testing.T) {
	forEachBackend(t, func(t *testing.T, database db.KVDB) {
		require.NoError(t, database.Set([]byte("foo1"), []byte("hello world")))
		stack := NewUndoStack(NewRootAdapter(database, nil))

		rev := stack.Push()
		require.NoError(t, stack.Top().Write(Bytes("foo2"), Bytes("hello again")))
		require.NoError(t, stack.Commit(rev))

		top := stack.Top()
		requireValue(t, top, "foo1", "hello world")
		requireValue(t, top, "foo2", "hello again")

		for key, want := range map[string]string{"foo1": "hello world", "foo2": "hello again"} {
			got, found := dbValue(t, database, key)
			require.True(t, found, "key %q should be durable", key)
			assert.Equal(t, want, got)
		}
		assert.True(t, stack.Empty())
		assert.Equal(t, NoRevision, stack.Revision())
	})
}

func TestSquashScenario(t *testing.T) {
	forEachBackend(t, func(t *testing.T, database db.KVDB) {
		stack := NewUndoStack(NewRootAdapter(database, nil))

		revA := stack.Push()
		require.NoError(t, stack.Top().Write(Bytes("x"), Bytes("1")))
		stack.Push()
		require.NoError(t, stack.Top().Write(Bytes("x"), Bytes("2")))
		require.Equal(t, 2, stack.Size())

		require.NoError(t, stack.Squash())

		requireValue(t, stack.Top(), "x", "2")
		assert.Equal(t, 1, stack.Size())
		assert.Equal(t, revA, stack.Revision())

		_, found := dbValue(t, database, "x")
		assert.False(t, found, "squash must not touch the database")
	})
}

func TestUndoStackErrors(t *testing.T) {
	stack := NewUndoStack(NewRootAdapter(maple.NewMapleDB(nil), nil))

	assert.True(t, errors.Is(stack.Undo(), ErrEmptyStack))
	assert.True(t, errors.Is(stack.Squash(), ErrEmptyStack))
	assert.True(t, errors.Is(stack.Commit(1), ErrNotFound))

	rev := stack.Push()
	assert.True(t, errors.Is(stack.Squash(), ErrEmptyStack))
	assert.True(t, errors.Is(stack.Commit(rev+1), ErrNotFound))
	assert.True(t, errors.Is(stack.SetRevision(10), ErrInvalidRevision))
}

func TestUndoStackRevisions(t *testing.T) {
	stack := NewUndoStack(NewRootAdapter(maple.NewMapleDB(nil), nil))
	assert.Equal(t, NoRevision, stack.Revision())

	assert.Equal(t, Revision(1), stack.Push())
	assert.Equal(t, Revision(2), stack.Push())
	assert.Equal(t, Revision(3), stack.Push())

	require.NoError(t, stack.Undo())
	assert.Equal(t, Revision(2), stack.Revision())
	assert.Equal(t, Revision(3), stack.Push())

	require.NoError(t, stack.Commit(3))
	assert.Equal(t, NoRevision, stack.Revision())
	assert.Equal(t, Revision(4), stack.Push())
	require.NoError(t, stack.Undo())

	// numbering continues from the last commit
	assert.True(t, errors.Is(stack.SetRevision(2), ErrInvalidRevision))
	require.NoError(t, stack.SetRevision(10))
	assert.Equal(t, Revision(11), stack.Push())
}

func TestUndoRestoresPreviousView(t *testing.T) {
	forEachBackend(t, func(t *testing.T, database db.KVDB) {
		require.NoError(t, database.Set([]byte("a"), []byte("db")))
		stack := NewUndoStack(NewRootAdapter(database, nil))
		keys := []string{"a", "b", "c"}

		stack.Push()
		require.NoError(t, stack.Top().Write(Bytes("b"), Bytes("1")))
		before := view(t, stack.Top(), keys)

		stack.Push()
		require.NoError(t, stack.Top().Erase(Bytes("a")))
		require.NoError(t, stack.Top().Write(Bytes("b"), Bytes("2")))
		require.NoError(t, stack.Top().Write(Bytes("c"), Bytes("2")))

		require.NoError(t, stack.Undo())
		assert.Equal(t, before, view(t, stack.Top(), keys))
		assert.Equal(t, 1, stack.Size())

		value, found := dbValue(t, database, "a")
		require.True(t, found)
		assert.Equal(t, "db", value)
	})
}

func TestCommitBelowTop(t *testing.T) {
	forEachBackend(t, func(t *testing.T, database db.KVDB) {
		require.NoError(t, database.Set([]byte("a"), []byte("db")))
		require.NoError(t, database.Set([]byte("z"), []byte("db")))
		stack := NewUndoStack(NewRootAdapter(database, nil))
		keys := []string{"a", "b", "c", "z"}

		stack.Push()
		require.NoError(t, stack.Top().Write(Bytes("b"), Bytes("r1")))
		require.NoError(t, stack.Top().Erase(Bytes("z")))
		r2 := stack.Push()
		require.NoError(t, stack.Top().Write(Bytes("b"), Bytes("r2")))
		require.NoError(t, stack.Top().Write(Bytes("c"), Bytes("r2")))
		r3 := stack.Push()
		require.NoError(t, stack.Top().Erase(Bytes("c")))
		r4 := stack.Push()
		require.NoError(t, stack.Top().Write(Bytes("a"), Bytes("r4")))

		before := orderedView(t, stack.Top(), keys)
		require.NoError(t, stack.Commit(r2))

		assert.Equal(t, before, orderedView(t, stack.Top(), keys))
		assert.Equal(t, before, scan(t, stack.Top(), IterOptions{}))
		assert.Equal(t, 2, stack.Size())
		assert.Equal(t, r4, stack.Revision())

		// r1 and r2 are durable, r3 and r4 are not
		value, found := dbValue(t, database, "c")
		require.True(t, found)
		assert.Equal(t, "r2", value)
		_, found = dbValue(t, database, "z")
		assert.False(t, found)
		value, _ = dbValue(t, database, "a")
		assert.Equal(t, "db", value)

		// the remaining bottom frame sits directly on the root
		stack.mu.Lock()
		assert.Equal(t, Layer(stack.root), stack.frames[0].session.Parent())
		assert.Equal(t, r3, stack.frames[0].revision)
		stack.mu.Unlock()

		require.NoError(t, stack.Undo())
		require.NoError(t, stack.Undo())
		assert.Equal(t, []string{"a=db", "b=r2", "c=r2"}, orderedView(t, stack.Top(), keys))
	})
}

func TestCommitIncludesPendingRootWrites(t *testing.T) {
	database := maple.NewMapleDB(nil)
	stack := NewUndoStack(NewRootAdapter(database, nil))

	// no frames: writes go to the root buffer
	require.NoError(t, stack.Top().Write(Bytes("direct"), Bytes("1")))
	assert.Equal(t, 1, stack.Root().Pending())

	rev := stack.Push()
	require.NoError(t, stack.Top().Write(Bytes("staged"), Bytes("1")))
	require.NoError(t, stack.Commit(rev))

	assert.Equal(t, 0, stack.Root().Pending())
	for _, key := range []string{"direct", "staged"} {
		_, found := dbValue(t, database, key)
		assert.True(t, found, "key %q should be durable", key)
	}
}

func TestDirectRootWritesAreNotUndoable(t *testing.T) {
	database := maple.NewMapleDB(nil)
	stack := NewUndoStack(NewRootAdapter(database, nil))

	assert.Equal(t, Layer(stack.Root()), stack.Top())
	require.NoError(t, stack.Top().Write(Bytes("k"), Bytes("v")))
	assert.True(t, errors.Is(stack.Undo(), ErrEmptyStack))
	requireValue(t, stack.Top(), "k", "v")

	stack.Push()
	require.NoError(t, stack.Top().Write(Bytes("discarded"), Bytes("v")))
	require.NoError(t, stack.Close())

	value, found := dbValue(t, database, "k")
	require.True(t, found)
	assert.Equal(t, "v", value)
	_, found = dbValue(t, database, "discarded")
	assert.False(t, found)
}

func TestCommitFailureLeavesStackIntact(t *testing.T) {
	database := &faultyDB{KVDB: maple.NewMapleDB(nil)}
	stack := NewUndoStack(NewRootAdapter(database, nil))
	keys := []string{"a", "b"}

	r1 := stack.Push()
	require.NoError(t, stack.Top().Write(Bytes("a"), Bytes("1")))
	stack.Push()
	require.NoError(t, stack.Top().Write(Bytes("b"), Bytes("2")))
	before := view(t, stack.Top(), keys)

	database.failBatches.Store(true)
	err := stack.Commit(r1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBackingStore))

	assert.Equal(t, 2, stack.Size())
	assert.Equal(t, before, view(t, stack.Top(), keys))
	_, found := dbValue(t, database, "a")
	assert.False(t, found)

	database.failBatches.Store(false)
	require.NoError(t, stack.Commit(r1))
	assert.Equal(t, before, view(t, stack.Top(), keys))
	assert.Equal(t, 1, stack.Size())
}

func TestInvariantViolationIsDetected(t *testing.T) {
	stack := NewUndoStack(NewRootAdapter(maple.NewMapleDB(nil), nil))
	r1 := stack.Push()
	stack.Push()

	// corrupt the chain: the top frame skips the frame below
	stack.frames[1].session.setParent(stack.root)

	assert.True(t, errors.Is(stack.Squash(), ErrInvariantViolation))
	assert.True(t, errors.Is(stack.Commit(r1), ErrInvariantViolation))
	assert.Equal(t, 2, stack.Size())
}

// randomFrames pushes n frames with random writes and erases on the top of stack
func randomFrames(t *testing.T, rng *rand.Rand, stack *UndoStack, keys []string, n int) []Revision {
	var revs []Revision
	for f := 0; f < n; f++ {
		rev := stack.Push()
		revs = append(revs, rev)
		for i := 0; i < 10; i++ {
			key := Bytes(keys[rng.Intn(len(keys))])
			if rng.Intn(4) == 0 {
				require.NoError(t, stack.Top().Erase(key))
			} else {
				require.NoError(t, stack.Top().Write(key, Bytes(fmt.Sprintf("r%d-%d", rev, i))))
			}
		}
	}
	return revs
}

func TestCommitPreservesEffectiveValues(t *testing.T) {
	forEachBackend(t, func(t *testing.T, database db.KVDB) {
		rng := rand.New(rand.NewSource(42))
		keys := keySpace(16)
		stack := NewUndoStack(NewRootAdapter(database, &RootOptions{MaxBatch: 8}))

		for round := 0; round < 20; round++ {
			revs := randomFrames(t, rng, stack, keys, 1+rng.Intn(4))
			target := revs[rng.Intn(len(revs))]

			before := orderedView(t, stack.Top(), keys)
			require.NoError(t, stack.Commit(target), "round %d", round)
			require.Equal(t, before, orderedView(t, stack.Top(), keys), "round %d", round)
			require.Equal(t, before, scan(t, stack.Top(), IterOptions{}), "round %d", round)
		}
	})
}

func TestSquashPreservesEffectiveValues(t *testing.T) {
	forEachBackend(t, func(t *testing.T, database db.KVDB) {
		rng := rand.New(rand.NewSource(99))
		keys := keySpace(16)
		stack := NewUndoStack(NewRootAdapter(database, nil))

		randomFrames(t, rng, stack, keys, 8)
		for stack.Size() > 1 {
			before := orderedView(t, stack.Top(), keys)
			size := stack.Size()

			require.NoError(t, stack.Squash())
			require.Equal(t, size-1, stack.Size())
			require.Equal(t, before, orderedView(t, stack.Top(), keys))
			require.Equal(t, before, scan(t, stack.Top(), IterOptions{}))
		}

		assert.Equal(t, Revision(1), stack.Revision())
		assert.Equal(t, 0, stack.Root().Pending())
	})
}
