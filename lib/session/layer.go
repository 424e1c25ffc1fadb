package session

import (
	"github.com/google/btree"
)

// treeDegree is the btree degree used for local change maps
const treeDegree = 32

// entry is a local change: a value or a tombstone shadowing the parent
type entry struct {
	key       Bytes
	value     Bytes
	tombstone bool
}

func entryLess(a, b entry) bool {
	return a.key < b.key
}

func newChangeSet() *btree.BTreeG[entry] {
	return btree.NewG[entry](treeDegree, entryLess)
}

// Layer is one level of an overlay chain. It is implemented by *Session and
// *RootAdapter only.
type Layer interface {
	// Read returns the effective value of key as seen from this layer.
	Read(key Bytes) (Bytes, bool, error)
	// Write sets key in this layer.
	Write(key, value Bytes) error
	// Erase shadows key in this layer.
	Erase(key Bytes) error
	// NewIterator returns an unpositioned iterator over the merged view of this
	// layer and all of its ancestors.
	NewIterator(opts IterOptions) (*Iterator, error)

	// apply folds a prepared change set into the layer as one unit
	apply(changes *btree.BTreeG[entry]) error
	// snapshot returns the iteration cursors of this layer alone and its parent
	snapshot(opts IterOptions) ([]cursor, Layer, error)
}

var (
	_ Layer = (*Session)(nil)
	_ Layer = (*RootAdapter)(nil)
)
