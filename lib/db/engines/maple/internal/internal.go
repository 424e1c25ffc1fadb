package internal

import (
	"fmt"

	"github.com/ValentinKolb/dLayer/lib/db"
	"github.com/ValentinKolb/dLayer/lib/db/util"
	"github.com/google/btree"
)

// --------------------------------------------------------------------------
// Entry Type (key-value pair)
// --------------------------------------------------------------------------

// Entry stores a key-value pair. The key is kept as a string so that it is
// immutable and compares byte-lexicographically.
type Entry struct {
	Key   string
	Value []byte
}

func (e Entry) String() string {
	return fmt.Sprintf("Entry{Key: %q, ValueLen: %d}", e.Key, len(e.Value))
}

// Less orders entries by key
func Less(a, b Entry) bool {
	return a.Key < b.Key
}

// NewTree creates an empty ordered entry tree with the given degree
func NewTree(degree int) *btree.BTreeG[Entry] {
	return btree.NewG[Entry](degree, Less)
}

// --------------------------------------------------------------------------
// Iterator (bounded cursor over a tree snapshot)
// --------------------------------------------------------------------------

// Iterator implements db.Iterator on top of a snapshot of the entry tree.
type Iterator struct {
	cursor *util.Cursor[Entry]
	opts   db.IterOptions
	valid  bool
	closed bool
	onDone func()
}

// NewIterator wraps a tree snapshot. onDone is invoked once on Close.
func NewIterator(snapshot *btree.BTreeG[Entry], opts *db.IterOptions, onDone func()) *Iterator {
	it := &Iterator{
		cursor: util.NewCursor(snapshot, Less),
		onDone: onDone,
	}
	if opts != nil {
		it.opts = *opts
	}
	return it
}

// settle validates the cursor position against the bounds
func (it *Iterator) settle(ok bool) bool {
	it.valid = ok && !it.closed && it.opts.InBounds([]byte(it.cursor.Item().Key))
	return it.valid
}

func (it *Iterator) First() bool {
	if it.opts.LowerBound != nil {
		return it.settle(it.cursor.SeekGE(Entry{Key: string(it.opts.LowerBound)}))
	}
	return it.settle(it.cursor.First())
}

func (it *Iterator) Last() bool {
	if it.opts.UpperBound == nil {
		return it.settle(it.cursor.Last())
	}
	// upper bound is exclusive
	ok := it.cursor.SeekLE(Entry{Key: string(it.opts.UpperBound)})
	if ok && it.cursor.Item().Key == string(it.opts.UpperBound) {
		ok = it.cursor.Prev()
	}
	return it.settle(ok)
}

func (it *Iterator) SeekGE(key []byte) bool {
	if it.opts.LowerBound != nil && string(key) < string(it.opts.LowerBound) {
		return it.First()
	}
	return it.settle(it.cursor.SeekGE(Entry{Key: string(key)}))
}

func (it *Iterator) SeekLE(key []byte) bool {
	if it.opts.UpperBound != nil && string(key) >= string(it.opts.UpperBound) {
		return it.Last()
	}
	return it.settle(it.cursor.SeekLE(Entry{Key: string(key)}))
}

func (it *Iterator) Next() bool {
	if !it.valid {
		return false
	}
	return it.settle(it.cursor.Next())
}

func (it *Iterator) Prev() bool {
	if !it.valid {
		return false
	}
	return it.settle(it.cursor.Prev())
}

func (it *Iterator) Valid() bool {
	return it.valid
}

func (it *Iterator) Key() []byte {
	if !it.valid {
		return nil
	}
	return []byte(it.cursor.Item().Key)
}

func (it *Iterator) Value() []byte {
	if !it.valid {
		return nil
	}
	return it.cursor.Item().Value
}

func (it *Iterator) Error() error {
	return nil
}

func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.valid = false
	if it.onDone != nil {
		it.onDone()
	}
	return nil
}
