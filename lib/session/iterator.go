package session

import (
	"github.com/cockroachdb/errors"
)

// IterOptions bounds and orders an iteration. An empty bound is open; the lower
// bound is inclusive and the upper bound exclusive.
type IterOptions struct {
	LowerBound Bytes
	UpperBound Bytes
	Reverse    bool
}

func (o IterOptions) inBounds(key Bytes) bool {
	if o.LowerBound != "" && key < o.LowerBound {
		return false
	}
	if o.UpperBound != "" && key >= o.UpperBound {
		return false
	}
	return true
}

// Iterator is a k-way merge over one cursor per layer of a chain, ordered from
// the most local layer to the database. At each step the smallest key wins (the
// largest when reversed). If several layers hold the key, the most local entry wins
// and the others are skipped. Tombstoned keys are not yielded.
//
// Layer contents are snapshotted when the iterator is created, so later writes,
// commits and squashes do not affect it. An Iterator is not safe for concurrent use
// and must be closed.
//
// Example usage:
//
//	it, err := layer.NewIterator(session.IterOptions{})
//	if err != nil {
//	    return err
//	}
//	defer it.Close()
//	for ok := it.First(); ok; ok = it.Next() {
//	    fmt.Println(it.Key(), it.Value())
//	}
//	return it.Error()
type Iterator struct {
	opts    IterOptions
	cursors []cursor

	key    Bytes
	value  Bytes
	valid  bool
	err    error
	closed bool
}

// newIterator walks the chain from top to the root without recursion
func newIterator(top Layer, opts IterOptions) (*Iterator, error) {
	it := &Iterator{opts: opts}

	layer := top
	for layer != nil {
		cursors, parent, err := layer.snapshot(opts)
		if err != nil {
			_ = it.Close()
			return nil, err
		}
		it.cursors = append(it.cursors, cursors...)
		layer = parent
	}
	return it, nil
}

// First positions the iterator on the first entry in iteration order.
func (it *Iterator) First() bool {
	if !it.restart() {
		return false
	}
	for _, c := range it.cursors {
		switch {
		case !it.opts.Reverse && it.opts.LowerBound != "":
			c.seekGE(it.opts.LowerBound)
		case !it.opts.Reverse:
			c.first()
		case it.opts.UpperBound != "":
			seekLT(c, it.opts.UpperBound)
		default:
			c.last()
		}
	}
	return it.settle()
}

// Seek positions the iterator on the first key >= key, or on the last key <= key
// when reversed.
func (it *Iterator) Seek(key Bytes) bool {
	if !it.opts.Reverse && it.opts.LowerBound != "" && key < it.opts.LowerBound {
		return it.First()
	}
	if it.opts.Reverse && it.opts.UpperBound != "" && key >= it.opts.UpperBound {
		return it.First()
	}
	if !it.restart() {
		return false
	}
	for _, c := range it.cursors {
		if it.opts.Reverse {
			c.seekLE(key)
		} else {
			c.seekGE(key)
		}
	}
	return it.settle()
}

// Find positions the iterator like Seek and reports whether it landed on key exactly.
func (it *Iterator) Find(key Bytes) bool {
	return it.Seek(key) && it.key == key
}

// Next advances to the following entry in iteration order.
func (it *Iterator) Next() bool {
	if !it.valid {
		return false
	}
	return it.settle()
}

func (it *Iterator) Valid() bool {
	return it.valid
}

// Key returns the current key, or "" if the iterator is not valid.
func (it *Iterator) Key() Bytes {
	if !it.valid {
		return ""
	}
	return it.key
}

// Value returns the current value, or "" if the iterator is not valid.
func (it *Iterator) Value() Bytes {
	if !it.valid {
		return ""
	}
	return it.value
}

// Error returns the error that stopped the iteration, if any.
func (it *Iterator) Error() error {
	return it.err
}

// Close releases the underlying database iterators. Closing twice is a no-op.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.valid = false

	var err error
	for _, c := range it.cursors {
		err = errors.CombineErrors(err, c.close())
	}
	it.cursors = nil
	return err
}

func (it *Iterator) restart() bool {
	it.valid = false
	it.err = nil
	return !it.closed
}

// before reports whether a comes before b in iteration order
func (it *Iterator) before(a, b Bytes) bool {
	if it.opts.Reverse {
		return a > b
	}
	return a < b
}

func (it *Iterator) step(c cursor) {
	if it.opts.Reverse {
		c.prev()
	} else {
		c.next()
	}
}

// settle selects the next visible entry. Afterwards every cursor is positioned
// past the current key.
func (it *Iterator) settle() bool {
	for {
		if it.cursorError() {
			return false
		}

		winner := -1
		var best Bytes
		for i, c := range it.cursors {
			if !c.valid() {
				continue
			}
			if key := c.current().key; winner < 0 || it.before(key, best) {
				winner, best = i, key
			}
		}
		if winner < 0 || !it.opts.inBounds(best) {
			it.valid = false
			return false
		}

		e := it.cursors[winner].current()
		for _, c := range it.cursors {
			if c.valid() && c.current().key == best {
				it.step(c)
			}
		}
		if e.tombstone {
			continue
		}

		it.key, it.value, it.valid = e.key, e.value, true
		if it.cursorError() {
			return false
		}
		return true
	}
}

func (it *Iterator) cursorError() bool {
	for _, c := range it.cursors {
		if err := c.err(); err != nil {
			it.err = err
			it.valid = false
			return true
		}
	}
	return false
}
