package session

import (
	"github.com/ValentinKolb/dLayer/lib/db"
	"github.com/ValentinKolb/dLayer/lib/db/util"
	"github.com/google/btree"
)

// cursor walks the entries of a single layer, tombstones included
type cursor interface {
	first() bool
	last() bool
	seekGE(key Bytes) bool
	seekLE(key Bytes) bool
	next() bool
	prev() bool
	valid() bool
	current() entry
	err() error
	close() error
}

// seekLT positions c on the last entry strictly below key
func seekLT(c cursor, key Bytes) bool {
	if c.seekLE(key) && c.current().key == key {
		return c.prev()
	}
	return c.valid()
}

// --------------------------------------------------------------------------
// Cursor over a change set snapshot
// --------------------------------------------------------------------------

type treeCursor struct {
	c *util.Cursor[entry]
}

func newTreeCursor(snapshot *btree.BTreeG[entry]) *treeCursor {
	return &treeCursor{c: util.NewCursor(snapshot, entryLess)}
}

func (t *treeCursor) first() bool           { return t.c.First() }
func (t *treeCursor) last() bool            { return t.c.Last() }
func (t *treeCursor) seekGE(key Bytes) bool { return t.c.SeekGE(entry{key: key}) }
func (t *treeCursor) seekLE(key Bytes) bool { return t.c.SeekLE(entry{key: key}) }
func (t *treeCursor) next() bool            { return t.c.Next() }
func (t *treeCursor) prev() bool            { return t.c.Prev() }
func (t *treeCursor) valid() bool           { return t.c.Valid() }
func (t *treeCursor) current() entry        { return t.c.Item() }
func (t *treeCursor) err() error            { return nil }
func (t *treeCursor) close() error          { return nil }

// --------------------------------------------------------------------------
// Cursor over a database iterator
// --------------------------------------------------------------------------

// backendCursor copies the database's current entry on every move, since
// iterator buffers are only valid until the next positioning call
type backendCursor struct {
	it  db.Iterator
	cur entry
	ok  bool
}

func newBackendCursor(it db.Iterator) *backendCursor {
	return &backendCursor{it: it}
}

func (b *backendCursor) load(ok bool) bool {
	b.ok = ok && b.it.Valid()
	if b.ok {
		b.cur = entry{key: BytesOf(b.it.Key()), value: BytesOf(b.it.Value())}
	} else {
		b.cur = entry{}
	}
	return b.ok
}

func (b *backendCursor) first() bool           { return b.load(b.it.First()) }
func (b *backendCursor) last() bool            { return b.load(b.it.Last()) }
func (b *backendCursor) seekGE(key Bytes) bool { return b.load(b.it.SeekGE(key.Raw())) }
func (b *backendCursor) seekLE(key Bytes) bool { return b.load(b.it.SeekLE(key.Raw())) }
func (b *backendCursor) next() bool            { return b.load(b.it.Next()) }
func (b *backendCursor) prev() bool            { return b.load(b.it.Prev()) }
func (b *backendCursor) valid() bool           { return b.ok }
func (b *backendCursor) current() entry        { return b.cur }

func (b *backendCursor) err() error {
	return backingStoreError(b.it.Error(), "iterate")
}

func (b *backendCursor) close() error {
	return backingStoreError(b.it.Close(), "close iterator")
}
