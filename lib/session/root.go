package session

import (
	"sync"

	"github.com/ValentinKolb/dLayer/lib/db"
	"github.com/google/btree"
)

// DefaultMaxBatch is the default number of buffered root writes before a flush
const DefaultMaxBatch = 1024

// RootOptions configures a RootAdapter
type RootOptions struct {
	MaxBatch int // Buffered direct writes that force a flush (<= 0 uses DefaultMaxBatch)
}

// DefaultRootOptions returns the default root options
func DefaultRootOptions() *RootOptions {
	return &RootOptions{MaxBatch: DefaultMaxBatch}
}

// RootAdapter is the terminal layer of an overlay chain. It exposes a db.KVDB
// through the Layer contract.
//
// Direct writes and erases are buffered in an ordered pending set that reads and
// iterators see. The buffer is written out in one batch when it reaches MaxBatch
// entries, on Flush, or together with the next commit into the root.
type RootAdapter struct {
	mu       sync.RWMutex
	db       db.KVDB
	pending  *btree.BTreeG[entry]
	maxBatch int
}

// NewRootAdapter wraps database. opts may be nil.
func NewRootAdapter(database db.KVDB, opts *RootOptions) *RootAdapter {
	if opts == nil {
		opts = DefaultRootOptions()
	}
	maxBatch := opts.MaxBatch
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	return &RootAdapter{
		db:       database,
		pending:  newChangeSet(),
		maxBatch: maxBatch,
	}
}

// DB returns the wrapped database
func (r *RootAdapter) DB() db.KVDB {
	return r.db
}

// Pending returns the number of buffered writes not yet flushed
func (r *RootAdapter) Pending() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pending.Len()
}

func (r *RootAdapter) Read(key Bytes) (Bytes, bool, error) {
	readsTotal.Inc()

	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.pending.Get(entry{key: key}); ok {
		if e.tombstone {
			return "", false, nil
		}
		return e.value, true, nil
	}

	value, found, err := r.db.Get(key.Raw())
	if err != nil {
		return "", false, backingStoreError(err, "get")
	}
	if !found {
		return "", false, nil
	}
	return BytesOf(value), true, nil
}

// Write buffers the value. An ErrBackingStore error means the threshold flush
// failed: the write is still applied and visible to reads, but it is not
// durable until a later Flush or commit succeeds.
func (r *RootAdapter) Write(key, value Bytes) error {
	writesTotal.Inc()
	return r.buffer(entry{key: key, value: value})
}

// Erase buffers a tombstone, with the same failure contract as Write.
func (r *RootAdapter) Erase(key Bytes) error {
	erasesTotal.Inc()
	return r.buffer(entry{key: key, tombstone: true})
}

func (r *RootAdapter) NewIterator(opts IterOptions) (*Iterator, error) {
	return newIterator(r, opts)
}

// Flush writes all buffered changes to the database in one batch.
func (r *RootAdapter) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending.Len() == 0 {
		return nil
	}
	if err := r.writeBatch(r.pending); err != nil {
		return err
	}
	r.pending = newChangeSet()
	return nil
}

// buffer adds e to the pending set and flushes once the threshold is reached.
// If the flush fails the entry stays buffered.
func (r *RootAdapter) buffer(e entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending.ReplaceOrInsert(e)
	if r.pending.Len() < r.maxBatch {
		return nil
	}
	if err := r.writeBatch(r.pending); err != nil {
		return err
	}
	r.pending = newChangeSet()
	return nil
}

// apply writes the pending buffer and changes as one atomic batch. The
// pending buffer is only replaced after the batch succeeded.
func (r *RootAdapter) apply(changes *btree.BTreeG[entry]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	merged := r.pending.Clone()
	changes.Ascend(func(e entry) bool {
		merged.ReplaceOrInsert(e)
		return true
	})
	if merged.Len() == 0 {
		return nil
	}
	if err := r.writeBatch(merged); err != nil {
		return err
	}
	r.pending = newChangeSet()
	return nil
}

// writeBatch writes every entry of set in one database batch. Caller holds the write lock.
func (r *RootAdapter) writeBatch(set *btree.BTreeG[entry]) (err error) {
	batch := r.db.NewBatch()
	defer func() {
		if closeErr := batch.Close(); closeErr != nil && err == nil {
			err = backingStoreError(closeErr, "close batch")
		}
	}()

	set.Ascend(func(e entry) bool {
		if e.tombstone {
			err = batch.Delete(e.key.Raw())
		} else {
			err = batch.Set(e.key.Raw(), e.value.Raw())
		}
		return err == nil
	})
	if err != nil {
		rootFailuresTotal.Inc()
		return backingStoreError(err, "stage batch")
	}

	if err = batch.Commit(); err != nil {
		rootFailuresTotal.Inc()
		log.Errorf("flushing %d entries to the backing store failed: %v", set.Len(), err)
		return backingStoreError(err, "commit batch")
	}

	rootFlushesTotal.Inc()
	rootFlushedTotal.Add(set.Len())
	log.Debugf("flushed %d entries to the backing store", set.Len())
	return nil
}

// snapshot returns a cursor over a clone of the pending set and one over the database
func (r *RootAdapter) snapshot(opts IterOptions) ([]cursor, Layer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dbOpts := &db.IterOptions{}
	if opts.LowerBound != "" {
		dbOpts.LowerBound = opts.LowerBound.Raw()
	}
	if opts.UpperBound != "" {
		dbOpts.UpperBound = opts.UpperBound.Raw()
	}
	it, err := r.db.NewIterator(dbOpts)
	if err != nil {
		return nil, nil, backingStoreError(err, "open iterator")
	}

	return []cursor{newTreeCursor(r.pending.Clone()), newBackendCursor(it)}, nil, nil
}
