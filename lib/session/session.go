package session

import (
	"sync"

	"github.com/google/btree"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("session")

// Session is an in-memory overlay of local changes over a parent Layer.
//
// Thread-safety: reads may run concurrently. Mutations of a chain (Write, Erase,
// Commit, Undo) must be serialized by the caller.
type Session struct {
	mu      sync.RWMutex
	changes *btree.BTreeG[entry]
	parent  Layer
}

// NewSession creates an empty overlay over parent. A nil parent creates a
// detached session whose misses resolve to absent.
func NewSession(parent Layer) *Session {
	return &Session{
		changes: newChangeSet(),
		parent:  parent,
	}
}

// Parent returns the layer below the session (nil if detached).
func (s *Session) Parent() Layer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parent
}

func (s *Session) setParent(parent Layer) {
	s.mu.Lock()
	s.parent = parent
	s.mu.Unlock()
}

// Len returns the number of local entries, tombstones included.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changes.Len()
}

// Read returns the local value, absent for a local tombstone, and otherwise
// defers to the parent.
func (s *Session) Read(key Bytes) (Bytes, bool, error) {
	readsTotal.Inc()

	s.mu.RLock()
	e, ok := s.changes.Get(entry{key: key})
	parent := s.parent
	s.mu.RUnlock()

	switch {
	case ok && e.tombstone:
		return "", false, nil
	case ok:
		return e.value, true, nil
	case parent == nil:
		return "", false, nil
	}
	return parent.Read(key)
}

func (s *Session) Write(key, value Bytes) error {
	writesTotal.Inc()

	s.mu.Lock()
	s.changes.ReplaceOrInsert(entry{key: key, value: value})
	s.mu.Unlock()
	return nil
}

// Erase records a tombstone for key, whether or not an ancestor holds it.
func (s *Session) Erase(key Bytes) error {
	erasesTotal.Inc()

	s.mu.Lock()
	s.changes.ReplaceOrInsert(entry{key: key, tombstone: true})
	s.mu.Unlock()
	return nil
}

func (s *Session) NewIterator(opts IterOptions) (*Iterator, error) {
	return newIterator(s, opts)
}

// Commit folds the local changes into the parent and clears them.
//
// The change set is prepared before the parent is touched: tombstones whose key
// the parent already resolves to absent are dropped. The parent receives the set as
// one unit (one atomic batch for a RootAdapter). On failure the session keeps its
// changes and the parent is unchanged. Committing a detached session is a no-op.
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.parent == nil || s.changes.Len() == 0 {
		return nil
	}

	prepared := newChangeSet()
	var err error
	s.changes.Ascend(func(e entry) bool {
		if e.tombstone {
			_, found, readErr := s.parent.Read(e.key)
			if readErr != nil {
				err = readErr
				return false
			}
			if !found {
				return true
			}
		}
		prepared.ReplaceOrInsert(e)
		return true
	})
	if err != nil {
		return err
	}

	if err := s.parent.apply(prepared); err != nil {
		return err
	}

	commitsTotal.Inc()
	commitEntries.Update(float64(prepared.Len()))
	log.Debugf("committed %d of %d local entries into parent", prepared.Len(), s.changes.Len())

	s.changes = newChangeSet()
	return nil
}

// Undo discards all local changes.
func (s *Session) Undo() {
	undosTotal.Inc()

	s.mu.Lock()
	s.changes = newChangeSet()
	s.mu.Unlock()
}

// apply merges changes under the write lock, so readers see all or nothing
func (s *Session) apply(changes *btree.BTreeG[entry]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changes.Ascend(func(e entry) bool {
		s.changes.ReplaceOrInsert(e)
		return true
	})
	return nil
}

// snapshot clones the local changes. Clone needs exclusive access to the tree.
func (s *Session) snapshot(IterOptions) ([]cursor, Layer, error) {
	s.mu.Lock()
	snap := s.changes.Clone()
	parent := s.parent
	s.mu.Unlock()

	return []cursor{newTreeCursor(snap)}, parent, nil
}
