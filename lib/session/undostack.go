package session

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Revision identifies a frame of an UndoStack. Revisions start at 1.
type Revision int64

// NoRevision is reported by an UndoStack without pushed frames.
const NoRevision Revision = 0

type frame struct {
	revision Revision
	session  *Session
}

// UndoStack is a chronologically ordered stack of sessions above a fixed
// RootAdapter. Frame i's session has frame i-1's session as parent, frame 0 sits
// directly on the root.
//
// Thread-safety: the stack's bookkeeping is guarded, but mutations of the chain
// must still be serialized by the caller.
type UndoStack struct {
	mu     sync.Mutex
	id     uuid.UUID
	root   *RootAdapter
	frames []frame // oldest first
	base   Revision
}

// NewUndoStack creates an empty stack over root.
func NewUndoStack(root *RootAdapter) *UndoStack {
	s := &UndoStack{
		id:   uuid.New(),
		root: root,
	}
	log.Debugf("[%s] created undo stack", s.id)
	return s
}

// ID returns the stack's identifier as used in log lines.
func (s *UndoStack) ID() uuid.UUID {
	return s.id
}

// Root returns the adapter at the bottom of the stack.
func (s *UndoStack) Root() *RootAdapter {
	return s.root
}

// Top returns the topmost session, or the root itself when no frames are pushed.
// Writes against the root are not undoable.
func (s *UndoStack) Top() Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topLocked()
}

func (s *UndoStack) topLocked() Layer {
	if len(s.frames) == 0 {
		return s.root
	}
	return s.frames[len(s.frames)-1].session
}

// Push creates a new session over the current top and returns its revision.
func (s *UndoStack) Push() Revision {
	s.mu.Lock()
	defer s.mu.Unlock()

	rev := s.revisionLocked() + 1
	s.frames = append(s.frames, frame{revision: rev, session: NewSession(s.topLocked())})

	pushesTotal.Inc()
	log.Debugf("[%s] pushed revision %d (depth %d)", s.id, rev, len(s.frames))
	return rev
}

// Commit folds all frames up to and including rev into the root as one atomic
// batch. Frames above rev stay and are re-parented onto the root. Every key
// resolves to the same value through the remaining frames as before.
//
// On failure the stack, its sessions and the database are unchanged.
func (s *UndoStack) Commit(rev Revision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := -1
	for i, f := range s.frames {
		if f.revision == rev {
			target = i
			break
		}
	}
	if target < 0 {
		return errors.Wrapf(ErrNotFound, "commit revision %d", rev)
	}
	if err := s.validateLocked(); err != nil {
		return err
	}

	// merge oldest to newest so younger frames overwrite older ones
	merged := newChangeSet()
	for _, f := range s.frames[:target+1] {
		f.session.mu.RLock()
		f.session.changes.Ascend(func(e entry) bool {
			merged.ReplaceOrInsert(e)
			return true
		})
		f.session.mu.RUnlock()
	}

	if err := s.root.apply(merged); err != nil {
		return errors.Wrapf(err, "commit revision %d", rev)
	}

	for _, f := range s.frames[:target+1] {
		f.session.mu.Lock()
		f.session.changes = newChangeSet()
		f.session.parent = s.root
		f.session.mu.Unlock()
	}
	s.frames = append([]frame(nil), s.frames[target+1:]...)
	if len(s.frames) > 0 {
		s.frames[0].session.setParent(s.root)
	}
	s.base = rev

	commitsTotal.Inc()
	commitEntries.Update(float64(merged.Len()))
	log.Debugf("[%s] committed up to revision %d (%d entries, %d frames left)", s.id, rev, merged.Len(), len(s.frames))
	return nil
}

// Undo pops the top frame and discards its changes.
func (s *UndoStack) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return errors.Wrap(ErrEmptyStack, "undo")
	}

	top := s.frames[len(s.frames)-1]
	top.session.Undo()
	s.frames = s.frames[:len(s.frames)-1]

	log.Debugf("[%s] undid revision %d", s.id, top.revision)
	return nil
}

// Squash commits the top frame into the frame below it. The merged frame keeps the
// lower revision. The root is not touched.
func (s *UndoStack) Squash() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) < 2 {
		return errors.Wrapf(ErrEmptyStack, "squash needs two frames, have %d", len(s.frames))
	}
	if err := s.validateLocked(); err != nil {
		return err
	}

	top := s.frames[len(s.frames)-1]
	if err := top.session.Commit(); err != nil {
		return errors.Wrapf(err, "squash revision %d", top.revision)
	}
	s.frames = s.frames[:len(s.frames)-1]

	squashesTotal.Inc()
	log.Debugf("[%s] squashed revision %d into %d", s.id, top.revision, s.frames[len(s.frames)-1].revision)
	return nil
}

// Revision returns the top frame's revision, or NoRevision without frames.
func (s *UndoStack) Revision() Revision {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return NoRevision
	}
	return s.frames[len(s.frames)-1].revision
}

// SetRevision sets the revision the next Push continues from. It is only allowed
// without pushed frames and never moves backwards.
func (s *UndoStack) SetRevision(rev Revision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) > 0 {
		return errors.Wrapf(ErrInvalidRevision, "cannot set revision with %d frames pushed", len(s.frames))
	}
	if rev < s.base {
		return errors.Wrapf(ErrInvalidRevision, "revision %d is below %d", rev, s.base)
	}
	s.base = rev
	return nil
}

// Empty reports whether no frames are pushed.
func (s *UndoStack) Empty() bool {
	return s.Size() == 0
}

// Size returns the number of pushed frames.
func (s *UndoStack) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Close flushes writes buffered in the root. Pushed frames are discarded.
func (s *UndoStack) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.frames {
		f.session.Undo()
	}
	s.frames = nil
	return s.root.Flush()
}

// revisionLocked returns the revision of the top frame or the base revision
func (s *UndoStack) revisionLocked() Revision {
	if len(s.frames) == 0 {
		return s.base
	}
	return s.frames[len(s.frames)-1].revision
}

// validateLocked checks parent links and revision order of all frames
func (s *UndoStack) validateLocked() error {
	var want Layer = s.root
	prev := s.base
	for i, f := range s.frames {
		if got := f.session.Parent(); got != want {
			return invariantViolation("frame %d (revision %d) is not layered on the frame below", i, f.revision)
		}
		if f.revision <= prev {
			return invariantViolation("frame %d revision %d does not follow %d", i, f.revision, prev)
		}
		want, prev = f.session, f.revision
	}
	return nil
}
