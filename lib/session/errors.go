package session

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrNotFound is returned by UndoStack.Commit for a revision that is not on the stack.
	ErrNotFound = errors.New("session: revision not found")

	// ErrEmptyStack is returned when an operation needs more frames than the stack holds.
	ErrEmptyStack = errors.New("session: not enough frames on the undo stack")

	// ErrBackingStore marks failures reported by the durable store. The original
	// error stays in the chain and can be matched with errors.Is.
	ErrBackingStore = errors.New("session: backing store failure")

	// ErrInvariantViolation marks a detected chain inconsistency. It indicates a bug.
	ErrInvariantViolation = errors.New("session: chain invariant violated")

	// ErrInvalidRevision is returned by UndoStack.SetRevision.
	ErrInvalidRevision = errors.New("session: invalid revision")
)

// backingStoreError wraps err with context and marks it as ErrBackingStore
func backingStoreError(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, "root: %s", op), ErrBackingStore)
}

// invariantViolation builds an assertion failure marked as ErrInvariantViolation
func invariantViolation(format string, args ...interface{}) error {
	return errors.Mark(errors.AssertionFailedf(format, args...), ErrInvariantViolation)
}
