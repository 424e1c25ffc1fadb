package db

import (
	"io"

	"github.com/cockroachdb/errors"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple  Implementation = "maple"
	ImplPebble Implementation = "pebble"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureGet     Feature = 1 << iota // Support for Get operations
	FeatureSet                         // Support for Set operations
	FeatureDelete                      // Support for Delete operations
	FeatureBatch                       // Support for atomic batches
	FeatureIterate                     // Support for ordered forward iteration
	FeatureReverse                     // Support for ordered backward iteration
	FeatureDurable                     // Data survives a process restart
	FeatureSave                        // Support for Save operations
	FeatureLoad                        // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeatureGet:
		return "Get"
	case FeatureSet:
		return "Set"
	case FeatureDelete:
		return "Delete"
	case FeatureBatch:
		return "Batch"
	case FeatureIterate:
		return "Iterate"
	case FeatureReverse:
		return "Reverse"
	case FeatureDurable:
		return "Durable"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// IterOptions restricts an Iterator to a key range.
// A nil bound is open. LowerBound is inclusive, UpperBound is exclusive.
type IterOptions struct {
	LowerBound []byte
	UpperBound []byte
}

// InBounds reports whether key lies inside the configured range.
func (o *IterOptions) InBounds(key []byte) bool {
	if o == nil {
		return true
	}
	if o.LowerBound != nil && string(key) < string(o.LowerBound) {
		return false
	}
	if o.UpperBound != nil && string(key) >= string(o.UpperBound) {
		return false
	}
	return true
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for ordered key-value database implementations.
// Keys are ordered byte-lexicographically. Implementations can vary in their
// feature support, which can be queried with SupportsFeature.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates an entry. If the key already exists, the old value is overwritten.
	Set(key, value []byte) (err error)

	// Delete removes an entry. Deleting an absent key is not an error.
	Delete(key []byte) (err error)

	// NewBatch returns an empty write batch. Nothing is visible to readers
	// until Batch.Commit succeeds, and a failed commit applies nothing.
	NewBatch() (batch Batch)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	// The returned value is owned by the caller.
	Get(key []byte) (value []byte, loaded bool, err error)

	// NewIterator returns an unpositioned iterator over the (optionally bounded) key range.
	// The caller must Close it.
	NewIterator(opts *IterOptions) (it Iterator, err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database.
	Close() (err error)
}

// Batch collects upserts and deletes that are applied as one atomic unit.
type Batch interface {
	Set(key, value []byte) (err error)
	Delete(key []byte) (err error)
	// Count returns the number of operations recorded so far.
	Count() (n int)
	// Commit applies all operations atomically. Either all of them become
	// visible or none do.
	Commit() (err error)
	// Close releases the batch. It is safe to call Close after Commit.
	Close() (err error)
}

// Iterator walks the keys of a KVDB in order. Positioning methods return
// whether the iterator ended up on a valid entry.
type Iterator interface {
	First() bool
	Last() bool
	// SeekGE moves to the first key >= key.
	SeekGE(key []byte) bool
	// SeekLE moves to the last key <= key.
	SeekLE(key []byte) bool
	Next() bool
	Prev() bool
	Valid() bool
	// Key and Value are only valid until the next positioning call.
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// Snapshotter is implemented by databases that support FeatureSave and FeatureLoad.
type Snapshotter interface {
	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)
	// Load replaces the database state with the snapshot read from r.
	Load(r io.Reader) (err error)
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

// ErrClosed is returned by every operation on a closed database, batch or iterator.
var ErrClosed = errors.New("db: closed")
