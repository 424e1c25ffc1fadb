package maple

import (
	"bufio"
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dLayer/lib/db"
	"github.com/ValentinKolb/dLayer/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/dLayer/lib/db/util"
	"github.com/cockroachdb/errors"
	"github.com/google/btree"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("db")

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum      = "MAPLEDB\x00" // File format identifier
	mapleVersion  = 4             // Database version (4 = ordered keys)
	defaultDegree = 32            // Default btree degree
	entryOverhead = 8             // 4 bytes each for key and value length
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements an ordered in-memory database.
//
// All entries live in a copy-on-write btree guarded by a RWMutex. Iterators
// work on O(1) clones of the tree, so they never block writers and always
// observe a consistent cut of the database.
type mapleImpl struct {
	mu     sync.RWMutex
	tree   *btree.BTreeG[internal.Entry]
	degree int
	closed atomic.Bool

	// statistics
	reads     *xsync.Counter
	writes    *xsync.Counter
	batches   *xsync.Counter
	openIters *xsync.Counter
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	Degree int // Degree of the underlying btree (0 = use default)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		Degree: defaultDegree,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.KVDB {
	return newMaple(opts)
}

func newMaple(opts *DBOptions) *mapleImpl {
	if opts == nil {
		opts = DefaultOptions()
	}
	degree := opts.Degree
	if degree < 2 {
		degree = defaultDegree
	}

	return &mapleImpl{
		tree:      internal.NewTree(degree),
		degree:    degree,
		reads:     xsync.NewCounter(),
		writes:    xsync.NewCounter(),
		batches:   xsync.NewCounter(),
		openIters: xsync.NewCounter(),
	}
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates an entry. The value is copied.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Set(key, value []byte) error {
	if maple.closed.Load() {
		return db.ErrClosed
	}

	maple.mu.Lock()
	defer maple.mu.Unlock()

	maple.tree.ReplaceOrInsert(internal.Entry{Key: string(key), Value: copyBytes(value)})
	maple.writes.Inc()
	return nil
}

// Delete removes an entry. Deleting a missing key is a no-op.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(key []byte) error {
	if maple.closed.Load() {
		return db.ErrClosed
	}

	maple.mu.Lock()
	defer maple.mu.Unlock()

	maple.tree.Delete(internal.Entry{Key: string(key)})
	maple.writes.Inc()
	return nil
}

// NewBatch returns a batch that is applied under a single write lock.
func (maple *mapleImpl) NewBatch() db.Batch {
	return &batch{db: maple}
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves a value for a key.
// The returned value is a copy of the stored data and therefore safe to use and modify.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key []byte) ([]byte, bool, error) {
	if maple.closed.Load() {
		return nil, false, db.ErrClosed
	}

	maple.mu.RLock()
	entry, ok := maple.tree.Get(internal.Entry{Key: string(key)})
	maple.mu.RUnlock()

	maple.reads.Inc()
	if !ok {
		return nil, false, nil
	}
	return copyBytes(entry.Value), true, nil
}

// NewIterator returns an iterator over a snapshot of the current state.
//
// Thread-safety: This method is thread-safe. Clone requires exclusive access to
// the tree, so the write lock is held for the (constant time) clone.
func (maple *mapleImpl) NewIterator(opts *db.IterOptions) (db.Iterator, error) {
	if maple.closed.Load() {
		return nil, db.ErrClosed
	}

	maple.mu.Lock()
	snapshot := maple.tree.Clone()
	maple.mu.Unlock()

	maple.openIters.Inc()
	return internal.NewIterator(snapshot, opts, maple.openIters.Dec), nil
}

// --------------------------------------------------------------------------
// Batches
// --------------------------------------------------------------------------

type batchOp struct {
	key    string
	value  []byte
	delete bool
}

// batch records operations and applies them in one critical section
type batch struct {
	db        *mapleImpl
	ops       []batchOp
	committed bool
	closed    bool
}

func (b *batch) Set(key, value []byte) error {
	if b.closed || b.committed {
		return db.ErrClosed
	}
	b.ops = append(b.ops, batchOp{key: string(key), value: copyBytes(value)})
	return nil
}

func (b *batch) Delete(key []byte) error {
	if b.closed || b.committed {
		return db.ErrClosed
	}
	b.ops = append(b.ops, batchOp{key: string(key), delete: true})
	return nil
}

func (b *batch) Count() int {
	return len(b.ops)
}

func (b *batch) Commit() error {
	if b.closed || b.committed {
		return db.ErrClosed
	}
	if b.db.closed.Load() {
		return db.ErrClosed
	}

	b.db.mu.Lock()
	defer b.db.mu.Unlock()

	for _, op := range b.ops {
		if op.delete {
			b.db.tree.Delete(internal.Entry{Key: op.key})
		} else {
			b.db.tree.ReplaceOrInsert(internal.Entry{Key: op.key, Value: op.value})
		}
	}

	b.committed = true
	b.db.batches.Inc()
	b.db.writes.Add(int64(len(b.ops)))
	return nil
}

func (b *batch) Close() error {
	b.closed = true
	b.ops = nil
	return nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists the database to the writer.
// The snapshot is a consistent cut: it is taken from a clone of the tree.
//
// Thread-safety: This function allows concurrent operations with all other functions.
func (maple *mapleImpl) Save(w io.Writer) error {
	if maple.closed.Load() {
		return db.ErrClosed
	}

	maple.mu.Lock()
	snapshot := maple.tree.Clone()
	maple.mu.Unlock()

	// Use a buffered writer for better performance
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	// Write file header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}

	// Write maple version
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}

	// Write total data entries count
	if err := binary.Write(bw, binary.LittleEndian, uint64(snapshot.Len())); err != nil {
		return err
	}

	// Write data entries in key order
	var err error
	snapshot.Ascend(func(e internal.Entry) bool {
		if err = binary.Write(bw, binary.LittleEndian, uint32(len(e.Key))); err != nil {
			return false
		}
		if _, err = bw.WriteString(e.Key); err != nil {
			return false
		}
		if err = binary.Write(bw, binary.LittleEndian, uint32(len(e.Value))); err != nil {
			return false
		}
		_, err = bw.Write(e.Value)
		return err == nil
	})
	if err != nil {
		return err
	}

	// Flush buffer to ensure all data is written
	return bw.Flush()
}

// Load restores a database from the reader, replacing the current content.
// Nothing is replaced if the snapshot is invalid.
func (maple *mapleImpl) Load(r io.Reader) error {
	if maple.closed.Load() {
		return db.ErrClosed
	}

	// Use a buffered reader for better performance
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return errors.Wrap(err, "reading magic number")
	}
	if string(magicBytes) != magicNum {
		return errors.New("invalid file format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != mapleVersion {
		return errors.Newf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	// Read data entries count
	var dataCount uint64
	if err := binary.Read(br, binary.LittleEndian, &dataCount); err != nil {
		return err
	}

	tree := internal.NewTree(maple.degree)
	for i := uint64(0); i < dataCount; i++ {
		var keyLen uint32
		if err := binary.Read(br, binary.LittleEndian, &keyLen); err != nil {
			return errors.Wrapf(err, "reading entry %d", i)
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(br, key); err != nil {
			return errors.Wrapf(err, "reading entry %d", i)
		}

		var valueLen uint32
		if err := binary.Read(br, binary.LittleEndian, &valueLen); err != nil {
			return errors.Wrapf(err, "reading entry %d", i)
		}
		value := make([]byte, valueLen)
		if _, err := io.ReadFull(br, value); err != nil {
			return errors.Wrapf(err, "reading entry %d", i)
		}

		tree.ReplaceOrInsert(internal.Entry{Key: string(key), Value: value})
	}

	maple.mu.Lock()
	maple.tree = tree
	maple.mu.Unlock()

	log.Infof("loaded %d entries", dataCount)
	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	maple.mu.Lock()
	snapshot := maple.tree.Clone()
	maple.mu.Unlock()

	// only sample the first entries, sizes are estimates
	histogram := util.NewSizeHistogram()
	samples := 0
	snapshot.Ascend(func(e internal.Entry) bool {
		histogram.AddSample(len(e.Key) + len(e.Value))
		samples++
		return samples < 1000
	})

	meta := &struct {
		Entries       int    `json:"entries"`
		Reads         int64  `json:"reads"`
		Writes        int64  `json:"writes"`
		Batches       int64  `json:"batches"`
		OpenIterators int64  `json:"open_iterators"`
		Info          string `json:"info"`
	}{
		Entries:       snapshot.Len(),
		Reads:         maple.reads.Value(),
		Writes:        maple.writes.Value(),
		Batches:       maple.batches.Value(),
		OpenIterators: maple.openIters.Value(),
		Info:          "SizeBytes is an estimate based on a sample of the entries.",
	}

	return db.DatabaseInfo{
		SizeBytes: histogram.EstimateTotal(snapshot.Len(), entryOverhead),
		DbType:    db.ImplMaple,
		SupportedFeatures: []db.Feature{
			db.FeatureGet, db.FeatureSet, db.FeatureDelete,
			db.FeatureBatch, db.FeatureIterate, db.FeatureReverse,
			db.FeatureSave, db.FeatureLoad,
		},
		Metadata: meta,
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureGet |
		db.FeatureSet |
		db.FeatureDelete |
		db.FeatureBatch |
		db.FeatureIterate |
		db.FeatureReverse |
		db.FeatureSave |
		db.FeatureLoad
	return supportedFeatures&feature == feature
}

// Close marks the database as closed. Open iterators keep their snapshot.
func (maple *mapleImpl) Close() error {
	maple.closed.Store(true)
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func copyBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
