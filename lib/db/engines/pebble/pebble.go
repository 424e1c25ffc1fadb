package pebble

import (
	"sync/atomic"

	"github.com/ValentinKolb/dLayer/lib/db"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("db")

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// DBOptions configures the pebble engine
type DBOptions struct {
	Dir      string // Directory holding the pebble files (ignored if InMemory)
	InMemory bool   // Use an in-memory filesystem (tests, scratch data)
	Sync     bool   // Fsync the WAL on every write and batch commit
}

// DefaultOptions returns options for a durable database in the given directory
func DefaultOptions(dir string) *DBOptions {
	return &DBOptions{
		Dir:  dir,
		Sync: true,
	}
}

// --------------------------------------------------------------------------
// Core pebble database structure
// --------------------------------------------------------------------------

type pebbleImpl struct {
	pdb    *pebble.DB
	dir    string
	wo     *pebble.WriteOptions
	closed atomic.Bool
}

// Open opens (or creates) a pebble database.
func Open(opts *DBOptions) (db.KVDB, error) {
	if opts == nil {
		return nil, errors.New("pebble: options are required")
	}

	pOpts := &pebble.Options{
		Logger: pebbleLogger{log},
	}
	dir := opts.Dir
	if opts.InMemory {
		pOpts.FS = vfs.NewMem()
		dir = ""
	} else if dir == "" {
		return nil, errors.New("pebble: a data directory is required")
	}

	pdb, err := pebble.Open(dir, pOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "pebble: open %q", dir)
	}

	wo := pebble.NoSync
	if opts.Sync {
		wo = pebble.Sync
	}

	log.Infof("opened pebble database (dir=%q, in-memory=%t, sync=%t)", dir, opts.InMemory, opts.Sync)

	return &pebbleImpl{
		pdb: pdb,
		dir: dir,
		wo:  wo,
	}, nil
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods
// --------------------------------------------------------------------------

func (p *pebbleImpl) Set(key, value []byte) error {
	if p.closed.Load() {
		return db.ErrClosed
	}
	return errors.Wrap(p.pdb.Set(key, value, p.wo), "pebble: set")
}

func (p *pebbleImpl) Delete(key []byte) error {
	if p.closed.Load() {
		return db.ErrClosed
	}
	return errors.Wrap(p.pdb.Delete(key, p.wo), "pebble: delete")
}

func (p *pebbleImpl) Get(key []byte) ([]byte, bool, error) {
	if p.closed.Load() {
		return nil, false, db.ErrClosed
	}

	value, closer, err := p.pdb.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "pebble: get")
	}
	defer closer.Close()

	// the returned slice is only valid until closer is closed
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (p *pebbleImpl) NewBatch() db.Batch {
	return &batch{b: p.pdb.NewBatch(), wo: p.wo, db: p}
}

func (p *pebbleImpl) NewIterator(opts *db.IterOptions) (db.Iterator, error) {
	if p.closed.Load() {
		return nil, db.ErrClosed
	}

	iterOpts := &pebble.IterOptions{}
	if opts != nil {
		iterOpts.LowerBound = opts.LowerBound
		iterOpts.UpperBound = opts.UpperBound
	}
	return &iterator{it: p.pdb.NewIter(iterOpts)}, nil
}

// --------------------------------------------------------------------------
// Features and Metadata
// --------------------------------------------------------------------------

// metadata is the engine specific part of GetInfo
type metadata struct {
	Dir               string `json:"dir"`
	Closed            bool   `json:"closed"`
	DiskSpaceUsage    uint64 `json:"disk_space_usage"`
	MemTableSize      uint64 `json:"memtable_size"`
	MemTableCount     int64  `json:"memtable_count"`
	WALBytesWritten   uint64 `json:"wal_bytes_written"`
	CompactionCount   int64  `json:"compaction_count"`
	ReadAmplification int    `json:"read_amplification"`
}

// GetInfo reports zero metrics once the database is closed.
func (p *pebbleImpl) GetInfo() db.DatabaseInfo {
	info := db.DatabaseInfo{
		DbType: db.ImplPebble,
		SupportedFeatures: []db.Feature{
			db.FeatureGet, db.FeatureSet, db.FeatureDelete,
			db.FeatureBatch, db.FeatureIterate, db.FeatureReverse,
			db.FeatureDurable,
		},
	}

	if p.closed.Load() {
		info.Metadata = &metadata{Dir: p.dir, Closed: true}
		return info
	}

	metrics := p.pdb.Metrics()
	info.SizeBytes = int(metrics.DiskSpaceUsage())
	info.Metadata = &metadata{
		Dir:               p.dir,
		DiskSpaceUsage:    metrics.DiskSpaceUsage(),
		MemTableSize:      metrics.MemTable.Size,
		MemTableCount:     metrics.MemTable.Count,
		WALBytesWritten:   metrics.WAL.BytesWritten,
		CompactionCount:   metrics.Compact.Count,
		ReadAmplification: metrics.ReadAmp(),
	}
	return info
}

func (p *pebbleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureGet |
		db.FeatureSet |
		db.FeatureDelete |
		db.FeatureBatch |
		db.FeatureIterate |
		db.FeatureReverse |
		db.FeatureDurable
	return supportedFeatures&feature == feature
}

// Close flushes and closes the database. All iterators must be closed first.
func (p *pebbleImpl) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	log.Infof("closing pebble database (dir=%q)", p.dir)
	return errors.Wrap(p.pdb.Close(), "pebble: close")
}

// --------------------------------------------------------------------------
// Batch
// --------------------------------------------------------------------------

type batch struct {
	b      *pebble.Batch
	wo     *pebble.WriteOptions
	db     *pebbleImpl
	closed bool
}

func (b *batch) Set(key, value []byte) error {
	if b.closed {
		return db.ErrClosed
	}
	return b.b.Set(key, value, nil)
}

func (b *batch) Delete(key []byte) error {
	if b.closed {
		return db.ErrClosed
	}
	return b.b.Delete(key, nil)
}

func (b *batch) Count() int {
	if b.closed {
		return 0
	}
	return int(b.b.Count())
}

func (b *batch) Commit() error {
	if b.closed || b.db.closed.Load() {
		return db.ErrClosed
	}
	return errors.Wrap(b.b.Commit(b.wo), "pebble: commit batch")
}

func (b *batch) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.b.Close()
}

// --------------------------------------------------------------------------
// Iterator
// --------------------------------------------------------------------------

type iterator struct {
	it *pebble.Iterator
}

func (i *iterator) First() bool { return i.it.First() }
func (i *iterator) Last() bool  { return i.it.Last() }
func (i *iterator) Next() bool  { return i.it.Next() }
func (i *iterator) Prev() bool  { return i.it.Prev() }
func (i *iterator) Valid() bool { return i.it.Valid() }

func (i *iterator) SeekGE(key []byte) bool { return i.it.SeekGE(key) }

// SeekLE has no native pebble counterpart: try an exact hit first, then fall
// back to the last key strictly below.
func (i *iterator) SeekLE(key []byte) bool {
	if i.it.SeekGE(key) && string(i.it.Key()) == string(key) {
		return true
	}
	return i.it.SeekLT(key)
}

func (i *iterator) Key() []byte {
	if !i.it.Valid() {
		return nil
	}
	return i.it.Key()
}

func (i *iterator) Value() []byte {
	if !i.it.Valid() {
		return nil
	}
	return i.it.Value()
}

func (i *iterator) Error() error {
	return i.it.Error()
}

func (i *iterator) Close() error {
	return i.it.Close()
}

// --------------------------------------------------------------------------
// Logger adapter (pebble -> dragonboat logger)
// --------------------------------------------------------------------------

type pebbleLogger struct {
	l logger.ILogger
}

func (p pebbleLogger) Infof(format string, args ...interface{}) {
	p.l.Debugf(format, args...)
}

func (p pebbleLogger) Errorf(format string, args ...interface{}) {
	p.l.Errorf(format, args...)
}

func (p pebbleLogger) Fatalf(format string, args ...interface{}) {
	p.l.Panicf(format, args...)
}
