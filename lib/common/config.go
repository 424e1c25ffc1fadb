package common

import (
	"fmt"
	"os"
	"strings"

	"github.com/ValentinKolb/dLayer/lib/db"
	"github.com/ValentinKolb/dLayer/lib/db/engines/maple"
	"github.com/ValentinKolb/dLayer/lib/db/engines/pebble"
	"github.com/ValentinKolb/dLayer/lib/session"
	"github.com/cockroachdb/errors"
)

// Engine selects the database behind the root adapter
type Engine string

const (
	EnginePebble Engine = "pebble"
	EngineMaple  Engine = "maple"
)

// Config holds all parameters needed to open an overlay chain.
type Config struct {
	// Engine is the backing database implementation
	Engine Engine

	// pebble parameters
	DataDir    string
	InMemory   bool
	SyncWrites bool

	// maple parameters: optional snapshot file loaded on open and written on close
	SnapshotFile string

	// root adapter parameters
	MaxBatch int

	// Logging configuration
	LogLevel string
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() *Config {
	return &Config{
		Engine:     EnginePebble,
		DataDir:    "data",
		SyncWrites: true,
		MaxBatch:   session.DefaultMaxBatch,
		LogLevel:   "info",
	}
}

// Validate checks the configuration for contradictions
func (c *Config) Validate() error {
	switch c.Engine {
	case EnginePebble:
		if c.DataDir == "" && !c.InMemory {
			return errors.New("config: pebble needs a data directory or in-memory mode")
		}
	case EngineMaple:
	default:
		return errors.Newf("config: invalid engine %q (must be pebble or maple)", c.Engine)
	}
	if c.MaxBatch <= 0 {
		return errors.Newf("config: max batch must be positive, got %d", c.MaxBatch)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "config")
	}
	return nil
}

// RootOptions converts the configuration to root adapter options
func (c *Config) RootOptions() *session.RootOptions {
	return &session.RootOptions{MaxBatch: c.MaxBatch}
}

// OpenDatabase opens the configured engine
func (c *Config) OpenDatabase() (db.KVDB, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	switch c.Engine {
	case EngineMaple:
		database := maple.NewMapleDB(nil)
		if c.SnapshotFile == "" {
			return database, nil
		}
		return openSnapshotDB(database, c.SnapshotFile)
	default:
		return pebble.Open(&pebble.DBOptions{
			Dir:      c.DataDir,
			InMemory: c.InMemory,
			Sync:     c.SyncWrites,
		})
	}
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Storage")
	addField("Engine", string(c.Engine))
	switch c.Engine {
	case EnginePebble:
		if c.InMemory {
			addField("Data Directory", "(in memory)")
		} else {
			addField("Data Directory", c.DataDir)
		}
		addField("Sync Writes", fmt.Sprintf("%t", c.SyncWrites))
	case EngineMaple:
		if c.SnapshotFile == "" {
			addField("Snapshot File", "(none)")
		} else {
			addField("Snapshot File", c.SnapshotFile)
		}
	}

	addSection("Root Adapter")
	addField("Max Batch", fmt.Sprintf("%d entries", c.MaxBatch))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Maple snapshot persistence
// --------------------------------------------------------------------------

// snapshotDB saves the wrapped database to a file when it is closed
type snapshotDB struct {
	db.KVDB
	path string
}

func openSnapshotDB(database db.KVDB, path string) (db.KVDB, error) {
	snapshotter, ok := database.(db.Snapshotter)
	if !ok {
		return nil, errors.Newf("config: engine %s does not support snapshots", database.GetInfo().DbType)
	}

	file, err := os.Open(path)
	switch {
	case os.IsNotExist(err):
		// first run, nothing to load
	case err != nil:
		return nil, errors.Wrapf(err, "config: open snapshot %s", path)
	default:
		defer file.Close()
		if err := snapshotter.Load(file); err != nil {
			return nil, errors.Wrapf(err, "config: load snapshot %s", path)
		}
	}

	return &snapshotDB{KVDB: database, path: path}, nil
}

// Close writes the snapshot to a temporary file and renames it into place
func (s *snapshotDB) Close() error {
	tmp := s.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "config: create snapshot %s", tmp)
	}

	err = s.KVDB.(db.Snapshotter).Save(file)
	err = errors.CombineErrors(err, file.Close())
	if err == nil {
		err = os.Rename(tmp, s.path)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return errors.CombineErrors(errors.Wrapf(err, "config: save snapshot %s", s.path), s.KVDB.Close())
	}
	return s.KVDB.Close()
}
