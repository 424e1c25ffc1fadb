// Package maple implements an ordered in-memory key-value database (KVDB).
// It provides a complete implementation of the db.KVDB interface plus the
// optional db.Snapshotter interface.
//
// The package focuses on:
//   - Byte-lexicographically ordered keys with forward and backward iteration
//   - Atomic batches applied inside a single critical section
//   - Consistent, non-blocking iterators and snapshots via copy-on-write clones
//   - Persistent snapshots with a compact binary encoding
//
// Key Components:
//
//   - mapleImpl: The central database structure implementing db.KVDB. All entries
//     live in a google/btree BTreeG guarded by a RWMutex. Point reads take the read
//     lock, writes and batches take the write lock.
//
//   - Entry: A key-value pair. Keys are stored as strings so they are immutable
//     and compare byte-lexicographically without extra work.
//
//   - Iterator: A bounded cursor over a clone of the tree. Cloning a btree is O(1)
//     and copy-on-write, so an iterator observes a consistent cut of the database
//     no matter what writes happen after it was created.
//
// Persistence Format: The database uses a compact binary format with the
// following structure:
//  1. Magic number "MAPLEDB\x00" to identify the file format
//  2. Version number (currently 4)
//  3. Number of entries
//  4. For each entry in key order: key length, key bytes, value length, value bytes
//
// Statistics: GetInfo reports a size estimate based on a sample of the entries
// together with read/write/batch counters kept in xsync striped counters.
//
// The maple package is designed to serve as the root of overlay chains that do
// not need durability (tests, scratch sessions) and as a reference implementation
// for the db testing suite.
package maple
