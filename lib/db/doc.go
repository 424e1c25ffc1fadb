// Package db provides a standardized interface for ordered key-value database implementations.
// It is the boundary between the overlay sessions (lib/session) and the durable storage
// engine that sits at the root of every overlay chain.
//
// The package focuses on:
//   - A unified interface for point lookups, upserts and idempotent deletes
//   - Atomic write batches that either apply completely or not at all
//   - Forward and backward ordered iteration with seek support
//   - Feature discovery through capability flags and metadata reporting
//
// Key Components:
//
//   - KVDB Interface: The core interface that all database implementations must satisfy.
//     It provides methods for basic operations (Get, Set, Delete), batched writes
//     (NewBatch), ordered iteration (NewIterator) and metadata retrieval (GetInfo).
//
//   - Batch: Collects Set and Delete operations and commits them as one atomic unit.
//     The overlay root adapter uses batches for every flush, so a failed flush never
//     leaves a partially applied commit behind.
//
//   - Iterator: A positioned cursor over the byte-lexicographically ordered key space.
//     SeekGE and SeekLE provide lower_bound semantics in both directions.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method.
//
//   - Database Information: The DatabaseInfo structure reports size estimates, the
//     implementation type and implementation-specific metadata.
//
// Related Packages:
//
// The engines/pebble package provides the durable implementation backed by CockroachDB's
// pebble LSM engine. The engines/maple package provides an in-memory ordered implementation
// with binary snapshots, useful for tests and for chains that never need durability.
//
// The testing package (github.com/ValentinKolb/dLayer/lib/db/testing) provides
// standardized tests and benchmarks for database implementations that satisfy the db.KVDB interface.
//   - RunKVDBTests: Runs a standardized test suite to validate implementations
//   - RunKVDBBenchmarks: Provides performance benchmarks for comparing implementations
package db
