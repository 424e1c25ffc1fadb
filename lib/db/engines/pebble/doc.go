// Package pebble implements the durable db.KVDB on top of CockroachDB's pebble
// LSM engine. It is the natural root of an overlay chain: every commit that
// reaches the root adapter ends up here as one atomic pebble batch.
//
// The package focuses on:
//   - Durable writes, optionally fsynced on every commit (DBOptions.Sync)
//   - Atomic batches mapped one to one onto pebble batches
//   - Ordered iteration with bounds; SeekLE is composed from SeekGE and SeekLT
//   - An in-memory mode (vfs.NewMem) for tests
//
// Pebble's own log output is routed through the dragonboat logger registered
// under the name "db", so engine messages share the application's format.
package pebble
