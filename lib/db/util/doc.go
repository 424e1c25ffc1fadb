// Package util provides utility components for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - cursor: A positioned, bidirectional cursor over a google/btree BTreeG, used by the
//     maple engine iterators and the overlay merge iterator
//   - statistics: A SizeHistogram for tracking data size distribution and estimating
//     the memory footprint of a database from a sample
//
// This package is particularly useful for:
//   - Database developers implementing the KVDB interface on top of btrees
//   - Monitoring systems that need to track database size and distribution metrics
package util
