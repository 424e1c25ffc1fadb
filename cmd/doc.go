// Package cmd implements the command-line interface of dLayer. It provides a
// hierarchical command structure for working with overlay chains on top of a
// pebble or maple database.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value operations, undo stack scripts, the demo and the perf tool
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dlayer -help for a list of all commands.
package cmd
