// Package common holds the configuration and logging setup shared by the dlayer
// command line tools.
//
// Config describes which database backs the overlay chain and how the root adapter
// batches writes. OpenDatabase turns it into a db.KVDB:
//
//	conf := &common.Config{Engine: common.EnginePebble, DataDir: "data", SyncWrites: true}
//	database, err := conf.OpenDatabase()
//
// InitLoggers installs the dragonboat logger factory with the "LEVEL | name | message"
// format for all loggers used in this module.
package common
