// Package session implements layered in-memory overlays in front of a durable
// ordered key-value store.
//
// A Session records local changes (values and tombstones) on top of a parent
// Layer. Reads consult the local changes first and fall back to the parent;
// iteration merges every layer of the chain in key order. The chain ends in a
// RootAdapter which translates the Layer contract into calls on a db.KVDB.
//
// An UndoStack manages a chain of sessions indexed by revision:
//
//	stack := session.NewUndoStack(session.NewRootAdapter(database, nil))
//	rev := stack.Push()
//	_ = stack.Top().Write(session.Bytes("foo"), session.Bytes("bar"))
//	_ = stack.Commit(rev) // foo is now durable
//
// Mutations of one chain must be serialized by the caller. Concurrent readers on a
// stable chain are safe.
package session
