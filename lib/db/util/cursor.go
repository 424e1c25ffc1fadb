// Package util
//
// This file provides a positioned, bidirectional cursor over a google/btree BTreeG.
//
// google/btree only offers callback based iteration (Ascend*, Descend*). Ordered
// merge iteration needs a cursor that can be advanced one step at a time and
// re-positioned with seek operations, so the cursor remembers the current item and
// re-descends the tree from it on every step. Each step costs O(log n).
//
// A cursor never locks and never copies the tree. Callers that iterate while
// the tree may be modified should hand the cursor a snapshot obtained with
// BTreeG.Clone, which is O(1) and copy-on-write.
//
// Example usage:
//
//	snapshot := tree.Clone()
//	c := NewCursor(snapshot, less)
//	for ok := c.First(); ok; ok = c.Next() {
//	    item := c.Item()
//	    // ...
//	}
package util

import "github.com/google/btree"

// Cursor walks a btree.BTreeG in the order defined by less.
type Cursor[T any] struct {
	tree  *btree.BTreeG[T]
	less  btree.LessFunc[T]
	item  T
	valid bool
}

// NewCursor creates an unpositioned cursor. less must be the ordering the tree was built with.
func NewCursor[T any](tree *btree.BTreeG[T], less btree.LessFunc[T]) *Cursor[T] {
	return &Cursor[T]{tree: tree, less: less}
}

// land stores the visited item and stops the tree walk
func (c *Cursor[T]) land(item T) bool {
	c.item = item
	c.valid = true
	return false
}

// reset invalidates the cursor before a new positioning call
func (c *Cursor[T]) reset() {
	var zero T
	c.item = zero
	c.valid = false
}

// First positions the cursor on the smallest item.
func (c *Cursor[T]) First() bool {
	c.reset()
	c.tree.Ascend(c.land)
	return c.valid
}

// Last positions the cursor on the largest item.
func (c *Cursor[T]) Last() bool {
	c.reset()
	c.tree.Descend(c.land)
	return c.valid
}

// SeekGE positions the cursor on the first item >= pivot.
func (c *Cursor[T]) SeekGE(pivot T) bool {
	c.reset()
	c.tree.AscendGreaterOrEqual(pivot, c.land)
	return c.valid
}

// SeekLE positions the cursor on the last item <= pivot.
func (c *Cursor[T]) SeekLE(pivot T) bool {
	c.reset()
	c.tree.DescendLessOrEqual(pivot, c.land)
	return c.valid
}

// Next moves to the item directly after the current one.
// Calling Next on an invalid cursor keeps it invalid.
func (c *Cursor[T]) Next() bool {
	if !c.valid {
		return false
	}
	current := c.item
	c.reset()
	c.tree.AscendGreaterOrEqual(current, func(item T) bool {
		// skip the current item itself
		if !c.less(current, item) {
			return true
		}
		return c.land(item)
	})
	return c.valid
}

// Prev moves to the item directly before the current one.
func (c *Cursor[T]) Prev() bool {
	if !c.valid {
		return false
	}
	current := c.item
	c.reset()
	c.tree.DescendLessOrEqual(current, func(item T) bool {
		if !c.less(item, current) {
			return true
		}
		return c.land(item)
	})
	return c.valid
}

// Valid reports whether the cursor is positioned on an item.
func (c *Cursor[T]) Valid() bool {
	return c.valid
}

// Item returns the current item. The result is the zero value if the cursor is invalid.
func (c *Cursor[T]) Item() T {
	return c.item
}
