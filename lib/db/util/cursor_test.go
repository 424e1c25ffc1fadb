package util

import (
	"testing"

	"github.com/google/btree"
)

func intLess(a, b int) bool { return a < b }

func newIntTree(values ...int) *btree.BTreeG[int] {
	tree := btree.NewG[int](4, intLess)
	for _, v := range values {
		tree.ReplaceOrInsert(v)
	}
	return tree
}

// TestCursorForward walks the whole tree in ascending order
func TestCursorForward(t *testing.T) {
	c := NewCursor(newIntTree(5, 1, 3, 9, 7), intLess)

	var got []int
	for ok := c.First(); ok; ok = c.Next() {
		got = append(got, c.Item())
	}

	want := []int{1, 3, 5, 7, 9}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}

	if c.Valid() {
		t.Error("Cursor should be invalid after walking past the last item")
	}
	if c.Next() {
		t.Error("Next on an exhausted cursor should stay invalid")
	}
}

// TestCursorBackward walks the whole tree in descending order
func TestCursorBackward(t *testing.T) {
	c := NewCursor(newIntTree(5, 1, 3, 9, 7), intLess)

	var got []int
	for ok := c.Last(); ok; ok = c.Prev() {
		got = append(got, c.Item())
	}

	want := []int{9, 7, 5, 3, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}
}

// TestCursorSeek checks lower_bound semantics in both directions
func TestCursorSeek(t *testing.T) {
	c := NewCursor(newIntTree(10, 20, 30), intLess)

	if !c.SeekGE(20) || c.Item() != 20 {
		t.Errorf("SeekGE(20) should land on 20, got %d", c.Item())
	}
	if !c.SeekGE(21) || c.Item() != 30 {
		t.Errorf("SeekGE(21) should land on 30, got %d", c.Item())
	}
	if c.SeekGE(31) {
		t.Errorf("SeekGE(31) should be invalid")
	}
	if !c.SeekLE(29) || c.Item() != 20 {
		t.Errorf("SeekLE(29) should land on 20, got %d", c.Item())
	}
	if c.SeekLE(9) {
		t.Errorf("SeekLE(9) should be invalid")
	}
}

// TestCursorSnapshot verifies that a cursor over a clone ignores later writes
func TestCursorSnapshot(t *testing.T) {
	tree := newIntTree(1, 2, 3)
	c := NewCursor(tree.Clone(), intLess)

	tree.ReplaceOrInsert(4)
	tree.Delete(2)

	count := 0
	for ok := c.First(); ok; ok = c.Next() {
		count++
	}
	if count != 3 {
		t.Errorf("Snapshot should still hold 3 items, got %d", count)
	}
}

// TestCursorEmpty verifies behaviour on an empty tree
func TestCursorEmpty(t *testing.T) {
	c := NewCursor(newIntTree(), intLess)
	if c.First() || c.Last() || c.Valid() {
		t.Error("Cursor over an empty tree should never be valid")
	}
	if c.Item() != 0 {
		t.Errorf("Item on an invalid cursor should be the zero value, got %d", c.Item())
	}
}
