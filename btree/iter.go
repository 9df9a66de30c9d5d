package btree

import (
	"lite3/utils/errs"

	"github.com/pkg/errors"
)

// Item is one entry yielded by an in-order walk: the hash and the offset of
// its key/value payload. For array trees the hash is the element index.
type Item struct {
	Hash  uint32
	KVOfs uint32
}

type iterFrame struct {
	off  uint32
	slot int
}

// Iterator walks a subtree in ascending hash order with an explicit stack.
// The generation of the buffer root is snapshotted at Rewind; any later
// change of that generation invalidates the iterator, which then fails fast
// instead of yielding stale entries. Tree.Insert does not move the
// generation itself; the caller bumps it once per mutation.
type Iterator struct {
	t     *Tree
	root  uint32
	gen   uint32
	stack []iterFrame
	err   error
}

// NewIterator returns an iterator over the tree rooted at root, positioned
// at the first entry.
func (t *Tree) NewIterator(root uint32) *Iterator {
	it := &Iterator{t: t, root: root}
	it.Rewind()
	return it
}

func (it *Iterator) Rewind() {
	it.err = nil
	it.gen = it.t.Node(0).Gen()
	it.stack = it.stack[:0]
	it.descendLeft(it.root)
	it.popExhausted()
}

// descendLeft pushes the path from off down its child_ofs[0] spine.
func (it *Iterator) descendLeft(off uint32) {
	for {
		if len(it.stack) > MaxHeight {
			it.err = errors.Wrap(errs.ErrBadMessage, "tree height exceeded")
			it.stack = it.stack[:0]
			return
		}
		n := it.t.Node(off)
		it.stack = append(it.stack, iterFrame{off: off})
		if n.Leaf() {
			return
		}
		off = n.Child(0)
	}
}

// popExhausted drops frames whose entries are spent.
func (it *Iterator) popExhausted() {
	for len(it.stack) > 0 {
		f := it.stack[len(it.stack)-1]
		if f.slot < it.t.Node(f.off).KeyCount() {
			return
		}
		it.stack = it.stack[:len(it.stack)-1]
	}
}

func (it *Iterator) Valid() bool {
	return it.err == nil && len(it.stack) > 0
}

// Item returns the entry at the current position.
func (it *Iterator) Item() Item {
	f := it.stack[len(it.stack)-1]
	n := it.t.Node(f.off)
	return Item{Hash: n.Hash(f.slot), KVOfs: n.KVOfs(f.slot)}
}

// Next advances in order: right subtree of the current slot first, then the
// next slot, unwinding exhausted frames.
func (it *Iterator) Next() {
	if !it.Valid() {
		return
	}
	if it.t.Node(0).Gen() != it.gen {
		it.err = errors.Wrap(errs.ErrInvalidArgument, "iterator invalidated by mutation")
		it.stack = it.stack[:0]
		return
	}
	top := len(it.stack) - 1
	f := &it.stack[top]
	f.slot++
	n := it.t.Node(f.off)
	if !n.Leaf() {
		it.descendLeft(n.Child(f.slot))
	}
	it.popExhausted()
}

// Err reports a fence trip or corruption seen while iterating.
func (it *Iterator) Err() error {
	return it.err
}
