package btree

import (
	"lite3/utils"
	"lite3/utils/errs"

	"github.com/pkg/errors"
)

// Tree is the in-buffer B-tree engine. It orders 32-bit key hashes inside
// the node headers embedded in the arena; payload bytes are the caller's
// business. A tree is rooted at any node offset — offset 0 for the buffer
// root, an embedded node's offset for a nested object or array.
type Tree struct {
	Arena *utils.Arena
}

func NewTree(a *utils.Arena) *Tree {
	return &Tree{Arena: a}
}

// Node returns a view of the header at off.
func (t *Tree) Node(off uint32) Node {
	return Node{a: t.Arena, Off: off}
}

// AllocNode appends an aligned, zeroed node at the buffer tail.
func (t *Tree) AllocNode(typ byte) Node {
	off := t.Arena.AllocAligned(NodeSize, NodeAlign)
	n := t.Node(off)
	n.Init(typ)
	return n
}

// scan returns the first position i in [0, kc) with hashes[i] >= h.
func (n Node) scan(h uint32) int {
	kc := n.KeyCount()
	i := 0
	for i < kc && n.Hash(i) < h {
		i++
	}
	return i
}

// Find descends from root looking for h. ok reports whether the hash is
// present; when it is, n and i locate the entry. Descent deeper than
// MaxHeight means the buffer is corrupt.
func (t *Tree) Find(root uint32, h uint32) (n Node, i int, ok bool, err error) {
	n = t.Node(root)
	for depth := 0; depth < MaxHeight; depth++ {
		i = n.scan(h)
		if i < n.KeyCount() && n.Hash(i) == h {
			return n, i, true, nil
		}
		if n.Leaf() {
			return n, i, false, nil
		}
		n = t.Node(n.Child(i))
	}
	return Node{}, 0, false, errors.Wrap(errs.ErrBadMessage, "tree height exceeded")
}

// Insert walks top-down with pre-emptive splits: a full node is split
// before descending past it, so no parent is ever full when a child splits.
// existed reports whether h was already present; for a new entry the slot's
// kv offset is left for the caller, who also maintains the root's subtree
// size. The caller must have reserved space for the worst-case number of
// splits before calling.
func (t *Tree) Insert(root uint32, h uint32) (n Node, i int, existed bool, err error) {
	n = t.Node(root)
	if n.KeyCount() == MaxKeys {
		t.splitRoot(root)
		n = t.Node(root)
	}
	for depth := 0; depth < MaxHeight; depth++ {
		i = n.scan(h)
		if i < n.KeyCount() && n.Hash(i) == h {
			return n, i, true, nil
		}
		if n.Leaf() {
			n.insertAt(i, h)
			return n, i, false, nil
		}
		child := t.Node(n.Child(i))
		if child.KeyCount() == MaxKeys {
			t.splitChild(n, i)
			// The median moved up to slot i; re-aim from the new separator.
			if n.Hash(i) == h {
				return n, i, true, nil
			}
			if h > n.Hash(i) {
				i++
			}
			child = t.Node(n.Child(i))
		}
		n = child
	}
	return Node{}, 0, false, errors.Wrap(errs.ErrBadMessage, "tree height exceeded")
}

// Height walks the leftmost spine and returns the number of levels.
func (t *Tree) Height(root uint32) (int, error) {
	n := t.Node(root)
	for depth := 1; depth <= MaxHeight; depth++ {
		if n.Leaf() {
			return depth, nil
		}
		n = t.Node(n.Child(0))
	}
	return 0, errors.Wrap(errs.ErrBadMessage, "tree height exceeded")
}
