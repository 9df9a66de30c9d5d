package btree

// A full node splits around its median, slot 3: three lower entries stay,
// the median moves to the parent, three upper entries and the rightmost
// child move to a fresh sibling at the buffer tail.
const medianIdx = 3

// splitChild splits the full child at parent slot pi. The parent is not
// full (pre-emptive splitting guarantees it). The median lands at parent
// slot pi with the sibling installed at child_ofs[pi+1].
func (t *Tree) splitChild(parent Node, pi int) {
	child := t.Node(parent.Child(pi))
	sibling := t.AllocNode(child.Type())
	// Allocation may have grown the arena; re-take the views.
	parent = t.Node(parent.Off)
	child = t.Node(child.Off)

	moveUpperHalf(child, sibling)

	kc := parent.KeyCount()
	for j := kc; j > pi; j-- {
		parent.SetHash(j, parent.Hash(j-1))
		parent.SetKVOfs(j, parent.KVOfs(j-1))
	}
	for j := kc + 1; j > pi+1; j-- {
		parent.SetChild(j, parent.Child(j-1))
	}
	parent.SetHash(pi, child.Hash(medianIdx))
	parent.SetKVOfs(pi, child.KVOfs(medianIdx))
	parent.SetChild(pi+1, sibling.Off)
	parent.SetKeyCount(kc + 1)

	child.SetKeyCount(MinKeys)
}

// splitRoot splits a full tree root without moving it: the root's header is
// copied out as the new left child, a sibling takes the upper half, and the
// root is rewritten in place around the median. Generation and subtree size
// survive the rewrite.
func (t *Tree) splitRoot(root uint32) {
	left := t.AllocNode(0)
	sibling := t.AllocNode(0)
	n := t.Node(root)

	buf := t.Arena.Bytes()
	copy(buf[left.Off:left.Off+NodeSize], buf[root:root+NodeSize])

	moveUpperHalf(left, sibling)

	gen := n.Gen()
	size := n.TreeSize()
	typ := n.Type()

	// Interior nodes carry neither generation nor subtree size.
	left.setWord(offGenType, uint32(typ))
	left.setWord(offSizeKC, MinKeys)
	sibling.setWord(offGenType, uint32(typ))
	medianHash := left.Hash(medianIdx)
	medianKV := left.KVOfs(medianIdx)

	n.Init(typ)
	n.SetGen(gen)
	n.SetTreeSize(size)
	n.SetHash(0, medianHash)
	n.SetKVOfs(0, medianKV)
	n.SetChild(0, left.Off)
	n.SetChild(1, sibling.Off)
	n.SetKeyCount(1)
}

// moveUpperHalf copies entries [4, 7) and children [4, 8) of a full node
// into an empty sibling of the same type. The donor's key count is the
// caller's to cut.
func moveUpperHalf(full Node, sibling Node) {
	for j := 0; j < MinKeys; j++ {
		sibling.SetHash(j, full.Hash(medianIdx+1+j))
		sibling.SetKVOfs(j, full.KVOfs(medianIdx+1+j))
	}
	for j := 0; j <= MinKeys; j++ {
		sibling.SetChild(j, full.Child(medianIdx+1+j))
	}
	sibling.SetKeyCount(MinKeys)
}
