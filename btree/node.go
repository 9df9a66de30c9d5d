package btree

import (
	"lite3/utils"
	"lite3/utils/codec"
)

// Value type tags. OBJECT and ARRAY double as node types: the first byte of
// a node header is its type, so a kv_ofs pointing at an embedded node reads
// like any other tagged value.
const (
	TagNull   byte = 0
	TagBool   byte = 1
	TagInt    byte = 2
	TagFloat  byte = 3
	TagBytes  byte = 4
	TagString byte = 5
	TagObject byte = 6
	TagArray  byte = 7
)

// Node header layout, 96 bytes, 4-byte aligned:
//
// +----------+-----------+---------+-----------+--------------+
// | gen_type | hashes[7] | size_kc | kv_ofs[7] | child_ofs[8] |
// +----------+-----------+---------+-----------+--------------+
//   0..3       4..31       32..35    36..63      64..95
//
// gen_type: low 8 bits node type, high 24 bits generation counter.
// size_kc:  low 3 bits key_count, bits 6+ subtree entry count.
// child_ofs[0] == 0 marks a leaf.
const (
	NodeSize  = 96
	NodeAlign = 4

	MaxKeys     = 7
	MaxChildren = 8
	MinKeys     = 3

	// MaxHeight descent deeper than this is a corruption signal
	MaxHeight = 9

	offGenType  = 0
	offHashes   = 4
	offSizeKC   = 32
	offKVOfs    = 36
	offChildren = 64

	genMask   = 1<<24 - 1
	typeMask  = 0xff
	kcMask    = 0x7
	sizeShift = 6
)

// Node is a view of one header inside the arena. Views read through the
// arena on every access, so they survive arena growth.
type Node struct {
	a   *utils.Arena
	Off uint32
}

func (n Node) word(off uint32) uint32 {
	return codec.U32(n.a.Bytes()[n.Off+off:])
}

func (n Node) setWord(off uint32, v uint32) {
	codec.PutU32(n.a.Bytes()[n.Off+off:], v)
}

func (n Node) Type() byte {
	return byte(n.word(offGenType) & typeMask)
}

func (n Node) Gen() uint32 {
	return n.word(offGenType) >> 8
}

func (n Node) SetGen(gen uint32) {
	n.setWord(offGenType, (gen&genMask)<<8|uint32(n.Type()))
}

func (n Node) KeyCount() int {
	return int(n.word(offSizeKC) & kcMask)
}

func (n Node) SetKeyCount(kc int) {
	w := n.word(offSizeKC)
	n.setWord(offSizeKC, w&^uint32(kcMask)|uint32(kc))
}

// TreeSize is the entry count of the subtree rooted here. Maintained only
// on tree roots: offset 0 and embedded nodes.
func (n Node) TreeSize() uint32 {
	return n.word(offSizeKC) >> sizeShift
}

func (n Node) SetTreeSize(size uint32) {
	w := n.word(offSizeKC)
	n.setWord(offSizeKC, w&uint32(kcMask)|size<<sizeShift)
}

func (n Node) Hash(i int) uint32 {
	return n.word(offHashes + 4*uint32(i))
}

func (n Node) SetHash(i int, h uint32) {
	n.setWord(offHashes+4*uint32(i), h)
}

func (n Node) KVOfs(i int) uint32 {
	return n.word(offKVOfs + 4*uint32(i))
}

func (n Node) SetKVOfs(i int, ofs uint32) {
	n.setWord(offKVOfs+4*uint32(i), ofs)
}

func (n Node) Child(i int) uint32 {
	return n.word(offChildren + 4*uint32(i))
}

func (n Node) SetChild(i int, ofs uint32) {
	n.setWord(offChildren+4*uint32(i), ofs)
}

func (n Node) Leaf() bool {
	return n.Child(0) == 0
}

// Init writes a fresh header in place: gen 0, the requested type, no keys,
// all children cleared.
func (n Node) Init(typ byte) {
	buf := n.a.Bytes()[n.Off : n.Off+NodeSize]
	for i := range buf {
		buf[i] = 0
	}
	n.setWord(offGenType, uint32(typ))
}

// insertAt shifts entries [i, kc) one slot right and records h at slot i.
// The kv offset for the slot is the caller's to fill.
func (n Node) insertAt(i int, h uint32) {
	kc := n.KeyCount()
	for j := kc; j > i; j-- {
		n.SetHash(j, n.Hash(j-1))
		n.SetKVOfs(j, n.KVOfs(j-1))
	}
	n.SetHash(i, h)
	n.SetKeyCount(kc + 1)
}
