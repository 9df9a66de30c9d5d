// Package lite3 implements the Lite3 buffer format: JSON-compatible data
// held in a single contiguous byte buffer organized as an in-place B-tree,
// where any field can be read or overwritten in O(log n) without unpacking
// the whole document. The buffer is the wire format — little-endian,
// offset-addressed, memcpy-portable.
//
// A Doc is owned by one goroutine at a time; concurrent calls on the same
// Doc are undefined. Independent Docs need no coordination.
package lite3

import (
	"github.com/dgryski/go-metro"
	"github.com/pkg/errors"

	"lite3/btree"
	"lite3/utils"
	"lite3/utils/codec"
	"lite3/utils/errs"
)

// Root is the node offset of the buffer root.
const Root uint32 = 0

// Doc is the handle over one lite3 buffer.
type Doc struct {
	tree *btree.Tree
	mf   closer
	ro   bool
}

type closer interface {
	Close() error
}

// New returns an empty Doc with the default initial capacity. InitObject or
// InitArray must be called before any mutation.
func New() *Doc {
	return NewWithCapacity(utils.DefaultCapacity)
}

// NewWithCapacity returns an empty Doc backed by capacity bytes.
func NewWithCapacity(capacity uint32) *Doc {
	return &Doc{tree: btree.NewTree(utils.NewArena(capacity))}
}

// FromBuffer wraps an existing buffer without copying or validating it.
// The producer is trusted; a corrupt buffer surfaces as ErrBadMessage on
// access at the earliest.
func FromBuffer(b []byte) *Doc {
	return &Doc{tree: btree.NewTree(utils.FromBytes(b))}
}

// Buffer returns a view of the used bytes: the complete wire form of the
// document. The view goes stale on the next mutation.
func (d *Doc) Buffer() []byte {
	return d.tree.Arena.Bytes()
}

// Len returns the used buffer length in bytes.
func (d *Doc) Len() uint32 {
	return d.tree.Arena.Len()
}

// Fingerprint returns a 64-bit content hash of the used bytes, cheap to
// compare across FromBuffer round trips.
func (d *Doc) Fingerprint() uint64 {
	return metro.Hash64(d.Buffer(), 0)
}

// Close releases the file mapping of a Doc returned by OpenFile. It is a
// no-op for memory-backed Docs.
func (d *Doc) Close() error {
	if d.mf == nil {
		return nil
	}
	return d.mf.Close()
}

// InitObject writes an object root at offset 0. Calling it again
// re-initializes the root in place, discarding all entries.
func (d *Doc) InitObject() error {
	return d.initRoot(btree.TagObject)
}

// InitArray writes an array root at offset 0.
func (d *Doc) InitArray() error {
	return d.initRoot(btree.TagArray)
}

func (d *Doc) initRoot(typ byte) error {
	if err := d.mutable(); err != nil {
		return err
	}
	a := d.tree.Arena
	if a.Len() == 0 {
		if err := a.EnsureSpace(btree.NodeSize); err != nil {
			return err
		}
		off := a.Alloc(btree.NodeSize)
		errs.CondPanic(off != Root, errors.New("root not at offset 0"))
		d.tree.Node(Root).Init(typ)
		return nil
	}
	if a.Len() < btree.NodeSize {
		return errors.Wrapf(errs.ErrBadMessage, "buffer of %d bytes is shorter than a root node", a.Len())
	}
	// Re-init keeps the generation moving so outstanding iterators trip.
	root := d.tree.Node(Root)
	gen := root.Gen()
	root.Init(typ)
	root.SetGen(gen + 1)
	return nil
}

// mutable rejects writes on a Doc that wraps a read-only file mapping.
func (d *Doc) mutable() error {
	if d.ro {
		return errors.Wrap(errs.ErrInvalidArgument, "document is file-backed read-only")
	}
	return nil
}

// initialized reports whether a root has been written.
func (d *Doc) initialized() bool {
	return d.tree.Arena.Len() >= btree.NodeSize
}

// checkNode validates off as a node offset of the expected type.
func (d *Doc) checkNode(off uint32, typ byte) error {
	if !d.initialized() {
		return errors.Wrap(errs.ErrInvalidArgument, "handle not initialized")
	}
	if off+btree.NodeSize > d.Len() || off%btree.NodeAlign != 0 {
		return errors.Wrapf(errs.ErrOutOfBounds, "node offset %d with %d used", off, d.Len())
	}
	if t := d.tree.Node(off).Type(); t != typ {
		return errors.Wrapf(errs.ErrInvalidArgument, "%s node where %s is required",
			Kind(t), Kind(typ))
	}
	return nil
}

// bumpGen marks one externally initiated mutation. The counter lives on the
// buffer root alone, whichever subtree the mutation lands in.
func (d *Doc) bumpGen() {
	root := d.tree.Node(Root)
	root.SetGen(root.Gen() + 1)
}

// Type returns the kind of the node at off.
func (d *Doc) Type(off uint32) (Kind, error) {
	if !d.initialized() {
		return 0, errors.Wrap(errs.ErrInvalidArgument, "handle not initialized")
	}
	if off+btree.NodeSize > d.Len() {
		return 0, errors.Wrapf(errs.ErrOutOfBounds, "node offset %d with %d used", off, d.Len())
	}
	t := d.tree.Node(off).Type()
	if t != btree.TagObject && t != btree.TagArray {
		return 0, errors.Wrapf(errs.ErrBadMessage, "invalid node type %d", t)
	}
	return Kind(t), nil
}

func u32(b []byte) uint32 {
	return codec.U32(b)
}
