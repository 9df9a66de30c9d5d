package lite3

import (
	"math"

	"github.com/pkg/errors"

	"lite3/btree"
	"lite3/utils/codec"
	"lite3/utils/errs"
)

// splitReserve covers the worst-case node allocations of one insert: a
// root split pair plus one sibling per level of the deepest legal descent,
// each with alignment slack. Reserving before the first write keeps
// partial writes impossible; the arena only grows capacity, never used, so
// over-reserving costs nothing.
const splitReserve = (btree.MaxHeight + 2) * (btree.NodeSize + btree.NodeAlign)

func (d *Doc) reserve(payload uint32) error {
	return d.tree.Arena.EnsureSpace(payload + splitReserve)
}

// SetNull sets key in the object at off to null.
//
// Keys are identified by their 32-bit DJB2 hash alone; two keys hashing
// equal are the same entry and the later write wins. This holds for every
// setter.
func (d *Doc) SetNull(off uint32, key string) error {
	return d.set(off, key, btree.TagNull, nil)
}

func (d *Doc) SetBool(off uint32, key string, v bool) error {
	data := []byte{0}
	if v {
		data[0] = 1
	}
	return d.set(off, key, btree.TagBool, data)
}

func (d *Doc) SetInt(off uint32, key string, v int64) error {
	var data [8]byte
	codec.PutI64(data[:], v)
	return d.set(off, key, btree.TagInt, data[:])
}

func (d *Doc) SetFloat(off uint32, key string, v float64) error {
	var data [8]byte
	codec.PutF64(data[:], v)
	return d.set(off, key, btree.TagFloat, data[:])
}

func (d *Doc) SetString(off uint32, key string, v string) error {
	return d.set(off, key, btree.TagString, encodeString(v))
}

func (d *Doc) SetBytes(off uint32, key string, v []byte) error {
	data := make([]byte, scalarLenSize+len(v))
	codec.PutU32(data, uint32(len(v)))
	copy(data[scalarLenSize:], v)
	return d.set(off, key, btree.TagBytes, data)
}

// encodeString lays out a STRING value body: length including the trailing
// NUL, UTF-8 bytes, NUL.
func encodeString(v string) []byte {
	data := make([]byte, scalarLenSize+len(v)+1)
	codec.PutU32(data, uint32(len(v))+1)
	copy(data[scalarLenSize:], v)
	return data
}

func (d *Doc) set(off uint32, key string, tag byte, data []byte) error {
	if err := d.mutable(); err != nil {
		return err
	}
	if err := d.checkNode(off, btree.TagObject); err != nil {
		return err
	}
	d.bumpGen()
	return d.setScalar(off, key, tag, data)
}

// SetObject sets key to a fresh empty object and returns its node offset.
// If the key already holds an object or array, the embedded node is
// re-initialized in place and its prior contents discarded.
func (d *Doc) SetObject(off uint32, key string) (uint32, error) {
	return d.setNode(off, key, btree.TagObject)
}

// SetArray sets key to a fresh empty array and returns its node offset.
func (d *Doc) SetArray(off uint32, key string) (uint32, error) {
	return d.setNode(off, key, btree.TagArray)
}

func (d *Doc) setNode(off uint32, key string, typ byte) (uint32, error) {
	if err := d.mutable(); err != nil {
		return 0, err
	}
	if err := d.checkNode(off, btree.TagObject); err != nil {
		return 0, err
	}
	d.bumpGen()
	return d.setNodeEntry(off, key, typ)
}

// setScalar is the unbumped write path shared with the generic setters.
func (d *Doc) setScalar(off uint32, key string, tag byte, data []byte) error {
	if err := d.reserve(keyPayloadWorst(key, uint32(len(data)))); err != nil {
		return err
	}
	h := codec.HashString(key)
	n, i, existed, err := d.tree.Insert(off, h)
	if err != nil {
		return err
	}
	if !existed {
		n.SetKVOfs(i, d.appendKeyScalar(key, tag, data))
		bumpTreeSize(d.tree.Node(off))
		return nil
	}
	return d.overwriteScalar(n, i, tag, data)
}

// overwriteScalar writes tag+data over an existing entry's value when it
// fits the old slot, and repoints kv_ofs at a fresh payload otherwise. The
// superseded bytes stay in the buffer as dead space.
func (d *Doc) overwriteScalar(n btree.Node, i int, tag byte, data []byte) error {
	voff, err := d.objectValueOffset(n.KVOfs(i))
	if err != nil {
		return err
	}
	oldTag, err := d.tagAt(voff)
	if err != nil {
		return err
	}
	buf := d.Buffer()
	oldSize, err := valueSize(oldTag, buf[voff+1:])
	if err != nil {
		return err
	}
	if uint32(len(data)) <= oldSize {
		buf[voff] = tag
		copy(buf[voff+1:], data)
		return nil
	}
	key, err := d.entryKey(n.KVOfs(i))
	if err != nil {
		return err
	}
	n.SetKVOfs(i, d.appendKeyScalar(key, tag, data))
	return nil
}

func (d *Doc) setNodeEntry(off uint32, key string, typ byte) (uint32, error) {
	if err := d.reserve(keyPayloadWorst(key, btree.NodeSize) + btree.NodeAlign); err != nil {
		return 0, err
	}
	h := codec.HashString(key)
	n, i, existed, err := d.tree.Insert(off, h)
	if err != nil {
		return 0, err
	}
	if !existed {
		kv, nodeOff := d.appendKeyNode(key, typ)
		n.SetKVOfs(i, kv)
		bumpTreeSize(d.tree.Node(off))
		return nodeOff, nil
	}
	voff, err := d.objectValueOffset(n.KVOfs(i))
	if err != nil {
		return 0, err
	}
	oldTag, err := d.tagAt(voff)
	if err != nil {
		return 0, err
	}
	if oldTag == btree.TagObject || oldTag == btree.TagArray {
		// In-place clear: the embedded node is re-initialized where it sits.
		d.tree.Node(voff).Init(typ)
		return voff, nil
	}
	kv, nodeOff := d.appendKeyNode(key, typ)
	n.SetKVOfs(i, kv)
	return nodeOff, nil
}

// AppendNull appends null at the next index of the array at off.
func (d *Doc) AppendNull(off uint32) error {
	return d.append(off, btree.TagNull, nil)
}

func (d *Doc) AppendBool(off uint32, v bool) error {
	data := []byte{0}
	if v {
		data[0] = 1
	}
	return d.append(off, btree.TagBool, data)
}

func (d *Doc) AppendInt(off uint32, v int64) error {
	var data [8]byte
	codec.PutI64(data[:], v)
	return d.append(off, btree.TagInt, data[:])
}

func (d *Doc) AppendFloat(off uint32, v float64) error {
	var data [8]byte
	codec.PutF64(data[:], v)
	return d.append(off, btree.TagFloat, data[:])
}

func (d *Doc) AppendString(off uint32, v string) error {
	return d.append(off, btree.TagString, encodeString(v))
}

func (d *Doc) AppendBytes(off uint32, v []byte) error {
	data := make([]byte, scalarLenSize+len(v))
	codec.PutU32(data, uint32(len(v)))
	copy(data[scalarLenSize:], v)
	return d.append(off, btree.TagBytes, data)
}

// AppendObject appends a fresh empty object and returns its node offset.
func (d *Doc) AppendObject(off uint32) (uint32, error) {
	return d.appendNode(off, btree.TagObject)
}

// AppendArray appends a fresh empty array and returns its node offset.
func (d *Doc) AppendArray(off uint32) (uint32, error) {
	return d.appendNode(off, btree.TagArray)
}

func (d *Doc) append(off uint32, tag byte, data []byte) error {
	if err := d.mutable(); err != nil {
		return err
	}
	if err := d.checkNode(off, btree.TagArray); err != nil {
		return err
	}
	d.bumpGen()
	return d.appendScalarEntry(off, tag, data)
}

func (d *Doc) appendNode(off uint32, typ byte) (uint32, error) {
	if err := d.mutable(); err != nil {
		return 0, err
	}
	if err := d.checkNode(off, btree.TagArray); err != nil {
		return 0, err
	}
	d.bumpGen()
	return d.appendNodeEntry(off, typ)
}

// appendScalarEntry inserts at index size(array): arrays are dense
// integer-keyed trees whose hash is the element index.
func (d *Doc) appendScalarEntry(off uint32, tag byte, data []byte) error {
	if err := d.reserve(1 + uint32(len(data))); err != nil {
		return err
	}
	idx := d.tree.Node(off).TreeSize()
	n, i, existed, err := d.tree.Insert(off, idx)
	if err != nil {
		return err
	}
	errs.CondPanic(existed, errors.Errorf("array index %d already present", idx))
	n.SetKVOfs(i, d.appendValuePayload(tag, data))
	d.tree.Node(off).SetTreeSize(idx + 1)
	return nil
}

func (d *Doc) appendNodeEntry(off uint32, typ byte) (uint32, error) {
	if err := d.reserve(btree.NodeSize + btree.NodeAlign); err != nil {
		return 0, err
	}
	idx := d.tree.Node(off).TreeSize()
	n, i, existed, err := d.tree.Insert(off, idx)
	if err != nil {
		return 0, err
	}
	errs.CondPanic(existed, errors.Errorf("array index %d already present", idx))
	node := d.tree.AllocNode(typ)
	n.SetKVOfs(i, node.Off)
	d.tree.Node(off).SetTreeSize(idx + 1)
	return node.Off, nil
}

// appendKeyScalar writes key_tag | key | NUL | type_tag | data at the tail
// and returns its offset.
func (d *Doc) appendKeyScalar(key string, tag byte, data []byte) uint32 {
	a := d.tree.Arena
	klen := uint32(len(key)) + 1
	ts := uint32(codec.KeyTagSize(int(klen)))
	kv := a.Alloc(ts + klen + 1 + uint32(len(data)))
	buf := a.Bytes()
	codec.EncodeKeyTag(buf[kv:], int(klen))
	copy(buf[kv+ts:], key)
	buf[kv+ts+klen-1] = 0
	buf[kv+ts+klen] = tag
	copy(buf[kv+ts+klen+1:], data)
	return kv
}

// appendKeyNode writes a key followed by a fresh embedded node. The
// payload start is chosen so the node lands 4-byte aligned at the value
// position the reader computes; pad bytes ahead of kv_ofs are dead.
func (d *Doc) appendKeyNode(key string, typ byte) (kv uint32, nodeOff uint32) {
	a := d.tree.Arena
	klen := uint32(len(key)) + 1
	ts := uint32(codec.KeyTagSize(int(klen)))
	head := ts + klen
	pad := codec.AlignOffset(a.Len()+head, btree.NodeAlign) - (a.Len() + head)
	base := a.Alloc(pad + head + btree.NodeSize)
	kv = base + pad
	nodeOff = kv + head

	buf := a.Bytes()
	codec.EncodeKeyTag(buf[kv:], int(klen))
	copy(buf[kv+ts:], key)
	buf[kv+ts+klen-1] = 0
	d.tree.Node(nodeOff).Init(typ)
	return kv, nodeOff
}

// appendValuePayload writes type_tag | data with no key bytes.
func (d *Doc) appendValuePayload(tag byte, data []byte) uint32 {
	a := d.tree.Arena
	kv := a.Alloc(1 + uint32(len(data)))
	buf := a.Bytes()
	buf[kv] = tag
	copy(buf[kv+1:], data)
	return kv
}

func keyPayloadWorst(key string, dataLen uint32) uint32 {
	klen := uint32(len(key)) + 1
	return uint32(codec.KeyTagSize(int(klen))) + klen + 1 + dataLen
}

func bumpTreeSize(root btree.Node) {
	root.SetTreeSize(root.TreeSize() + 1)
}

// Set dispatches on the runtime type of v: nil, bool, any Go integer,
// float32/float64, string, []byte, []interface{} (set as a nested array),
// map[string]interface{} (set as a nested object), or a scalar Value.
func (d *Doc) Set(off uint32, key string, v interface{}) error {
	if err := d.mutable(); err != nil {
		return err
	}
	if err := d.checkNode(off, btree.TagObject); err != nil {
		return err
	}
	d.bumpGen()
	return d.setAny(off, key, v)
}

// Append dispatches like Set into the array at off.
func (d *Doc) Append(off uint32, v interface{}) error {
	if err := d.mutable(); err != nil {
		return err
	}
	if err := d.checkNode(off, btree.TagArray); err != nil {
		return err
	}
	d.bumpGen()
	return d.appendAny(off, v)
}

func (d *Doc) setAny(off uint32, key string, v interface{}) error {
	tag, data, err := scalarPayload(v)
	if err == nil {
		return d.setScalar(off, key, tag, data)
	}
	switch x := v.(type) {
	case []interface{}:
		arr, err := d.setNodeEntry(off, key, btree.TagArray)
		if err != nil {
			return err
		}
		for _, e := range x {
			if err := d.appendAny(arr, e); err != nil {
				return err
			}
		}
		return nil
	case map[string]interface{}:
		obj, err := d.setNodeEntry(off, key, btree.TagObject)
		if err != nil {
			return err
		}
		for k, e := range x {
			if err := d.setAny(obj, k, e); err != nil {
				return err
			}
		}
		return nil
	}
	return err
}

func (d *Doc) appendAny(off uint32, v interface{}) error {
	tag, data, err := scalarPayload(v)
	if err == nil {
		return d.appendScalarEntry(off, tag, data)
	}
	switch x := v.(type) {
	case []interface{}:
		arr, err := d.appendNodeEntry(off, btree.TagArray)
		if err != nil {
			return err
		}
		for _, e := range x {
			if err := d.appendAny(arr, e); err != nil {
				return err
			}
		}
		return nil
	case map[string]interface{}:
		obj, err := d.appendNodeEntry(off, btree.TagObject)
		if err != nil {
			return err
		}
		for k, e := range x {
			if err := d.setAny(obj, k, e); err != nil {
				return err
			}
		}
		return nil
	}
	return err
}

// scalarPayload encodes a runtime scalar into its wire body.
func scalarPayload(v interface{}) (byte, []byte, error) {
	switch x := v.(type) {
	case nil:
		return btree.TagNull, nil, nil
	case bool:
		data := []byte{0}
		if x {
			data[0] = 1
		}
		return btree.TagBool, data, nil
	case int:
		return intPayload(int64(x))
	case int8:
		return intPayload(int64(x))
	case int16:
		return intPayload(int64(x))
	case int32:
		return intPayload(int64(x))
	case int64:
		return intPayload(x)
	case uint:
		return uintPayload(uint64(x))
	case uint8:
		return intPayload(int64(x))
	case uint16:
		return intPayload(int64(x))
	case uint32:
		return intPayload(int64(x))
	case uint64:
		return uintPayload(x)
	case float32:
		return floatPayload(float64(x))
	case float64:
		return floatPayload(x)
	case string:
		return btree.TagString, encodeString(x), nil
	case []byte:
		data := make([]byte, scalarLenSize+len(x))
		codec.PutU32(data, uint32(len(x)))
		copy(data[scalarLenSize:], x)
		return btree.TagBytes, data, nil
	case Value:
		return valuePayload(x)
	}
	return 0, nil, errors.Wrapf(errs.ErrInvalidArgument, "unsupported runtime type %T", v)
}

func intPayload(v int64) (byte, []byte, error) {
	data := make([]byte, 8)
	codec.PutI64(data, v)
	return btree.TagInt, data, nil
}

func uintPayload(v uint64) (byte, []byte, error) {
	if v > math.MaxInt64 {
		return 0, nil, errors.Wrapf(errs.ErrInvalidArgument, "uint64 %d overflows i64", v)
	}
	return intPayload(int64(v))
}

func floatPayload(v float64) (byte, []byte, error) {
	data := make([]byte, 8)
	codec.PutF64(data, v)
	return btree.TagFloat, data, nil
}

func valuePayload(v Value) (byte, []byte, error) {
	switch v.Kind() {
	case Null:
		return btree.TagNull, nil, nil
	case Bool:
		data := []byte{0}
		if v.Bool() {
			data[0] = 1
		}
		return btree.TagBool, data, nil
	case Int:
		return intPayload(v.Int())
	case Float:
		return floatPayload(v.f)
	case String:
		return btree.TagString, encodeString(v.Str()), nil
	case Bytes:
		data := make([]byte, scalarLenSize+len(v.raw))
		codec.PutU32(data, uint32(len(v.raw)))
		copy(data[scalarLenSize:], v.raw)
		return btree.TagBytes, data, nil
	}
	return 0, nil, errors.Wrapf(errs.ErrInvalidArgument, "cannot copy a nested %s value", v.Kind())
}
