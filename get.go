package lite3

import (
	"github.com/pkg/errors"

	"lite3/btree"
	"lite3/utils/codec"
	"lite3/utils/errs"
)

// Get returns the value stored under key in the object at off. A missing
// key is ErrKeyNotFound.
func (d *Doc) Get(off uint32, key string) (Value, error) {
	if err := d.checkNode(off, btree.TagObject); err != nil {
		return Value{}, err
	}
	n, i, ok, err := d.tree.Find(off, codec.HashString(key))
	if err != nil {
		return Value{}, err
	}
	if !ok {
		return Value{}, errors.Wrapf(errs.ErrKeyNotFound, "key %q", key)
	}
	voff, err := d.objectValueOffset(n.KVOfs(i))
	if err != nil {
		return Value{}, err
	}
	return d.decodeValue(voff)
}

// GetAt returns the element at index in the array at off.
func (d *Doc) GetAt(off uint32, index uint32) (Value, error) {
	if err := d.checkNode(off, btree.TagArray); err != nil {
		return Value{}, err
	}
	n, i, ok, err := d.tree.Find(off, index)
	if err != nil {
		return Value{}, err
	}
	if !ok {
		return Value{}, errors.Wrapf(errs.ErrKeyNotFound, "index %d", index)
	}
	return d.decodeValue(n.KVOfs(i))
}

// Has reports whether key is present in the object at off.
func (d *Doc) Has(off uint32, key string) bool {
	if err := d.checkNode(off, btree.TagObject); err != nil {
		return false
	}
	_, _, ok, err := d.tree.Find(off, codec.HashString(key))
	return err == nil && ok
}

// Size returns the entry count of the object or array at off.
func (d *Doc) Size(off uint32) (uint32, error) {
	if _, err := d.Type(off); err != nil {
		return 0, err
	}
	return d.tree.Node(off).TreeSize(), nil
}

// Keys returns the keys of the object at off in ascending hash order, not
// insertion order.
func (d *Doc) Keys(off uint32) ([]string, error) {
	if err := d.checkNode(off, btree.TagObject); err != nil {
		return nil, err
	}
	var keys []string
	for it := d.tree.NewIterator(off); it.Valid(); it.Next() {
		key, err := d.entryKey(it.Item().KVOfs)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Values returns the values of the object or array at off in ascending
// hash order.
func (d *Doc) Values(off uint32) ([]Value, error) {
	entries, err := d.Entries(off)
	if err != nil {
		return nil, err
	}
	values := make([]Value, len(entries))
	for i, e := range entries {
		values[i] = e.Value
	}
	return values, nil
}

// Entries enumerates the object or array at off in ascending hash order.
func (d *Doc) Entries(off uint32) ([]Entry, error) {
	it, err := d.NewIterator(off)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for ; it.Valid(); it.Next() {
		e, err := it.Item()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Iterator enumerates one object or array. It snapshots the buffer
// generation at construction; any mutation of the document fails further
// iteration instead of yielding stale entries.
type Iterator struct {
	d         *Doc
	container byte
	it        *btree.Iterator
	err       error
}

// NewIterator returns an iterator over the object or array at off,
// positioned at the first entry.
func (d *Doc) NewIterator(off uint32) (*Iterator, error) {
	kind, err := d.Type(off)
	if err != nil {
		return nil, err
	}
	return &Iterator{
		d:         d,
		container: byte(kind),
		it:        d.tree.NewIterator(off),
	}, nil
}

func (it *Iterator) Rewind() {
	it.err = nil
	it.it.Rewind()
}

func (it *Iterator) Valid() bool {
	return it.err == nil && it.it.Valid()
}

func (it *Iterator) Next() {
	it.it.Next()
}

// Item decodes the entry at the current position. Array entries carry the
// index in Entry.Index and no key.
func (it *Iterator) Item() (Entry, error) {
	item := it.it.Item()
	e := Entry{Index: item.Hash}
	voff := item.KVOfs
	if it.container == btree.TagObject {
		key, err := it.d.entryKey(item.KVOfs)
		if err != nil {
			it.err = err
			return Entry{}, err
		}
		e.Key = key
		voff, err = it.d.objectValueOffset(item.KVOfs)
		if err != nil {
			it.err = err
			return Entry{}, err
		}
	}
	v, err := it.d.decodeValue(voff)
	if err != nil {
		it.err = err
		return Entry{}, err
	}
	e.Value = v
	return e, nil
}

// Err reports an invalidated iterator or corruption seen while decoding.
func (it *Iterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.it.Err()
}

// tagAt reads the type tag byte at voff.
func (d *Doc) tagAt(voff uint32) (byte, error) {
	buf := d.Buffer()
	if voff >= uint32(len(buf)) {
		return 0, errors.Wrapf(errs.ErrBadMessage, "value offset %d past buffer end", voff)
	}
	return buf[voff], nil
}

// objectValueOffset locates the value inside an object entry payload:
// kv_ofs + key_tag_size + key_len. For nested values, payload placement
// guarantees the result is 4-byte aligned, so the embedded node can sit
// right at it; scalar payloads are not aligned.
func (d *Doc) objectValueOffset(kvofs uint32) (uint32, error) {
	buf := d.Buffer()
	if kvofs >= uint32(len(buf)) {
		return 0, errors.Wrapf(errs.ErrBadMessage, "kv offset %d past buffer end", kvofs)
	}
	klen, ts := codec.DecodeKeyTag(buf[kvofs:])
	return kvofs + uint32(ts) + uint32(klen), nil
}

// entryKey decodes the key bytes of an object entry payload, NUL excluded.
func (d *Doc) entryKey(kvofs uint32) (string, error) {
	buf := d.Buffer()
	if kvofs >= uint32(len(buf)) {
		return "", errors.Wrapf(errs.ErrBadMessage, "kv offset %d past buffer end", kvofs)
	}
	klen, ts := codec.DecodeKeyTag(buf[kvofs:])
	end := kvofs + uint32(ts) + uint32(klen)
	if end > uint32(len(buf)) || klen == 0 {
		return "", errors.Wrapf(errs.ErrBadMessage, "key at %d past buffer end", kvofs)
	}
	return string(buf[kvofs+uint32(ts) : end-1]), nil
}

// decodeValue dispatches on the type tag at voff. Scalars are copied out;
// OBJECT and ARRAY values are the embedded node at voff itself.
func (d *Doc) decodeValue(voff uint32) (Value, error) {
	buf := d.Buffer()
	if voff >= uint32(len(buf)) {
		return Value{}, errors.Wrapf(errs.ErrOutOfBounds, "value offset %d with %d used", voff, len(buf))
	}
	tag := buf[voff]
	body := buf[voff+1:]
	switch tag {
	case btree.TagNull:
		return nullValue(), nil
	case btree.TagBool:
		if len(body) < 1 {
			return Value{}, errors.Wrap(errs.ErrBadMessage, "bool body past buffer end")
		}
		return boolValue(body[0] != 0), nil
	case btree.TagInt:
		if len(body) < 8 {
			return Value{}, errors.Wrap(errs.ErrBadMessage, "i64 body past buffer end")
		}
		return intValue(codec.I64(body)), nil
	case btree.TagFloat:
		if len(body) < 8 {
			return Value{}, errors.Wrap(errs.ErrBadMessage, "f64 body past buffer end")
		}
		return floatValue(codec.F64(body)), nil
	case btree.TagBytes:
		if len(body) < scalarLenSize {
			return Value{}, errors.Wrap(errs.ErrBadMessage, "bytes length past buffer end")
		}
		l := u32(body)
		if uint32(len(body)) < scalarLenSize+l {
			return Value{}, errors.Wrap(errs.ErrBadMessage, "bytes body past buffer end")
		}
		out := make([]byte, l)
		copy(out, body[scalarLenSize:])
		return bytesValue(out), nil
	case btree.TagString:
		if len(body) < scalarLenSize {
			return Value{}, errors.Wrap(errs.ErrBadMessage, "string length past buffer end")
		}
		l := u32(body) // includes the trailing NUL
		if l == 0 || uint32(len(body)) < scalarLenSize+l {
			return Value{}, errors.Wrap(errs.ErrBadMessage, "string body past buffer end")
		}
		return strValue(string(body[scalarLenSize : scalarLenSize+l-1])), nil
	case btree.TagObject, btree.TagArray:
		if voff+btree.NodeSize > uint32(len(buf)) {
			return Value{}, errors.Wrap(errs.ErrBadMessage, "embedded node past buffer end")
		}
		return nodeValue(tag, voff), nil
	}
	return Value{}, errors.Wrapf(errs.ErrBadMessage, "invalid type tag %d at %d", tag, voff)
}
