package lite3

import (
	"math"

	"lite3/btree"
	"lite3/utils/errs"

	"github.com/pkg/errors"
)

// Kind discriminates the runtime variant of a decoded value. The numeric
// values coincide with the wire type tags.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Int
	Float
	Bytes
	String
	Object
	Array
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bytes:
		return "bytes"
	case String:
		return "string"
	case Object:
		return "object"
	case Array:
		return "array"
	}
	return "invalid"
}

// Value is a decoded entry. Scalars are copied out of the buffer; Object
// and Array values carry the offset of the embedded node instead, to be
// passed back into Get/GetAt/ToJSON.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	raw  []byte
	off  uint32
}

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsNull() bool  { return v.kind == Null }
func (v Value) Bool() bool    { return v.b }
func (v Value) Str() string   { return v.s }
func (v Value) Bytes() []byte { return v.raw }

// Off returns the node offset of a nested object or array value.
func (v Value) Off() uint32 { return v.off }

// Int is the wide integer reader: every wire I64 is representable.
func (v Value) Int() int64 { return v.i }

// Float is the narrow reader: it converts an I64 only when the conversion
// is lossless, and errors otherwise.
func (v Value) Float() (float64, error) {
	switch v.kind {
	case Float:
		return v.f, nil
	case Int:
		// Exact only when the conversion round-trips. float64(MaxInt64) is
		// 2^63, out of int64 range, so bound before converting back.
		f := float64(v.i)
		if f >= float64(math.MinInt64) && f < float64(math.MaxInt64) && int64(f) == v.i {
			return f, nil
		}
		return 0, errors.Wrapf(errs.ErrInvalidArgument, "integer %d not exact in float64", v.i)
	}
	return 0, errors.Wrapf(errs.ErrInvalidArgument, "%s value is not numeric", v.kind)
}

func nullValue() Value            { return Value{kind: Null} }
func boolValue(b bool) Value      { return Value{kind: Bool, b: b} }
func intValue(i int64) Value      { return Value{kind: Int, i: i} }
func floatValue(f float64) Value  { return Value{kind: Float, f: f} }
func strValue(s string) Value     { return Value{kind: String, s: s} }
func bytesValue(b []byte) Value   { return Value{kind: Bytes, raw: b} }
func nodeValue(tag byte, off uint32) Value {
	return Value{kind: Kind(tag), off: off}
}

// Entry is one enumerated member of an object or array. Index carries the
// hash, which for arrays is the element index; Key is empty for arrays.
type Entry struct {
	Key   string
	Index uint32
	Value Value
}

const scalarLenSize = 4

// valueSize is the in-place byte size of a value, type tag excluded.
func valueSize(tag byte, data []byte) (uint32, error) {
	switch tag {
	case btree.TagNull:
		return 0, nil
	case btree.TagBool:
		return 1, nil
	case btree.TagInt, btree.TagFloat:
		return 8, nil
	case btree.TagBytes, btree.TagString:
		if len(data) < scalarLenSize {
			return 0, errors.Wrap(errs.ErrBadMessage, "length field past buffer end")
		}
		return scalarLenSize + u32(data), nil
	case btree.TagObject, btree.TagArray:
		return btree.NodeSize, nil
	}
	return 0, errors.Wrapf(errs.ErrBadMessage, "invalid type tag %d", tag)
}
