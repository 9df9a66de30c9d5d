package lite3

import (
	"github.com/pkg/errors"

	"lite3/utils/errs"
)

// ToJSON projects the subtree at off into plain Go data: objects become
// map[string]interface{}, arrays []interface{}, scalars nil, bool, int64,
// float64, string, and []byte. Objects are walked in ascending hash order,
// but the returned map carries no key order; callers needing a particular
// order sort externally.
func (d *Doc) ToJSON(off uint32) (interface{}, error) {
	kind, err := d.Type(off)
	if err != nil {
		return nil, err
	}
	entries, err := d.Entries(off)
	if err != nil {
		return nil, err
	}
	if kind == Object {
		m := make(map[string]interface{}, len(entries))
		for _, e := range entries {
			v, err := d.jsonValue(e.Value)
			if err != nil {
				return nil, err
			}
			m[e.Key] = v
		}
		return m, nil
	}
	// Arrays are dense 0..N-1, so ascending hash order is element order.
	out := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		v, err := d.jsonValue(e.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *Doc) jsonValue(v Value) (interface{}, error) {
	switch v.Kind() {
	case Null:
		return nil, nil
	case Bool:
		return v.Bool(), nil
	case Int:
		return v.Int(), nil
	case Float:
		return v.f, nil
	case String:
		return v.Str(), nil
	case Bytes:
		return v.Bytes(), nil
	case Object, Array:
		return d.ToJSON(v.Off())
	}
	return nil, errors.Wrapf(errs.ErrBadMessage, "invalid value kind %d", v.Kind())
}

// FromJSON builds a fresh Doc from nested Go data of the shapes ToJSON
// produces. The top-level value must be a map or a slice.
func FromJSON(v interface{}) (*Doc, error) {
	d := New()
	switch x := v.(type) {
	case map[string]interface{}:
		if err := d.InitObject(); err != nil {
			return nil, err
		}
		for k, e := range x {
			if err := d.setAny(Root, k, e); err != nil {
				return nil, err
			}
		}
	case []interface{}:
		if err := d.InitArray(); err != nil {
			return nil, err
		}
		for _, e := range x {
			if err := d.appendAny(Root, e); err != nil {
				return nil, err
			}
		}
	default:
		return nil, errors.Wrapf(errs.ErrInvalidArgument, "top-level %T is not an object or array", v)
	}
	return d, nil
}
