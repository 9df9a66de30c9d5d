package lite3

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lite3/utils/codec"
	"lite3/utils/errs"
)

func newObject(t *testing.T) *Doc {
	d := New()
	require.NoError(t, d.InitObject())
	return d
}

func newArray(t *testing.T) *Doc {
	d := New()
	require.NoError(t, d.InitArray())
	return d
}

func TestLapRecord(t *testing.T) {
	d := newObject(t)
	require.NoError(t, d.SetString(Root, "event", "lap_complete"))
	require.NoError(t, d.SetInt(Root, "lap", 55))
	require.NoError(t, d.SetFloat(Root, "time_sec", 88.427))

	j, err := d.ToJSON(Root)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"event":    "lap_complete",
		"lap":      int64(55),
		"time_sec": 88.427,
	}, j)

	// overwriting an i64 with an i64 happens in place
	before := d.Len()
	require.NoError(t, d.SetInt(Root, "lap", 56))
	assert.Equal(t, before, d.Len())

	v, err := d.Get(Root, "lap")
	require.NoError(t, err)
	assert.Equal(t, int64(56), v.Int())
}

func TestNestedObject(t *testing.T) {
	d := newObject(t)
	headers, err := d.SetObject(Root, "headers")
	require.NoError(t, err)
	require.NoError(t, d.SetString(headers, "content-type", "application/json"))
	require.NoError(t, d.SetString(headers, "x-request-id", "req_9f8e2a"))
	require.NoError(t, d.SetString(headers, "user-agent", "curl/8.1.2"))

	v, err := d.Get(Root, "headers")
	require.NoError(t, err)
	require.Equal(t, Object, v.Kind())

	ua, err := d.Get(v.Off(), "user-agent")
	require.NoError(t, err)
	assert.Equal(t, "curl/8.1.2", ua.Str())

	size, err := d.Size(v.Off())
	require.NoError(t, err)
	assert.Equal(t, uint32(3), size)
}

func TestHeterogeneousArray(t *testing.T) {
	d := newArray(t)
	for _, v := range []interface{}{1, "two", true, nil, map[string]interface{}{"nested": "object"}} {
		require.NoError(t, d.Append(Root, v))
	}

	size, err := d.Size(Root)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), size)

	j, err := d.ToJSON(Root)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{
		int64(1), "two", true, nil, map[string]interface{}{"nested": "object"},
	}, j)
}

func TestWideInteger(t *testing.T) {
	d := newObject(t)
	require.NoError(t, d.SetInt(Root, "big", math.MaxInt64))

	v, err := d.Get(Root, "big")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), v.Int())

	// the narrow reader refuses the lossy conversion
	_, err = v.Float()
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestSafeIntegerBoundary(t *testing.T) {
	d := newObject(t)
	require.NoError(t, d.SetInt(Root, "max_safe", 1<<53-1))
	require.NoError(t, d.SetInt(Root, "above", 1<<53))
	require.NoError(t, d.SetInt(Root, "odd_above", 1<<53+1))

	for key, want := range map[string]int64{
		"max_safe":  1<<53 - 1,
		"above":     1 << 53,
		"odd_above": 1<<53 + 1,
	} {
		v, err := d.Get(Root, key)
		require.NoError(t, err)
		assert.Equal(t, want, v.Int(), key)
	}

	v, _ := d.Get(Root, "max_safe")
	f, err := v.Float()
	require.NoError(t, err)
	assert.Equal(t, float64(1<<53-1), f)

	// 2^53+1 has no exact float64 form
	v, _ = d.Get(Root, "odd_above")
	_, err = v.Float()
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestManyKeys(t *testing.T) {
	d := newObject(t)
	want := map[string]int64{}
	for i := 0; i < 34; i++ {
		key := fmt.Sprintf("key_%02d", i)
		require.NoError(t, d.SetInt(Root, key, int64(i)))
		want[key] = int64(i)
	}

	size, err := d.Size(Root)
	require.NoError(t, err)
	assert.Equal(t, uint32(34), size)

	keys, err := d.Keys(Root)
	require.NoError(t, err)
	assert.Len(t, keys, 34)
	got := map[string]int64{}
	for _, k := range keys {
		v, err := d.Get(Root, k)
		require.NoError(t, err)
		got[k] = v.Int()
	}
	assert.Equal(t, want, got)

	// 34 keys force at least one root split
	assert.False(t, d.tree.Node(Root).Leaf())
	h, err := d.tree.Height(Root)
	require.NoError(t, err)
	assert.LessOrEqual(t, h, 9)
}

func TestKeyCountBoundaries(t *testing.T) {
	d := newObject(t)

	// empty object enumerates to nothing
	size, err := d.Size(Root)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), size)
	entries, err := d.Entries(Root)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// seven keys fill the root without splitting it
	for i := 0; i < 7; i++ {
		require.NoError(t, d.SetInt(Root, fmt.Sprintf("k%d", i), int64(i)))
	}
	assert.True(t, d.tree.Node(Root).Leaf())

	// the eighth forces the first split
	require.NoError(t, d.SetInt(Root, "k7", 7))
	assert.False(t, d.tree.Node(Root).Leaf())

	size, err = d.Size(Root)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), size)
}

func TestBinaryValue(t *testing.T) {
	d := newObject(t)
	require.NoError(t, d.SetBytes(Root, "x", []byte{0x48, 0x65, 0x6c, 0x6c, 0x6f}))

	v, err := d.Get(Root, "x")
	require.NoError(t, err)
	require.Equal(t, Bytes, v.Kind())
	assert.Equal(t, []byte{0x48, 0x65, 0x6c, 0x6c, 0x6f}, v.Bytes())
}

func TestScalarRoundTrips(t *testing.T) {
	d := newObject(t)

	require.NoError(t, d.SetNull(Root, "null"))
	require.NoError(t, d.SetBool(Root, "bool", true))
	require.NoError(t, d.SetInt(Root, "int", -77))
	require.NoError(t, d.SetFloat(Root, "float", 3.5))
	require.NoError(t, d.SetString(Root, "string", "hi"))
	require.NoError(t, d.SetBytes(Root, "bytes", []byte{1, 2}))

	v, err := d.Get(Root, "null")
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	v, err = d.Get(Root, "bool")
	require.NoError(t, err)
	assert.True(t, v.Bool())

	v, err = d.Get(Root, "int")
	require.NoError(t, err)
	assert.Equal(t, int64(-77), v.Int())

	v, err = d.Get(Root, "float")
	require.NoError(t, err)
	f, err := v.Float()
	require.NoError(t, err)
	assert.Equal(t, 3.5, f)

	v, err = d.Get(Root, "string")
	require.NoError(t, err)
	assert.Equal(t, "hi", v.Str())

	v, err = d.Get(Root, "bytes")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, v.Bytes())
}

func TestBoundaryValues(t *testing.T) {
	d := newObject(t)

	longKey := ""
	for len(longKey) < 100 {
		longKey += "k"
	}
	longStr := ""
	for len(longStr) < 10000 {
		longStr += "0123456789"
	}

	require.NoError(t, d.SetString(Root, "empty", ""))
	require.NoError(t, d.SetString(Root, longKey, longStr))
	require.NoError(t, d.SetBytes(Root, "none", []byte{}))

	v, err := d.Get(Root, "empty")
	require.NoError(t, err)
	assert.Equal(t, "", v.Str())

	v, err = d.Get(Root, longKey)
	require.NoError(t, err)
	assert.Equal(t, longStr, v.Str())

	v, err = d.Get(Root, "none")
	require.NoError(t, err)
	assert.Equal(t, []byte{}, v.Bytes())
}

func TestOverwriteInPlaceAndRealloc(t *testing.T) {
	d := newObject(t)
	require.NoError(t, d.SetString(Root, "s", "a long-ish value"))

	before := d.Len()
	require.NoError(t, d.SetString(Root, "s", "tiny"))
	assert.Equal(t, before, d.Len())
	v, err := d.Get(Root, "s")
	require.NoError(t, err)
	assert.Equal(t, "tiny", v.Str())

	// a larger value abandons the old slot and appends
	require.NoError(t, d.SetString(Root, "s", "a substantially longer replacement value"))
	assert.Greater(t, d.Len(), before)
	v, err = d.Get(Root, "s")
	require.NoError(t, err)
	assert.Equal(t, "a substantially longer replacement value", v.Str())
}

func TestSetNodeOverScalar(t *testing.T) {
	d := newObject(t)
	require.NoError(t, d.SetInt(Root, "k", 1))

	obj, err := d.SetObject(Root, "k")
	require.NoError(t, err)
	require.NoError(t, d.SetInt(obj, "inner", 2))

	v, err := d.Get(Root, "k")
	require.NoError(t, err)
	require.Equal(t, Object, v.Kind())
	assert.Equal(t, obj, v.Off())

	size, err := d.Size(Root)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), size)
}

func TestSetNodeClearsExisting(t *testing.T) {
	d := newObject(t)
	obj, err := d.SetObject(Root, "k")
	require.NoError(t, err)
	require.NoError(t, d.SetInt(obj, "a", 1))
	require.NoError(t, d.SetInt(obj, "b", 2))

	// replacing a nested structure clears it in place
	again, err := d.SetObject(Root, "k")
	require.NoError(t, err)
	assert.Equal(t, obj, again)

	size, err := d.Size(again)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), size)
	assert.False(t, d.Has(again, "a"))

	// the same slot can flip to an array
	arr, err := d.SetArray(Root, "k")
	require.NoError(t, err)
	assert.Equal(t, obj, arr)
	kind, err := d.Type(arr)
	require.NoError(t, err)
	assert.Equal(t, Array, kind)
}

func TestGenerationBumpsOncePerMutation(t *testing.T) {
	d := newObject(t)
	gen := func() uint32 { return d.tree.Node(Root).Gen() }

	g := gen()
	require.NoError(t, d.SetInt(Root, "a", 1))
	assert.Equal(t, g+1, gen())

	require.NoError(t, d.SetInt(Root, "a", 2))
	assert.Equal(t, g+2, gen())

	// one external Set of a whole map is one mutation
	require.NoError(t, d.Set(Root, "cfg", map[string]interface{}{"x": 1, "y": []interface{}{1, 2}}))
	assert.Equal(t, g+3, gen())

	// reads do not move the counter
	_, err := d.Get(Root, "a")
	require.NoError(t, err)
	_, err = d.ToJSON(Root)
	require.NoError(t, err)
	assert.Equal(t, g+3, gen())
}

func TestIteratorInvalidation(t *testing.T) {
	d := newObject(t)
	for i := 0; i < 10; i++ {
		require.NoError(t, d.SetInt(Root, fmt.Sprintf("k%d", i), int64(i)))
	}

	it, err := d.NewIterator(Root)
	require.NoError(t, err)
	require.True(t, it.Valid())
	_, err = it.Item()
	require.NoError(t, err)

	require.NoError(t, d.SetInt(Root, "k0", 100))

	it.Next()
	assert.False(t, it.Valid())
	assert.ErrorIs(t, it.Err(), errs.ErrInvalidArgument)
}

func TestSizeMatchesEnumeration(t *testing.T) {
	d := newObject(t)
	hashes := map[uint32]bool{}
	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("key-%04d", i)
		require.NoError(t, d.SetString(Root, key, "v"))
		hashes[codec.HashString(key)] = true
	}

	// distinct hashes, not distinct keys: colliding keys share an entry
	size, err := d.Size(Root)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(hashes)), size)

	entries, err := d.Entries(Root)
	require.NoError(t, err)
	assert.Equal(t, len(hashes), len(entries))

	last := int64(-1)
	for _, e := range entries {
		assert.Greater(t, int64(e.Index), last)
		last = int64(e.Index)
	}
}

func TestFromBufferRoundTrip(t *testing.T) {
	d := newObject(t)
	require.NoError(t, d.SetString(Root, "event", "lap_complete"))
	arr, err := d.SetArray(Root, "laps")
	require.NoError(t, err)
	require.NoError(t, d.AppendInt(arr, 55))
	require.NoError(t, d.AppendFloat(arr, 88.427))

	want, err := d.ToJSON(Root)
	require.NoError(t, err)

	raw := append([]byte(nil), d.Buffer()...)
	d2 := FromBuffer(raw)
	got, err := d2.ToJSON(Root)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, d.Fingerprint(), d2.Fingerprint())

	// a wrapped buffer stays mutable
	require.NoError(t, d2.SetInt(Root, "lap", 56))
	v, err := d2.Get(Root, "lap")
	require.NoError(t, err)
	assert.Equal(t, int64(56), v.Int())
}

func TestReinitRoot(t *testing.T) {
	d := newObject(t)
	require.NoError(t, d.SetInt(Root, "a", 1))

	require.NoError(t, d.InitObject())
	size, err := d.Size(Root)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), size)
	assert.False(t, d.Has(Root, "a"))

	require.NoError(t, d.InitArray())
	kind, err := d.Type(Root)
	require.NoError(t, err)
	assert.Equal(t, Array, kind)
}

func TestErrors(t *testing.T) {
	d := New()

	// uninitialized handle
	err := d.SetInt(Root, "k", 1)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	_, err = d.Get(Root, "k")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	require.NoError(t, d.InitObject())

	// missing key
	_, err = d.Get(Root, "absent")
	assert.ErrorIs(t, err, errs.ErrKeyNotFound)
	assert.False(t, d.Has(Root, "absent"))

	// wrong root type
	err = d.AppendInt(Root, 1)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	_, err = d.GetAt(Root, 0)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	// offset past the used region
	_, err = d.Get(4096, "k")
	assert.ErrorIs(t, err, errs.ErrOutOfBounds)

	// unsupported runtime type
	err = d.Set(Root, "ch", make(chan int))
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	// uint64 beyond i64
	err = d.Set(Root, "big", uint64(math.MaxUint64))
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestArrayDenseIndexes(t *testing.T) {
	d := newArray(t)
	for i := 0; i < 50; i++ {
		require.NoError(t, d.AppendInt(Root, int64(i*10)))
	}
	for i := uint32(0); i < 50; i++ {
		v, err := d.GetAt(Root, i)
		require.NoError(t, err)
		assert.Equal(t, int64(i*10), v.Int())
	}
	_, err := d.GetAt(Root, 50)
	assert.ErrorIs(t, err, errs.ErrKeyNotFound)
}

func TestNestedArrayOfObjects(t *testing.T) {
	d := newArray(t)
	for i := 0; i < 3; i++ {
		obj, err := d.AppendObject(Root)
		require.NoError(t, err)
		require.NoError(t, d.SetInt(obj, "id", int64(i)))
	}

	j, err := d.ToJSON(Root)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{
		map[string]interface{}{"id": int64(0)},
		map[string]interface{}{"id": int64(1)},
		map[string]interface{}{"id": int64(2)},
	}, j)
}
