package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScalarRoundTrip(t *testing.T) {
	buf := make([]byte, 8)

	PutU32(buf, 0xdeadbeef)
	assert.Equal(t, uint32(0xdeadbeef), U32(buf))
	assert.Equal(t, byte(0xef), buf[0])

	PutI64(buf, -42)
	assert.Equal(t, int64(-42), I64(buf))

	PutF64(buf, 88.427)
	assert.Equal(t, 88.427, F64(buf))

	PutU64(buf, 1<<53)
	assert.Equal(t, uint64(1<<53), U64(buf))
}

func TestKeyTagSize(t *testing.T) {
	assert.Equal(t, 1, KeyTagSize(1))
	assert.Equal(t, 1, KeyTagSize(63))
	assert.Equal(t, 2, KeyTagSize(64))
	assert.Equal(t, 2, KeyTagSize(16383))
	assert.Equal(t, 3, KeyTagSize(16384))
	assert.Equal(t, 3, KeyTagSize(4194303))
	assert.Equal(t, 4, KeyTagSize(4194304))
}

func TestKeyTagRoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	for _, keyLen := range []int{1, 5, 63, 64, 100, 16383, 16384, 4194303, 4194304} {
		n := EncodeKeyTag(buf, keyLen)
		assert.Equal(t, KeyTagSize(keyLen), n)

		gotLen, gotSize := DecodeKeyTag(buf)
		assert.Equal(t, keyLen, gotLen)
		assert.Equal(t, n, gotSize)

		// tag size is recoverable from the first byte alone
		assert.Equal(t, n, int(buf[0]&3)+1)
	}
}

func TestAlignOffset(t *testing.T) {
	assert.Equal(t, uint32(0), AlignOffset(0, 4))
	assert.Equal(t, uint32(4), AlignOffset(1, 4))
	assert.Equal(t, uint32(4), AlignOffset(4, 4))
	assert.Equal(t, uint32(8), AlignOffset(5, 4))
	assert.Equal(t, uint32(96), AlignOffset(93, 4))
}

func TestHash(t *testing.T) {
	// djb2 test vectors
	assert.Equal(t, uint32(5381), Hash(nil))
	assert.Equal(t, uint32(5381), HashString(""))
	assert.Equal(t, uint32(261238937), HashString("hello"))
	assert.Equal(t, Hash([]byte("lap_complete")), HashString("lap_complete"))
}
