package utils

import (
	"math"

	"lite3/utils/errs"

	"github.com/pkg/errors"
)

const (
	// MaxBufferSize a buffer is addressed by 32-bit offsets
	MaxBufferSize = math.MaxUint32

	// DefaultCapacity initial backing size when the caller gives none
	DefaultCapacity uint32 = 1024
)

// Arena is a bump-allocated growable byte region. Offsets handed out are
// stable for the lifetime of the arena; the backing array is not, so byte
// views must be re-taken after any allocation. Nothing is ever freed.
type Arena struct {
	buf  []byte
	used uint32
}

// NewArena returns an arena with capacity cap and zero used bytes.
func NewArena(capacity uint32) *Arena {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	return &Arena{
		buf: make([]byte, capacity),
	}
}

// FromBytes wraps an existing byte region without copying. The whole of b
// counts as used. No validation is performed on the contents.
func FromBytes(b []byte) *Arena {
	return &Arena{
		buf:  b,
		used: uint32(len(b)),
	}
}

// Len returns the used length.
func (a *Arena) Len() uint32 {
	return a.used
}

// Bytes returns a view of the used region. The view aliases the backing
// array and goes stale on the next allocation.
func (a *Arena) Bytes() []byte {
	return a.buf[:a.used]
}

// EnsureSpace grows the backing storage so n more bytes can be allocated
// without further growth. Growth at least doubles. Reserving before the
// first write is what makes partial writes impossible: once EnsureSpace
// returns, allocations up to n cannot fail.
func (a *Arena) EnsureSpace(n uint32) error {
	if uint64(a.used)+uint64(n) > MaxBufferSize {
		return errors.Wrapf(errs.ErrNoBufferSpace, "need %d bytes over %d used", n, a.used)
	}
	need := a.used + n
	if need <= uint32(len(a.buf)) {
		return nil
	}
	grown := uint64(len(a.buf)) * 2
	if grown < uint64(need) {
		grown = uint64(need)
	}
	if grown > MaxBufferSize {
		grown = MaxBufferSize
	}
	newBuf := make([]byte, grown)
	errs.CondPanic(int(a.used) != copy(newBuf, a.buf[:a.used]), errors.New("arena grow copy"))
	a.buf = newBuf
	return nil
}

// Alloc bumps used by n and returns the offset of the reservation.
// Callers reserve via EnsureSpace first; Alloc still grows as a backstop.
func (a *Arena) Alloc(n uint32) uint32 {
	if err := a.EnsureSpace(n); err != nil {
		errs.Panic(err)
	}
	offset := a.used
	a.used += n
	return offset
}

// AllocAligned pads used up to align, then allocates n bytes. The pad
// bytes are dead. align must be a power of two.
func (a *Arena) AllocAligned(n uint32, align uint32) uint32 {
	aligned := (a.used + align - 1) &^ (align - 1)
	pad := aligned - a.used
	if pad > 0 {
		a.Alloc(pad)
	}
	return a.Alloc(n)
}
