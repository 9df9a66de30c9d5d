package errs

import (
	"log"

	"github.com/pkg/errors"
)

// Error kinds crossing the package boundary. Callers match with errors.Is;
// wrapped messages carry the detail.
var (
	// ErrInvalidArgument uninitialized handle, wrong root type, unsupported runtime type
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNoBufferSpace the buffer would exceed 2^32-1 bytes
	ErrNoBufferSpace = errors.New("no buffer space")
	// ErrKeyNotFound the probed key has no entry
	ErrKeyNotFound = errors.New("key not found")
	// ErrBadMessage corruption: tree height exceeded, invalid type tag, length past buffer end
	ErrBadMessage = errors.New("bad message")
	// ErrOutOfBounds offset points outside the used buffer
	ErrOutOfBounds = errors.New("out of bounds")
)

// Err logs err with its stack if it is not nil.
func Err(err error) error {
	if err != nil {
		log.Printf("%+v", errors.WithStack(err))
	}
	return err
}

// Panic _
func Panic(err error) {
	if err != nil {
		panic(err)
	}
}

// CondPanic panics with err when condition holds.
func CondPanic(condition bool, err error) {
	if condition {
		Panic(err)
	}
}
