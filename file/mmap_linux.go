package file

import (
	"os"
)

// Mmap memory-maps size bytes of fd, writable or read-only.
func Mmap(fd *os.File, writable bool, size int64) ([]byte, error) {
	return mmap(fd, writable, size)
}

// Munmap unmaps a previously mapped slice.
func Munmap(b []byte) error {
	return munmap(b)
}

// Msync would call sync on the mmapped data.
func Msync(b []byte) error {
	return msync(b)
}
