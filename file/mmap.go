package file

import (
	"os"

	"github.com/pkg/errors"
)

// MmapFile is a memory-mapped file: the mapped data and its descriptor.
type MmapFile struct {
	Data []byte
	Fd   *os.File
}

// OpenMmapFile opens path with flag and maps maxSz bytes. When the file is
// created or shorter than maxSz and the mapping is writable, it is grown
// first; a read-only open maps the current size.
func OpenMmapFile(path string, flag int, maxSz int) (*MmapFile, error) {
	fd, err := os.OpenFile(path, flag, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	writable := flag&(os.O_RDWR|os.O_WRONLY) != 0

	fi, err := fd.Stat()
	if err != nil {
		_ = fd.Close()
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	size := int(fi.Size())
	if writable && size < maxSz {
		if err := fd.Truncate(int64(maxSz)); err != nil {
			_ = fd.Close()
			return nil, errors.Wrapf(err, "truncate %s to %d", path, maxSz)
		}
		size = maxSz
	}

	data, err := Mmap(fd, writable, int64(size))
	if err != nil {
		_ = fd.Close()
		return nil, errors.Wrapf(err, "mmap %s with size %d", path, size)
	}
	return &MmapFile{Data: data, Fd: fd}, nil
}

// Bytes returns data starting at offset off of size sz.
func (m *MmapFile) Bytes(off, sz int) ([]byte, error) {
	if off+sz > len(m.Data) {
		return nil, errors.Errorf("mmap bytes [%d, %d) beyond %d mapped", off, off+sz, len(m.Data))
	}
	return m.Data[off : off+sz], nil
}

// Sync flushes modified pages to the file.
func (m *MmapFile) Sync() error {
	if m == nil {
		return nil
	}
	return Msync(m.Data)
}

// Close unmaps and closes the file.
func (m *MmapFile) Close() error {
	if err := Munmap(m.Data); err != nil {
		_ = m.Fd.Close()
		return err
	}
	return m.Fd.Close()
}
