package lite3

import (
	"os"

	"lite3/btree"
	"lite3/file"
	"lite3/utils/errs"

	"github.com/pkg/errors"
)

// WriteFile persists the used bytes of d to path through a writable
// mapping. The file is exactly the wire form: FromBuffer or OpenFile on
// the written bytes reproduces the document.
func WriteFile(path string, d *Doc) error {
	if !d.initialized() {
		return errors.Wrap(errs.ErrInvalidArgument, "handle not initialized")
	}
	mf, err := file.OpenMmapFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, int(d.Len()))
	if err != nil {
		return err
	}
	dst, err := mf.Bytes(0, int(d.Len()))
	if err != nil {
		_ = mf.Close()
		return err
	}
	errs.CondPanic(copy(dst, d.Buffer()) != int(d.Len()), errors.New("short mmap copy"))
	if err := mf.Sync(); err != nil {
		_ = mf.Close()
		return err
	}
	return mf.Close()
}

// OpenFile maps path read-only and wraps the mapping as a Doc. No
// validation is performed; the producer is trusted. The Doc reads straight
// from the mapping and rejects mutation; Close releases the mapping.
func OpenFile(path string) (*Doc, error) {
	mf, err := file.OpenMmapFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	if len(mf.Data) < btree.NodeSize {
		_ = mf.Close()
		return nil, errors.Wrapf(errs.ErrBadMessage, "%s holds %d bytes, shorter than a root node", path, len(mf.Data))
	}
	d := FromBuffer(mf.Data)
	d.mf = mf
	d.ro = true
	return d, nil
}
