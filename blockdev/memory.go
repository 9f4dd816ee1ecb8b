package blockdev

import (
	"io"

	"github.com/xaionaro-go/bytesextra"
)

// memBackend is an in-memory Backend over a []byte, built on bytesextra the
// same way dargueta/disko's testing/images.go turns a raw image byte slice
// into an io.ReadWriteSeeker. Used exclusively by tests so the suite never
// needs on-disk fixture files.
type memBackend struct {
	rws io.ReadWriteSeeker
}

// NewMemory wraps image (a complete, pre-sized disk image) as a Backend.
// Mutations write through to image's backing array.
func NewMemory(image []byte) Backend {
	return &memBackend{rws: bytesextra.NewReadWriteSeeker(image)}
}

func (m *memBackend) Check(path string) bool { return true }
func (m *memBackend) Init() error            { return nil }

func (m *memBackend) ReadAt(p []byte, off int64) (int, error) {
	cur, err := m.rws.Seek(0, SeekCur)
	if err != nil {
		return 0, err
	}
	defer m.rws.Seek(cur, SeekSet)
	if _, err := m.rws.Seek(off, SeekSet); err != nil {
		return 0, err
	}
	return m.rws.Read(p)
}

func (m *memBackend) WriteAt(p []byte, off int64) (int, error) {
	cur, err := m.rws.Seek(0, SeekCur)
	if err != nil {
		return 0, err
	}
	defer m.rws.Seek(cur, SeekSet)
	if _, err := m.rws.Seek(off, SeekSet); err != nil {
		return 0, err
	}
	return m.rws.Write(p)
}

func (m *memBackend) Read(p []byte) (int, error)  { return m.rws.Read(p) }
func (m *memBackend) Write(p []byte) (int, error) { return m.rws.Write(p) }
func (m *memBackend) Seek(offset int64, whence int) (int64, error) {
	return m.rws.Seek(offset, whence)
}
func (m *memBackend) Close() error { return nil }
