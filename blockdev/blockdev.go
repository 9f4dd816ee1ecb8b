// Package blockdev implements the "host file interface" named in §6 of the
// design: positioned byte I/O over an image file. It is grounded on
// ff.h/ff.c's ffi function-pointer table (check/init/read/write/seek) from
// the original C tool, re-expressed as a Go interface per the driver-table
// idiom soypat/fat uses for its own BlockDevice.
package blockdev

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/imgfat/imgfat/fserrors"
)

// Whence values for Backend.Seek, matching the ffi contract's SET/CUR/END.
const (
	SeekSet = io.SeekStart
	SeekCur = io.SeekCurrent
	SeekEnd = io.SeekEnd
)

// Backend is the host file interface: a positioned byte stream over an
// image. Only a raw (flat) backend is required by the spec; the interface
// exists so the driver table can accept other backends later without
// touching callers.
type Backend interface {
	// Check reports whether this backend accepts the given image path.
	Check(path string) bool
	// Init performs one-time preparation before Read/Write/Seek are used.
	Init() error
	// ReadAt and WriteAt are positioned, sector-buffer-sized operations;
	// they never implicitly advance a separate cursor used by Seek.
	io.ReaderAt
	io.WriterAt
	// Seek repositions the current cursor used by Read/Write (not ReadAt/
	// WriteAt) and returns the resulting offset.
	io.Seeker
	io.Reader
	io.Writer
	io.Closer
}

// rawBackend is the only backend the original tool implements: raw.c's
// raw_check/raw_init/raw_read/raw_write/raw_seek, selected when the image
// filename extension is literally "img".
type rawBackend struct {
	f *os.File
}

// OpenRaw opens path for read/write as a raw backend. The caller is
// expected to have already run Check against path.
func OpenRaw(path string) (Backend, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &rawBackend{f: f}, nil
}

// Check accepts path exactly when its filename extension is "img"
// (case-sensitive). Selection is by filename extension only, not by
// content sniffing.
func (r *rawBackend) Check(path string) bool {
	return strings.TrimPrefix(filepath.Ext(path), ".") == "img"
}

func (r *rawBackend) Init() error { return nil }

func (r *rawBackend) ReadAt(p []byte, off int64) (int, error)  { return r.f.ReadAt(p, off) }
func (r *rawBackend) WriteAt(p []byte, off int64) (int, error) { return r.f.WriteAt(p, off) }
func (r *rawBackend) Read(p []byte) (int, error)               { return r.f.Read(p) }
func (r *rawBackend) Write(p []byte) (int, error)               { return r.f.Write(p) }
func (r *rawBackend) Seek(offset int64, whence int) (int64, error) {
	return r.f.Seek(offset, whence)
}
func (r *rawBackend) Close() error { return r.f.Close() }

// Select chooses the backend for path. Today that's just the raw backend,
// but it's expressed as a selection step (not a constructor call) so the
// driver-table-style "permits adding [backends]" contract in §6 has
// somewhere to grow.
func Select(path string) (Backend, error) {
	b := &rawBackend{}
	if !b.Check(path) {
		return nil, errUnknownFormat(path)
	}
	return OpenRaw(path)
}

func errUnknownFormat(path string) error {
	return fserrors.UnknownImageFormat.WithMessage(path)
}
