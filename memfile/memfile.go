// Package memfile implements an in-memory, seekable, growable byte buffer
// that can back a chunkfile container the same way an *os.File does.
package memfile

import (
	"errors"
	"io"
)

var errNegativeOffset = errors.New("memfile: negative offset")

var (
	_ io.ReadWriteSeeker = (*File)(nil)
	_ io.ReaderAt        = (*File)(nil)
	_ io.WriterAt        = (*File)(nil)
	_ io.Closer          = (*File)(nil)
)

// File is a byte slice with a cursor. Writing past the end grows the slice,
// zero filling any gap. The zero value is an empty file.
type File struct {
	buf []byte
	off int64
}

// New returns a File holding b with the cursor at 0. The File takes
// ownership of b.
func New(b []byte) *File {
	return &File{buf: b}
}

// Bytes returns the contents of the file. The slice aliases the file's
// storage until the next write.
func (f *File) Bytes() []byte { return f.buf }

// Len returns the length of the file.
func (f *File) Len() int64 { return int64(len(f.buf)) }

func (f *File) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.off)
	f.off += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errNegativeOffset
	}
	if off >= int64(len(f.buf)) {
		return 0, io.EOF
	}
	n := copy(p, f.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *File) Write(p []byte) (int, error) {
	n, err := f.WriteAt(p, f.off)
	f.off += int64(n)
	return n, err
}

func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errNegativeOffset
	}
	if end := off + int64(len(p)); end > int64(len(f.buf)) {
		f.grow(end)
	}
	return copy(f.buf[off:], p), nil
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.off + offset
	case io.SeekEnd:
		abs = int64(len(f.buf)) + offset
	default:
		return f.off, errors.New("memfile: invalid whence")
	}
	if abs < 0 {
		return f.off, errNegativeOffset
	}
	f.off = abs
	return abs, nil
}

// Truncate changes the length of the file. The cursor is not moved.
func (f *File) Truncate(size int64) error {
	if size < 0 {
		return errNegativeOffset
	}
	if size <= int64(len(f.buf)) {
		f.buf = f.buf[:size]
		return nil
	}
	f.grow(size)
	return nil
}

// Close is a no-op; it lets a File stand in for an *os.File.
func (f *File) Close() error { return nil }

func (f *File) grow(size int64) {
	if size <= int64(cap(f.buf)) {
		old := len(f.buf)
		f.buf = f.buf[:size]
		clear(f.buf[old:])
		return
	}
	nb := make([]byte, size, size+size/4)
	copy(nb, f.buf)
	f.buf = nb
}
