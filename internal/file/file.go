package file

import (
	"io"
	"io/fs"
	"path"
)

// File is an open archive file. It reads the payload straight from the
// backing stream and supports random access.
type File struct {
	name   string
	sr     *io.SectionReader
	info   *Info
	closed bool
}

// Interface compliance.
var (
	_ fs.File     = (*File)(nil)
	_ io.ReaderAt = (*File)(nil)
	_ io.Seeker   = (*File)(nil)
)

// Open returns a File reading size bytes of r starting at off.
// The name is the full path; Stat reports its base name.
func Open(r io.ReaderAt, name string, off, size int64) *File {
	return &File{
		name: name,
		sr:   io.NewSectionReader(r, off, size),
		info: FileInfo(path.Base(name), size),
	}
}

// Read implements io.Reader.
func (f *File) Read(p []byte) (int, error) {
	if f.closed {
		return 0, f.pathErr("read", fs.ErrClosed)
	}
	return f.sr.Read(p)
}

// ReadAt implements io.ReaderAt.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, f.pathErr("read", fs.ErrClosed)
	}
	return f.sr.ReadAt(p, off)
}

// Seek implements io.Seeker.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, f.pathErr("seek", fs.ErrClosed)
	}
	return f.sr.Seek(offset, whence)
}

// Stat implements fs.File.
func (f *File) Stat() (fs.FileInfo, error) {
	if f.closed {
		return nil, f.pathErr("stat", fs.ErrClosed)
	}
	return f.info, nil
}

// Close implements fs.File. Closing twice returns fs.ErrClosed.
func (f *File) Close() error {
	if f.closed {
		return f.pathErr("close", fs.ErrClosed)
	}
	f.closed = true
	return nil
}

func (f *File) pathErr(op string, err error) error {
	return &fs.PathError{Op: op, Path: f.name, Err: err}
}
