package packfs

import (
	"fmt"
	"io"
	"io/fs"

	"github.com/meigma/packfs/internal/packtype"
	"github.com/meigma/packfs/internal/record"
	"github.com/meigma/packfs/internal/sizing"
)

// lookup returns the block of a file. Callers hold a.mu.
func (a *Archive) lookup(name string) (record.Block, bool) {
	index, ok := a.dir[name]
	if !ok {
		return record.Block{}, false
	}
	return a.alloc.Block(index), true
}

// ReadFile returns the content of the named file.
// A missing or empty file yields an empty slice and no error.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	return a.readSegment(name, 0, toEnd)
}

// ReadFileInto reads the start of the named file into p and returns the
// number of bytes read, which is the smaller of len(p) and the file length.
func (a *Archive) ReadFileInto(name string, p []byte) (int, error) {
	return a.ReadFileSegmentInto(name, 0, p)
}

// ReadFileTo copies the content of the named file to w.
func (a *Archive) ReadFileTo(name string, w io.Writer) (int64, error) {
	return a.copySegment(name, 0, toEnd, w)
}

// ReadFileSegment returns up to length bytes of the named file starting at
// offset.
//
// The segment is clamped to the file: an offset past the end yields no bytes
// and a length past the end is shortened. Neither is an error.
func (a *Archive) ReadFileSegment(name string, offset, length int64) ([]byte, error) {
	if length < 0 {
		return nil, negativeLength("read", name, length)
	}
	return a.readSegment(name, offset, length)
}

func (a *Archive) readSegment(name string, offset, length int64) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	off, n, ok, err := a.segment("read", name, offset, length)
	if err != nil || !ok || n == 0 {
		return nil, err
	}
	size, err := sizing.ToInt(n, packtype.ErrSizeOverflow)
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	buf := make([]byte, size)
	if err := readFull(a.s, buf, off, "file content"); err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	return buf, nil
}

// ReadFileSegmentInto reads the named file starting at offset into p and
// returns the number of bytes read, clamped to the end of the file.
func (a *Archive) ReadFileSegmentInto(name string, offset int64, p []byte) (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	off, n, ok, err := a.segment("read", name, offset, int64(len(p)))
	if err != nil || !ok || n == 0 {
		return 0, err
	}
	if err := readFull(a.s, p[:n], off, "file content"); err != nil {
		return 0, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	return int(n), nil
}

// ReadFileSegmentTo copies up to length bytes of the named file starting at
// offset to w, clamped like ReadFileSegment.
func (a *Archive) ReadFileSegmentTo(name string, offset, length int64, w io.Writer) (int64, error) {
	if length < 0 {
		return 0, negativeLength("read", name, length)
	}
	return a.copySegment(name, offset, length, w)
}

func (a *Archive) copySegment(name string, offset, length int64, w io.Writer) (int64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	off, n, ok, err := a.segment("read", name, offset, length)
	if err != nil || !ok || n == 0 {
		return 0, err
	}
	copied, err := io.Copy(w, io.NewSectionReader(a.s, off, n))
	if err != nil {
		return copied, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	if copied != n {
		return copied, &fs.PathError{Op: "read", Path: name,
			Err: fmt.Errorf("%w: file content truncated (%d of %d bytes)", packtype.ErrCorrupt, copied, n)}
	}
	return copied, nil
}

// toEnd is the internal segment length meaning "through the end of the file".
const toEnd int64 = -1

// segment validates a read and resolves it to an absolute stream range.
// It reports false for a missing file. Callers hold a.mu.
func (a *Archive) segment(op, name string, offset, length int64) (off, n int64, ok bool, err error) {
	if err := a.checkRead(op, name); err != nil {
		return 0, 0, false, err
	}
	if offset < 0 {
		return 0, 0, false, &fs.PathError{Op: op, Path: name,
			Err: fmt.Errorf("%w: negative offset %d", packtype.ErrInvalidArgument, offset)}
	}
	b, found := a.lookup(name)
	if !found {
		return 0, 0, false, nil
	}
	if length == toEnd {
		length = b.Length
	}
	start, n := sizing.ClampSegment(offset, length, b.Length)
	return b.Offset() + start, n, true, nil
}

func negativeLength(op, name string, length int64) error {
	return &fs.PathError{Op: op, Path: name,
		Err: fmt.Errorf("%w: negative length %d", packtype.ErrInvalidArgument, length)}
}
