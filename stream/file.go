package stream

import (
	"fmt"
	"os"
	"path/filepath"
)

// File is a Stream backed by an operating system file.
type File struct {
	f        *os.File
	writable bool
}

// OpenFile opens an existing file as a stream.
// The stream is read-only unless writable is set.
func OpenFile(path string, writable bool) (*File, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0) //nolint:gosec // caller-chosen archive path
	if err != nil {
		return nil, err
	}
	return &File{f: f, writable: writable}, nil
}

// CreateFile creates or truncates the file at path and opens it for reading
// and writing. Parent directories are created as needed.
func CreateFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec // caller-chosen archive path
	if err != nil {
		return nil, err
	}
	return &File{f: f, writable: true}, nil
}

// Name returns the path the file was opened with.
func (s *File) Name() string {
	return s.f.Name()
}

// ReadAt implements io.ReaderAt.
func (s *File) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

// WriteAt implements io.WriterAt.
func (s *File) WriteAt(p []byte, off int64) (int, error) {
	if !s.writable {
		return 0, ErrReadOnly
	}
	return s.f.WriteAt(p, off)
}

// Size returns the current file length.
func (s *File) Size() (int64, error) {
	info, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Truncate changes the file length.
func (s *File) Truncate(size int64) error {
	if !s.writable {
		return ErrReadOnly
	}
	return s.f.Truncate(size)
}

// Sync commits the file contents to stable storage.
func (s *File) Sync() error {
	if !s.writable {
		return nil
	}
	return s.f.Sync()
}

// Close closes the file.
func (s *File) Close() error {
	return s.f.Close()
}
