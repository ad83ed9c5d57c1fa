// Package stream defines the byte medium an archive lives in and provides
// file and in-memory implementations.
//
// A Stream offers positioned reads and writes, length control, and a flush.
// Implementations need not be safe for concurrent writes; an archive owns its
// stream exclusively and serializes mutations.
package stream

import (
	"errors"
	"io"
)

// Stream is a seekable, resizable byte medium.
type Stream interface {
	io.ReaderAt
	io.WriterAt
	io.Closer

	// Size returns the current length of the stream.
	Size() (int64, error)

	// Truncate changes the length of the stream, growing it with zero bytes
	// or discarding its tail.
	Truncate(size int64) error

	// Sync flushes written data to the underlying medium.
	Sync() error
}

var (
	// ErrReadOnly is returned by writes to a stream that cannot be modified.
	ErrReadOnly = errors.New("stream: read-only")

	// ErrNoSpace is returned when a stream cannot grow to the requested size.
	ErrNoSpace = errors.New("stream: no space left")

	// ErrClosed is returned by operations on a closed stream.
	ErrClosed = errors.New("stream: closed")
)
