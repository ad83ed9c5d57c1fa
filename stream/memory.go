package stream

import (
	"io"
	"sync"
)

// Memory is a Stream backed by a growable byte slice.
//
// Concurrent ReadAt calls are safe. Writes must not run concurrently with
// other operations on the same stream.
type Memory struct {
	mu      sync.RWMutex
	data    []byte
	maxSize int64 // 0 = unlimited
	closed  bool
}

// MemoryOption configures a Memory stream.
type MemoryOption func(*Memory)

// WithMaxSize caps the length the stream may grow to.
// Growth beyond the cap fails with ErrNoSpace. Zero disables the cap.
func WithMaxSize(n int64) MemoryOption {
	return func(m *Memory) {
		m.maxSize = n
	}
}

// NewMemory returns a memory stream holding a copy of data.
func NewMemory(data []byte, opts ...MemoryOption) *Memory {
	m := &Memory{data: append([]byte(nil), data...)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bytes returns a copy of the stream contents.
func (m *Memory) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.data...)
}

// ReadAt implements io.ReaderAt.
func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt, growing the stream as needed.
func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, io.ErrShortWrite
	}
	if len(p) == 0 {
		return 0, nil
	}
	end := off + int64(len(p))
	if end > int64(len(m.data)) {
		if err := m.resize(end); err != nil {
			return 0, err
		}
	}
	return copy(m.data[off:], p), nil
}

// Size returns the stream length.
func (m *Memory) Size() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	return int64(len(m.data)), nil
}

// Truncate changes the stream length.
func (m *Memory) Truncate(size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if size < 0 {
		return io.ErrShortWrite
	}
	return m.resize(size)
}

// Sync is a no-op.
func (m *Memory) Sync() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the stream closed. The contents stay available through Bytes.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// resize sets the length to size, zero-filling any growth.
func (m *Memory) resize(size int64) error {
	if m.maxSize > 0 && size > m.maxSize {
		return ErrNoSpace
	}
	cur := int64(len(m.data))
	if size <= cur {
		m.data = m.data[:size]
		return nil
	}
	if size <= int64(cap(m.data)) {
		m.data = m.data[:size]
		clear(m.data[cur:])
		return nil
	}
	grown := make([]byte, size, max(size, 2*int64(cap(m.data))))
	copy(grown, m.data)
	m.data = grown
	return nil
}
