// Package testutil provides stream fixtures shared by archive tests.
package testutil

import (
	"errors"
	"sync"

	"github.com/meigma/packfs/stream"
)

// ErrInjected is returned by FaultStream for every injected failure.
var ErrInjected = errors.New("testutil: injected failure")

// FaultStream wraps a stream and fails selected operations on demand.
// It also records how often the archive flushed and whether it closed
// the stream.
type FaultStream struct {
	stream.Stream

	mu           sync.Mutex
	writesLeft   int // <0 means unlimited
	failTruncate bool
	failSync     bool
	writes       int
	syncs        int
	closed       bool
}

// NewFaultStream wraps s without injecting anything.
func NewFaultStream(s stream.Stream) *FaultStream {
	return &FaultStream{Stream: s, writesLeft: -1}
}

// FailWritesAfter lets n more WriteAt calls through and fails the rest.
// A negative n removes the limit.
func (f *FaultStream) FailWritesAfter(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writesLeft = n
}

// FailTruncate makes Truncate fail while enabled.
func (f *FaultStream) FailTruncate(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failTruncate = enabled
}

// FailSync makes Sync fail while enabled.
func (f *FaultStream) FailSync(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSync = enabled
}

// WriteAt forwards to the wrapped stream unless the write budget is spent.
func (f *FaultStream) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	if f.writesLeft == 0 {
		f.mu.Unlock()
		return 0, ErrInjected
	}
	if f.writesLeft > 0 {
		f.writesLeft--
	}
	f.writes++
	f.mu.Unlock()
	return f.Stream.WriteAt(p, off)
}

// Truncate forwards to the wrapped stream unless truncation fails.
func (f *FaultStream) Truncate(size int64) error {
	f.mu.Lock()
	fail := f.failTruncate
	f.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return f.Stream.Truncate(size)
}

// Sync forwards to the wrapped stream unless syncing fails.
func (f *FaultStream) Sync() error {
	f.mu.Lock()
	fail := f.failSync
	f.syncs++
	f.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return f.Stream.Sync()
}

// Close records the close and forwards it.
func (f *FaultStream) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return f.Stream.Close()
}

// Writes returns the number of successful WriteAt calls.
func (f *FaultStream) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// Syncs returns the number of Sync calls.
func (f *FaultStream) Syncs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.syncs
}

// Closed reports whether Close was called.
func (f *FaultStream) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
