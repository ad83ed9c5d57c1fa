package batch

import "io"

// Sink receives file content.
type Sink interface {
	// Want reports whether the entry should be written. Entries the sink
	// does not want are counted as skipped.
	Want(e *Entry) bool

	// Create returns the destination for the entry's content.
	Create(e *Entry) (Pending, error)
}

// Pending is a destination that becomes visible only on Commit.
type Pending interface {
	io.Writer

	// Commit publishes the written content.
	Commit() error

	// Abort drops the written content.
	Abort() error
}

// Stats reports what Run did.
type Stats struct {
	// Written is the number of entries committed to the sink.
	Written int

	// Skipped is the number of entries the sink did not want.
	Skipped int

	// Bytes is the total length of the written entries.
	Bytes int64
}
