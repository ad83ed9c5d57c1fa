// Package sizing provides overflow-safe size arithmetic for archive offsets.
package sizing

import "math"

// ToInt converts an int64 to int, returning overflowErr if it doesn't fit
// or is negative.
func ToInt(size int64, overflowErr error) (int, error) {
	if size < 0 || size > int64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// ToInt32 converts an int to int32, returning overflowErr if it doesn't fit
// or is negative.
func ToInt32(n int, overflowErr error) (int32, error) {
	if n < 0 || int64(n) > math.MaxInt32 {
		return 0, overflowErr
	}
	return int32(n), nil
}

// AddInt64 adds two non-negative int64 values, returning (result, false) on overflow.
func AddInt64(a, b int64) (int64, bool) {
	if a < 0 || b < 0 || a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

// ClampSegment bounds the segment [offset, offset+length) to a payload of
// size bytes. It returns the clamped offset and the number of bytes left.
// Offsets past the end yield zero bytes.
func ClampSegment(offset, length, size int64) (start, n int64) {
	if offset >= size {
		return size, 0
	}
	if length > size-offset {
		length = size - offset
	}
	return offset, length
}
