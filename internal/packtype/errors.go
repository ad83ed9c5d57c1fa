package packtype

import (
	"errors"
	"fmt"
)

// Sentinel errors for archive operations.
var (
	// ErrInvalidName is returned when a file name is empty.
	ErrInvalidName = errors.New("packfs: invalid file name")

	// ErrNameTooLong is returned when a file name encodes to more than 255 bytes.
	ErrNameTooLong = fmt.Errorf("%w: name too long", ErrInvalidName)

	// ErrInvalidArgument is returned for negative offsets, lengths, sizes,
	// and capacity values that break the archive invariants.
	ErrInvalidArgument = errors.New("packfs: invalid argument")

	// ErrAccess is returned when the archive was opened without the access
	// mode an operation needs.
	ErrAccess = errors.New("packfs: access denied")

	// ErrClosed is returned by every operation after Shutdown.
	ErrClosed = errors.New("packfs: archive is shut down")

	// ErrCorrupt is returned when persisted archive structures fail validation.
	ErrCorrupt = errors.New("packfs: archive corrupt")

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = errors.New("packfs: size overflow")

	// ErrFull is the parent of every capacity exhaustion error.
	ErrFull = errors.New("packfs: archive full")

	// ErrFileLimit is returned when the archive already holds max_file_count files.
	ErrFileLimit = fmt.Errorf("%w: file limit reached", ErrFull)

	// ErrBlockLimit is returned when the block table has no slot left.
	ErrBlockLimit = fmt.Errorf("%w: block limit reached", ErrFull)

	// ErrNoSpace is returned when the backing stream cannot grow.
	ErrNoSpace = fmt.Errorf("%w: stream cannot grow", ErrFull)
)
