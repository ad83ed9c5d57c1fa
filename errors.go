package packfs

import "github.com/meigma/packfs/internal/packtype"

// Sentinel errors re-exported from internal/packtype.
var (
	// ErrInvalidName is returned when a file name is empty.
	ErrInvalidName = packtype.ErrInvalidName

	// ErrNameTooLong is returned when a file name is longer than 255 bytes.
	ErrNameTooLong = packtype.ErrNameTooLong

	// ErrInvalidArgument is returned for negative offsets, lengths, or sizes,
	// for capacities that break the archive invariants, and for nil streams.
	ErrInvalidArgument = packtype.ErrInvalidArgument

	// ErrAccess is returned when the archive was opened without the access
	// mode an operation needs.
	ErrAccess = packtype.ErrAccess

	// ErrClosed is returned by every operation after Shutdown.
	ErrClosed = packtype.ErrClosed

	// ErrCorrupt is returned by Load when persisted structures fail validation.
	ErrCorrupt = packtype.ErrCorrupt

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = packtype.ErrSizeOverflow

	// ErrFull matches every capacity exhaustion error.
	ErrFull = packtype.ErrFull

	// ErrFileLimit is returned when a new name would exceed the file capacity.
	ErrFileLimit = packtype.ErrFileLimit

	// ErrBlockLimit is returned when the block table has no slot left.
	ErrBlockLimit = packtype.ErrBlockLimit

	// ErrNoSpace is returned when the backing stream cannot grow.
	ErrNoSpace = packtype.ErrNoSpace
)

// Access describes which operations an archive handle permits.
type Access = packtype.Access

// Access modes.
const (
	AccessRead      = packtype.AccessRead
	AccessWrite     = packtype.AccessWrite
	AccessReadWrite = packtype.AccessReadWrite
)
