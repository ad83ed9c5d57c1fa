// Package packtype holds the types and sentinel errors shared by the archive
// packages.
package packtype

// Access describes which operations an archive handle permits.
type Access uint8

const (
	AccessRead Access = 1 << iota
	AccessWrite

	AccessReadWrite = AccessRead | AccessWrite
)

// CanRead reports whether a includes read access.
func (a Access) CanRead() bool {
	return a&AccessRead != 0
}

// CanWrite reports whether a includes write access.
func (a Access) CanWrite() bool {
	return a&AccessWrite != 0
}

// Valid reports whether a names at least one known mode and nothing else.
func (a Access) Valid() bool {
	return a != 0 && a&^AccessReadWrite == 0
}

// String returns the human-readable name of the access mode.
func (a Access) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessReadWrite:
		return "read-write"
	default:
		return "unknown"
	}
}
