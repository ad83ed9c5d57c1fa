// Package packfs stores many named files inside a single backing stream.
//
// An archive is a fixed header, a block table, a name table, and a data area
// quantized in 4096-byte clusters. Capacities are fixed when the archive is
// created. Every mutation is written through to the stream and flushed before
// the call returns, so the stream always holds the complete archive state.
//
//	s, err := stream.CreateFile("assets.pkf")
//	if err != nil {
//	    return err
//	}
//	a, err := packfs.Create("assets.pkf", packfs.AccessReadWrite, s, 64, 256)
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	if err := a.WriteFile("config.json", data); err != nil {
//	    return err
//	}
//	content, err := a.ReadFile("config.json")
//
// # Capacity
//
// Running out of file slots, block slots, or stream space is reported with
// errors that match [ErrFull]. Nothing in the archive changes when a write
// fails this way, so callers can free space and retry.
//
// # Missing files
//
// The ReadFile family returns empty results for names that do not exist.
// Operations that need the file to exist (DeleteFile, RenameFile,
// SaveAsFile, Digest) return an error matching [fs.ErrNotExist].
//
// # Crash behavior
//
// Overwriting a file writes the new payload to a fresh block before the old
// block is released. A crash before the new block is recorded leaves the
// previous content readable after reload. A crash after that point leaves two
// blocks naming the file. Load keeps the one later in the block table, which
// may be either of them, and leaves the stored tables as they are. The other
// block is released when the file is next written, renamed or deleted, or at
// load with [WithReclaimDuplicates].
//
// # Concurrency
//
// An Archive serializes its own operations. A backing stream must be owned by
// exactly one Archive between Create or Load and Shutdown.
package packfs
