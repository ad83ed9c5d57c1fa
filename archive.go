package packfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/meigma/packfs/internal/alloc"
	"github.com/meigma/packfs/internal/names"
	"github.com/meigma/packfs/internal/packtype"
	"github.com/meigma/packfs/internal/record"
	"github.com/meigma/packfs/stream"
)

// Archive is an open packed-file archive.
//
// The zero value is not usable; obtain an Archive from Create or Load.
// After Shutdown every operation fails with ErrClosed.
type Archive struct {
	mu     sync.RWMutex
	path   string
	access Access
	s      stream.Stream
	tables *tables
	alloc  *alloc.Allocator
	names  *names.Table
	dir    map[string]int // file name -> block index
	// shadowed holds blocks that carry a live name but lost to a later
	// block of that name at load, in table order.
	shadowed map[string][]int
	closed   bool
	logger   *slog.Logger
}

// Interface compliance.
var _ io.Closer = (*Archive)(nil)

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// Create initializes a new archive on s and returns it open.
//
// The stream is truncated and receives a fresh header with a random name key,
// room for maxBlocks block records and maxFiles name slots, and no blocks.
// Capacities must satisfy 0 < maxFiles <= maxBlocks.
//
// The archive takes ownership of s. If Create fails, s is closed.
func Create(path string, access Access, s stream.Stream, maxFiles, maxBlocks int, opts ...Option) (*Archive, error) {
	a, err := create(path, access, s, maxFiles, maxBlocks, newConfig(opts))
	if err != nil {
		if s != nil {
			_ = s.Close() //nolint:errcheck // teardown after a failed create
		}
		return nil, &fs.PathError{Op: "create", Path: path, Err: err}
	}
	return a, nil
}

func create(path string, access Access, s stream.Stream, maxFiles, maxBlocks int, cfg *config) (*Archive, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil stream", packtype.ErrInvalidArgument)
	}
	if !access.Valid() {
		return nil, fmt.Errorf("%w: access mode %d", packtype.ErrInvalidArgument, access)
	}
	if maxFiles <= 0 || maxFiles > maxBlocks || maxBlocks > record.MaxCapacity {
		return nil, fmt.Errorf("%w: capacities must satisfy 0 < max files (%d) <= max blocks (%d) <= %d",
			packtype.ErrInvalidArgument, maxFiles, maxBlocks, record.MaxCapacity)
	}

	var key [record.KeySize]byte
	if _, err := io.ReadFull(cfg.rand, key[:]); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	//nolint:gosec // capacities are bounded by record.MaxCapacity above
	t := newTables(s, record.NewHeader(key, int32(maxFiles), int32(maxBlocks)))
	dataOffset := t.layout.DataOffset()
	if err := s.Truncate(0); err != nil {
		return nil, fmt.Errorf("truncate stream: %w", err)
	}
	if err := s.Truncate(dataOffset); err != nil {
		return nil, fmt.Errorf("reserve tables: %w", err)
	}
	if err := t.WriteHeader(); err != nil {
		return nil, err
	}
	if err := s.Sync(); err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}

	a := &Archive{
		path:   path,
		access: access,
		s:      s,
		tables: t,
		dir:    make(map[string]int),
		logger: cfg.logger,
	}
	a.alloc = alloc.New(maxBlocks, t, alloc.WithLogger(cfg.logger))
	a.names = names.New(key, maxFiles, t, names.WithRand(cfg.rand))

	a.log().Info("archive created",
		"path", path,
		"access", access.String(),
		"max_files", maxFiles,
		"max_blocks", maxBlocks,
		"data_offset", dataOffset)
	return a, nil
}

// Load opens an existing archive stored in s.
//
// Load validates the header and every block record and rebuilds the
// directory, the free-block map, and the name slot queue. Corrupt archives
// are rejected with an error matching ErrCorrupt.
//
// The archive takes ownership of s. If Load fails, s is closed.
func Load(path string, access Access, s stream.Stream, opts ...Option) (*Archive, error) {
	a, err := load(path, access, s, newConfig(opts))
	if err != nil {
		if s != nil {
			_ = s.Close() //nolint:errcheck // teardown after a failed load
		}
		return nil, &fs.PathError{Op: "load", Path: path, Err: err}
	}
	return a, nil
}

//nolint:gocognit,gocyclo // validation of every persisted record happens in one pass
func load(path string, access Access, s stream.Stream, cfg *config) (*Archive, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil stream", packtype.ErrInvalidArgument)
	}
	if !access.Valid() {
		return nil, fmt.Errorf("%w: access mode %d", packtype.ErrInvalidArgument, access)
	}

	var hbuf [record.HeaderSize]byte
	if err := readFull(s, hbuf[:], 0, "header"); err != nil {
		return nil, err
	}
	h := record.DecodeHeader(hbuf[:])
	if err := h.Validate(); err != nil {
		return nil, err
	}

	t := newTables(s, h)
	size, err := s.Size()
	if err != nil {
		return nil, fmt.Errorf("stream size: %w", err)
	}
	if size < t.layout.DataOffset() {
		return nil, fmt.Errorf("%w: stream of %d bytes is shorter than its tables (%d bytes)",
			packtype.ErrCorrupt, size, t.layout.DataOffset())
	}

	count := int(h.BlockCount)
	raw := make([]byte, count*record.BlockSize)
	if err := readFull(s, raw, t.layout.BlockTableOffset(), "block table"); err != nil {
		return nil, err
	}

	a := &Archive{
		path:   path,
		access: access,
		s:      s,
		tables: t,
		dir:    make(map[string]int),
		logger: cfg.logger,
	}

	blocks := make([]record.Block, count)
	used := make(map[int]record.NameSlot)
	dataStart := t.layout.DataOffset()
	var slotBuf [record.NameSlotSize]byte
	for i := range blocks {
		b := record.DecodeBlock(raw[i*record.BlockSize:])
		if b.Length < 0 {
			return nil, fmt.Errorf("%w: block %d has negative length %d", packtype.ErrCorrupt, i, b.Length)
		}
		if b.Length > 0 && b.Offset() < dataStart {
			return nil, fmt.Errorf("%w: block %d starts inside the tables", packtype.ErrCorrupt, i)
		}
		blocks[i] = b

		if b.IsFree() {
			if b.Length%record.ClusterSize != 0 {
				return nil, fmt.Errorf("%w: free block %d is not cluster aligned", packtype.ErrCorrupt, i)
			}
			if b.Length > 0 && b.Offset()+b.Length > record.AlignUp(size) {
				return nil, fmt.Errorf("%w: free block %d extends past the stream", packtype.ErrCorrupt, i)
			}
			continue
		}

		if b.Length > 0 && b.Offset()+b.Length > size {
			return nil, fmt.Errorf("%w: block %d extends past the stream", packtype.ErrCorrupt, i)
		}
		slotIdx := int(b.NameSlot)
		if slotIdx >= int(h.MaxFiles) {
			return nil, fmt.Errorf("%w: block %d references name slot %d of %d", packtype.ErrCorrupt, i, slotIdx, h.MaxFiles)
		}
		slot, ok := used[slotIdx]
		if !ok {
			if err := readFull(s, slotBuf[:], t.layout.NameOffset(slotIdx), "name slot"); err != nil {
				return nil, err
			}
			slot = record.DecodeNameSlot(slotBuf[:])
			if slot.Length == 0 {
				return nil, fmt.Errorf("%w: block %d references empty name slot %d", packtype.ErrCorrupt, i, slotIdx)
			}
			used[slotIdx] = slot
		}

		name := slot.Name(h.Key)
		if prev, dup := a.dir[name]; dup {
			a.log().Warn("duplicate file name in archive, keeping later block",
				"path", path, "name", name, "dropped_block", prev, "block", i)
			if a.shadowed == nil {
				a.shadowed = make(map[string][]int)
			}
			a.shadowed[name] = append(a.shadowed[name], prev)
		}
		a.dir[name] = i
	}

	a.alloc = alloc.Load(blocks, int(h.MaxBlocks), t, alloc.WithLogger(cfg.logger))
	a.names = names.Load(h.Key, int(h.MaxFiles), used, t, names.WithRand(cfg.rand))

	if cfg.reclaimDuplicates && access.CanWrite() && len(a.shadowed) > 0 {
		if err := a.reclaimAll(); err != nil {
			return nil, err
		}
	}

	a.log().Info("archive loaded",
		"path", path,
		"access", access.String(),
		"files", len(a.dir),
		"blocks", count,
		"max_files", h.MaxFiles,
		"max_blocks", h.MaxBlocks)
	return a, nil
}

// reclaimAll releases every shadowed block and flushes the tables.
func (a *Archive) reclaimAll() error {
	for _, name := range slices.Sorted(maps.Keys(a.shadowed)) {
		if err := a.releaseShadowed(name); err != nil {
			return err
		}
	}
	if err := a.s.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

// releaseShadowed frees the blocks shadowed by the live file name and clears
// the name slots that only they reference. All blocks of one slot carry the
// same name, so a slot shared with the live block is never cleared here.
func (a *Archive) releaseShadowed(name string) error {
	dropped := a.shadowed[name]
	if len(dropped) == 0 {
		return nil
	}
	cleared := make(map[int32]bool)
	if index, ok := a.dir[name]; ok {
		cleared[a.alloc.Block(index).NameSlot] = true
	}
	for len(dropped) > 0 {
		index := dropped[0]
		slot := a.alloc.Block(index).NameSlot
		if err := a.alloc.Free(index); err != nil {
			return fmt.Errorf("free shadowed block %d: %w", index, err)
		}
		dropped = dropped[1:]
		a.shadowed[name] = dropped
		if cleared[slot] {
			continue
		}
		if err := a.names.Clear(int(slot)); err != nil {
			return fmt.Errorf("clear shadowed name slot %d: %w", slot, err)
		}
		cleared[slot] = true
	}
	delete(a.shadowed, name)
	a.log().Warn("released shadowed blocks", "path", a.path, "name", name)
	return nil
}

// Shutdown flushes and closes the stream and releases all in-memory state.
// The archive is unusable afterwards; calling Shutdown again returns ErrClosed.
func (a *Archive) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return packtype.ErrClosed
	}
	a.closed = true

	var syncErr error
	if a.access.CanWrite() {
		syncErr = a.s.Sync()
	}
	closeErr := a.s.Close()

	a.dir = nil
	a.shadowed = nil
	a.alloc = nil
	a.names = nil
	a.tables = nil

	a.log().Info("archive shut down", "path", a.path)
	if err := errors.Join(syncErr, closeErr); err != nil {
		return &fs.PathError{Op: "shutdown", Path: a.path, Err: err}
	}
	return nil
}

// Close implements io.Closer. It is equivalent to Shutdown.
func (a *Archive) Close() error {
	return a.Shutdown()
}

// Path returns the path the archive was created or loaded with.
func (a *Archive) Path() string {
	return a.path
}

// Access returns the access mode of the archive handle.
func (a *Archive) Access() Access {
	return a.access
}

// MaxFiles returns the file capacity fixed at creation.
func (a *Archive) MaxFiles() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return 0
	}
	return a.maxFiles()
}

// MaxBlocks returns the block capacity fixed at creation.
func (a *Archive) MaxBlocks() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return 0
	}
	return int(a.tables.header.MaxBlocks)
}

// Len returns the number of files in the archive.
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.dir)
}

// maxFiles returns the file capacity. Callers hold a.mu.
func (a *Archive) maxFiles() int {
	return int(a.tables.header.MaxFiles)
}

// checkOpen returns ErrClosed after Shutdown. Callers hold a.mu.
func (a *Archive) checkOpen(op, name string) error {
	if a.closed {
		return &fs.PathError{Op: op, Path: name, Err: packtype.ErrClosed}
	}
	return nil
}

// checkRead validates a read request. Callers hold a.mu.
func (a *Archive) checkRead(op, name string) error {
	if err := a.checkOpen(op, name); err != nil {
		return err
	}
	if !a.access.CanRead() {
		return &fs.PathError{Op: op, Path: name, Err: packtype.ErrAccess}
	}
	return checkName(op, name)
}

// checkWrite validates a mutation. Callers hold a.mu.
func (a *Archive) checkWrite(op, name string) error {
	if err := a.checkOpen(op, name); err != nil {
		return err
	}
	if !a.access.CanWrite() {
		return &fs.PathError{Op: op, Path: name, Err: packtype.ErrAccess}
	}
	return checkName(op, name)
}

func checkName(op, name string) error {
	if name == "" {
		return &fs.PathError{Op: op, Path: name, Err: packtype.ErrInvalidName}
	}
	if len(name) > record.MaxNameLength {
		return &fs.PathError{Op: op, Path: name, Err: packtype.ErrNameTooLong}
	}
	return nil
}

// sync flushes the stream after a mutation.
func (a *Archive) sync(op, name string) error {
	if err := a.s.Sync(); err != nil {
		return &fs.PathError{Op: op, Path: name, Err: fmt.Errorf("sync: %w", err)}
	}
	return nil
}
