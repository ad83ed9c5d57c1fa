package packfs

import (
	"errors"
	"fmt"
	"io"

	"github.com/meigma/packfs/internal/alloc"
	"github.com/meigma/packfs/internal/names"
	"github.com/meigma/packfs/internal/packtype"
	"github.com/meigma/packfs/internal/record"
	"github.com/meigma/packfs/stream"
)

// tables persists the header, block table, and name table of one archive.
// It owns a single scratch buffer sized to the largest record, so it must
// only be used under the archive's write lock.
type tables struct {
	s      stream.Stream
	layout record.Layout
	header record.Header
	buf    [record.NameSlotSize]byte
}

var (
	_ alloc.Store = (*tables)(nil)
	_ names.Store = (*tables)(nil)
)

func newTables(s stream.Stream, h record.Header) *tables {
	return &tables{
		s:      s,
		header: h,
		layout: record.Layout{MaxFiles: int(h.MaxFiles), MaxBlocks: int(h.MaxBlocks)},
	}
}

// WriteHeader persists the in-memory header.
func (t *tables) WriteHeader() error {
	buf := t.buf[:record.HeaderSize]
	t.header.Encode(buf)
	return t.writeAt(buf, 0, "header")
}

// WriteBlock implements alloc.Store.
func (t *tables) WriteBlock(index int, b record.Block) error {
	buf := t.buf[:record.BlockSize]
	b.Encode(buf)
	return t.writeAt(buf, t.layout.BlockOffset(index), "block record")
}

// WriteBlockCount implements alloc.Store.
func (t *tables) WriteBlockCount(n int) error {
	prev := t.header.BlockCount
	t.header.BlockCount = int32(n) //nolint:gosec // n <= MaxBlocks
	if err := t.WriteHeader(); err != nil {
		t.header.BlockCount = prev
		return err
	}
	return nil
}

// WriteSlot implements names.Store.
func (t *tables) WriteSlot(index int, s record.NameSlot) error {
	buf := t.buf[:record.NameSlotSize]
	s.Encode(buf)
	return t.writeAt(buf, t.layout.NameOffset(index), "name slot")
}

// Size implements alloc.Store.
func (t *tables) Size() (int64, error) {
	size, err := t.s.Size()
	if err != nil {
		return 0, fmt.Errorf("stream size: %w", err)
	}
	return size, nil
}

// Grow implements alloc.Store.
func (t *tables) Grow(size int64) error {
	return t.s.Truncate(size)
}

func (t *tables) writeAt(p []byte, off int64, what string) error {
	if _, err := t.s.WriteAt(p, off); err != nil {
		return fmt.Errorf("write %s: %w", what, err)
	}
	return nil
}

// readFull reads len(p) bytes at off. A stream that ends early is corrupt.
func readFull(r io.ReaderAt, p []byte, off int64, what string) error {
	n, err := r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s truncated at offset %d (%d of %d bytes)", packtype.ErrCorrupt, what, off, n, len(p))
	}
	return fmt.Errorf("read %s: %w", what, err)
}
