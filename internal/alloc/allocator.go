package alloc

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/meigma/packfs/internal/packtype"
	"github.com/meigma/packfs/internal/record"
)

// Store persists block table changes and grows the backing stream.
type Store interface {
	// WriteBlock persists the record of block slot index.
	WriteBlock(index int, b record.Block) error

	// WriteBlockCount persists the number of allocated block slots.
	WriteBlockCount(n int) error

	// Size returns the current length of the backing stream.
	Size() (int64, error)

	// Grow extends the backing stream to size bytes.
	Grow(size int64) error
}

// FreeBlock describes a free span of the data area.
type FreeBlock struct {
	Index   int
	Cluster uint32
	Length  int64
}

// Allocator owns the in-memory block table and its free multimap.
type Allocator struct {
	blocks    []record.Block
	free      freeMap
	maxBlocks int
	store     Store
	logger    *slog.Logger
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithLogger sets the logger for allocation decisions.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Allocator) {
		a.logger = logger
	}
}

// New returns an allocator for an empty block table.
func New(maxBlocks int, store Store, opts ...Option) *Allocator {
	return Load(nil, maxBlocks, store, opts...)
}

// Load returns an allocator over an existing block table.
// Free blocks are registered in the free multimap in ascending index order.
// The blocks slice is owned by the allocator afterwards.
func Load(blocks []record.Block, maxBlocks int, store Store, opts ...Option) *Allocator {
	a := &Allocator{
		blocks:    blocks,
		free:      make(freeMap),
		maxBlocks: maxBlocks,
		store:     store,
	}
	for _, opt := range opts {
		opt(a)
	}
	for i, b := range a.blocks {
		if b.IsFree() {
			a.free.add(b.Length, i)
		}
	}
	return a
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Allocator) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// Len returns the number of allocated block slots, used and free.
func (a *Allocator) Len() int {
	return len(a.blocks)
}

// Block returns the record of block slot index.
func (a *Allocator) Block(index int) record.Block {
	return a.blocks[index]
}

// EmptySlots returns the number of slots that back no clusters.
func (a *Allocator) EmptySlots() int {
	return len(a.free[emptyBucket])
}

// FreeBlocks returns the free spans of the data area ordered by cluster.
// Empty slots are not included.
func (a *Allocator) FreeBlocks() []FreeBlock {
	var out []FreeBlock
	for length, bucket := range a.free {
		if length == emptyBucket {
			continue
		}
		for _, i := range bucket {
			b := a.blocks[i]
			out = append(out, FreeBlock{Index: i, Cluster: b.Cluster, Length: b.Length})
		}
	}
	slices.SortFunc(out, func(x, y FreeBlock) int {
		return cmp.Compare(x.Cluster, y.Cluster)
	})
	return out
}

// Allocate reserves a block able to hold n bytes and returns its index.
//
// The returned block is detached from the free multimap but still carries the
// free sentinel; the caller marks it used with Use once the payload is written,
// or hands it back with Free. A request for zero bytes returns an empty slot.
//
// Allocate fails with packtype.ErrBlockLimit when no table slot is available
// and with packtype.ErrNoSpace when the stream cannot grow.
func (a *Allocator) Allocate(n int64) (int, error) {
	if n < 0 {
		return -1, fmt.Errorf("%w: allocation of %d bytes", packtype.ErrInvalidArgument, n)
	}
	if n == 0 {
		return a.takeSlot()
	}

	want := record.AlignUp(n)
	if length, ok := a.free.bestFit(want); ok {
		index, _ := a.free.first(length)
		if length != want && !a.hasSpareSlot() {
			return -1, packtype.ErrBlockLimit
		}
		if err := a.back(index, n); err != nil {
			return -1, err
		}
		if length == want {
			a.free.remove(length, index)
			a.log().Debug("allocated free block", "index", index, "length", length)
			return index, nil
		}
		return a.split(index, want)
	}
	return a.grow(n)
}

// split shrinks the free block at index to want bytes and records the
// remainder in another slot.
func (a *Allocator) split(index int, want int64) (int, error) {
	if !a.hasSpareSlot() {
		return -1, packtype.ErrBlockLimit
	}
	b := a.blocks[index]
	a.free.remove(b.Length, index)

	rest, err := a.takeSlot()
	if err != nil {
		a.free.add(b.Length, index)
		return -1, err
	}

	remainder := record.Block{
		NameSlot: record.FreeSlot,
		Cluster:  b.Cluster + uint32(record.Clusters(want)), //nolint:gosec // inside an existing span
		Length:   b.Length - want,
	}
	b.Length = want
	if err := a.put(index, b); err != nil {
		return -1, err
	}
	if err := a.put(rest, remainder); err != nil {
		return -1, err
	}
	a.free.add(remainder.Length, rest)

	a.log().Debug("split free block", "index", index, "length", want, "remainder_index", rest, "remainder_length", remainder.Length)
	return index, nil
}

// back extends the stream so the first n bytes of the free block at index
// lie inside it. A freed tail block may reach past the end of the stream up
// to its cluster boundary.
func (a *Allocator) back(index int, n int64) error {
	size, err := a.store.Size()
	if err != nil {
		return err
	}
	end := a.blocks[index].Offset() + n
	if end <= size {
		return nil
	}
	if err := a.store.Grow(end); err != nil {
		a.log().Debug("stream growth failed", "index", index, "size", end, "error", err)
		return fmt.Errorf("%w: %w", packtype.ErrNoSpace, err)
	}
	return nil
}

// grow carves a new block at the cluster boundary after the current end of
// the stream.
func (a *Allocator) grow(n int64) (int, error) {
	index, err := a.takeSlot()
	if err != nil {
		return -1, err
	}

	size, err := a.store.Size()
	if err != nil {
		a.free.add(emptyBucket, index)
		return -1, err
	}
	start := record.AlignUp(size)
	cluster := start / record.ClusterSize
	if cluster > record.MaxCluster {
		a.free.add(emptyBucket, index)
		return -1, packtype.ErrNoSpace
	}
	if err := a.store.Grow(start + n); err != nil {
		a.free.add(emptyBucket, index)
		a.log().Debug("stream growth failed", "size", start+n, "error", err)
		return -1, fmt.Errorf("%w: %w", packtype.ErrNoSpace, err)
	}

	a.blocks[index] = record.Block{
		NameSlot: record.FreeSlot,
		Cluster:  uint32(cluster),
		Length:   n,
	}
	a.log().Debug("grew stream for block", "index", index, "cluster", cluster, "length", n)
	return index, nil
}

// hasSpareSlot reports whether takeSlot would succeed.
func (a *Allocator) hasSpareSlot() bool {
	return a.EmptySlots() > 0 || len(a.blocks) < a.maxBlocks
}

// takeSlot returns an empty slot, growing the table when none is queued.
func (a *Allocator) takeSlot() (int, error) {
	if index, ok := a.free.first(emptyBucket); ok {
		a.free.remove(emptyBucket, index)
		return index, nil
	}
	if len(a.blocks) >= a.maxBlocks {
		return -1, packtype.ErrBlockLimit
	}

	index := len(a.blocks)
	a.blocks = append(a.blocks, record.EmptyBlock)
	if err := a.store.WriteBlock(index, record.EmptyBlock); err != nil {
		a.blocks = a.blocks[:index]
		return -1, err
	}
	if err := a.store.WriteBlockCount(len(a.blocks)); err != nil {
		a.blocks = a.blocks[:index]
		return -1, err
	}
	return index, nil
}

// Use marks the block at index as backing the file in nameSlot.
func (a *Allocator) Use(index int, nameSlot int32, length int64) error {
	if nameSlot < 0 || length < 0 {
		return fmt.Errorf("%w: block %d for slot %d with length %d", packtype.ErrInvalidArgument, index, nameSlot, length)
	}
	b := a.blocks[index]
	b.NameSlot = nameSlot
	b.Length = length
	return a.put(index, b)
}

// Free releases the block at index and merges it with free neighbours.
func (a *Allocator) Free(index int) error {
	b := a.blocks[index]
	b.NameSlot = record.FreeSlot
	b.Length = record.AlignUp(b.Length)
	if b.Length == 0 {
		b = record.EmptyBlock
		if err := a.put(index, b); err != nil {
			return err
		}
		a.free.add(emptyBucket, index)
		return nil
	}
	a.blocks[index] = b
	return a.coalesce(index)
}

// coalesce merges the free block at index with the free block ending where
// it starts and the one starting where it ends. Absorbed slots become empty.
// The block at index must not be registered in the free multimap.
func (a *Allocator) coalesce(index int) error {
	b := a.blocks[index]
	prev, next := -1, -1
	for length, bucket := range a.free {
		if length == emptyBucket {
			continue
		}
		for _, i := range bucket {
			other := a.blocks[i]
			switch {
			case other.End() == int64(b.Cluster):
				prev = i
			case int64(other.Cluster) == b.End():
				next = i
			}
		}
	}

	if prev >= 0 {
		other := a.blocks[prev]
		b.Cluster = other.Cluster
		b.Length += other.Length
		if err := a.absorb(prev); err != nil {
			return err
		}
	}
	if next >= 0 {
		b.Length += a.blocks[next].Length
		if err := a.absorb(next); err != nil {
			return err
		}
	}

	if err := a.put(index, b); err != nil {
		return err
	}
	a.free.add(b.Length, index)
	if prev >= 0 || next >= 0 {
		a.log().Debug("coalesced free blocks", "index", index, "prev", prev, "next", next, "length", b.Length)
	}
	return nil
}

// absorb demotes a merged free block to an empty slot.
func (a *Allocator) absorb(index int) error {
	a.free.remove(a.blocks[index].Length, index)
	if err := a.put(index, record.EmptyBlock); err != nil {
		return err
	}
	a.free.add(emptyBucket, index)
	return nil
}

// put updates the in-memory record and persists it.
func (a *Allocator) put(index int, b record.Block) error {
	a.blocks[index] = b
	return a.store.WriteBlock(index, b)
}
