package alloc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/packfs/internal/packtype"
	"github.com/meigma/packfs/internal/record"
)

const dataStart = record.ClusterSize

// memStore records persisted block table writes.
type memStore struct {
	blocks  map[int]record.Block
	count   int
	size    int64
	growErr error
}

func newMemStore(size int64) *memStore {
	return &memStore{blocks: make(map[int]record.Block), size: size}
}

func (s *memStore) WriteBlock(index int, b record.Block) error {
	s.blocks[index] = b
	return nil
}

func (s *memStore) WriteBlockCount(n int) error {
	s.count = n
	return nil
}

func (s *memStore) Size() (int64, error) {
	return s.size, nil
}

func (s *memStore) Grow(size int64) error {
	if s.growErr != nil {
		return s.growErr
	}
	s.size = size
	return nil
}

func used(slot int32, cluster uint32, length int64) record.Block {
	return record.Block{NameSlot: slot, Cluster: cluster, Length: length}
}

func free(cluster uint32, length int64) record.Block {
	return record.Block{NameSlot: record.FreeSlot, Cluster: cluster, Length: length}
}

func TestAllocateZeroLength(t *testing.T) {
	t.Parallel()

	store := newMemStore(dataStart)
	a := New(2, store)

	first, err := a.Allocate(0)
	require.NoError(t, err)
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, store.count, "table growth is persisted")

	second, err := a.Allocate(0)
	require.NoError(t, err)
	assert.Equal(t, 1, second)

	_, err = a.Allocate(0)
	require.ErrorIs(t, err, packtype.ErrBlockLimit)
	require.ErrorIs(t, err, packtype.ErrFull)

	require.NoError(t, a.Free(first))
	assert.Equal(t, 1, a.EmptySlots())

	again, err := a.Allocate(0)
	require.NoError(t, err)
	assert.Equal(t, first, again, "empty slots are reused")
	assert.Equal(t, int64(dataStart), store.size, "zero-length files never grow the stream")
}

func TestAllocateBestFit(t *testing.T) {
	t.Parallel()

	blocks := []record.Block{
		free(1, 4096),
		used(0, 2, 10),
		free(3, 8192),
		used(1, 5, 10),
		free(6, 12288),
	}
	store := newMemStore(9 * record.ClusterSize)
	a := Load(blocks, 8, store)

	index, err := a.Allocate(5000)
	require.NoError(t, err)
	assert.Equal(t, 2, index, "the 8192-byte block is the best fit")
	assert.Equal(t, int64(8192), a.Block(index).Length)
	assert.Equal(t, 5, a.Len(), "exact fits do not touch the table")
	assert.Equal(t, int64(9*record.ClusterSize), store.size)

	remaining := a.FreeBlocks()
	require.Len(t, remaining, 2)
	assert.Equal(t, int64(4096), remaining[0].Length)
	assert.Equal(t, int64(12288), remaining[1].Length)
}

func TestAllocateSplit(t *testing.T) {
	t.Parallel()

	store := newMemStore(5 * record.ClusterSize)
	a := Load([]record.Block{free(2, 12288)}, 4, store)

	index, err := a.Allocate(5000)
	require.NoError(t, err)
	assert.Equal(t, 0, index)
	assert.Equal(t, free(2, 8192), a.Block(index))

	require.Equal(t, 2, a.Len())
	assert.Equal(t, free(4, 4096), a.Block(1), "remainder follows the shrunk block")
	assert.Equal(t, free(4, 4096), store.blocks[1])
	assert.Equal(t, free(2, 8192), store.blocks[0])
	assert.Equal(t, 2, store.count)

	require.Equal(t, []FreeBlock{{Index: 1, Cluster: 4, Length: 4096}}, a.FreeBlocks())
}

func TestAllocateSplitNeedsSpareSlot(t *testing.T) {
	t.Parallel()

	store := newMemStore(5 * record.ClusterSize)
	a := Load([]record.Block{free(2, 12288)}, 1, store)

	_, err := a.Allocate(5000)
	require.ErrorIs(t, err, packtype.ErrBlockLimit)
	assert.Equal(t, []FreeBlock{{Index: 0, Cluster: 2, Length: 12288}}, a.FreeBlocks(), "failed split leaves the table intact")
	assert.Empty(t, store.blocks)

	index, err := a.Allocate(12288)
	require.NoError(t, err, "an exact fit needs no spare slot")
	assert.Equal(t, 0, index)
}

func TestAllocateSplitReusesEmptySlot(t *testing.T) {
	t.Parallel()

	store := newMemStore(5 * record.ClusterSize)
	a := Load([]record.Block{free(2, 12288), record.EmptyBlock}, 2, store)

	index, err := a.Allocate(4096)
	require.NoError(t, err)
	assert.Equal(t, 0, index)
	assert.Equal(t, free(3, 8192), a.Block(1))
	assert.Zero(t, a.EmptySlots())
}

func TestAllocateGrowsStream(t *testing.T) {
	t.Parallel()

	store := newMemStore(dataStart)
	a := New(4, store)

	first, err := a.Allocate(100)
	require.NoError(t, err)
	assert.Equal(t, free(1, 100), a.Block(first))
	assert.Equal(t, int64(dataStart+100), store.size)

	second, err := a.Allocate(5000)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), a.Block(second).Cluster, "new blocks start on the next cluster boundary")
	assert.Equal(t, int64(2*record.ClusterSize+5000), store.size)
}

func TestAllocateGrowFailure(t *testing.T) {
	t.Parallel()

	store := newMemStore(dataStart)
	store.growErr = errors.New("disk full")
	a := New(4, store)

	_, err := a.Allocate(100)
	require.ErrorIs(t, err, packtype.ErrNoSpace)
	require.ErrorIs(t, err, packtype.ErrFull)
	assert.Equal(t, 1, a.EmptySlots(), "the slot taken for the block is recycled")

	store.growErr = nil
	index, err := a.Allocate(100)
	require.NoError(t, err)
	assert.Equal(t, 0, index)
	assert.Equal(t, 1, a.Len())
}

func TestAllocateFreedTailBlockGrowsStream(t *testing.T) {
	t.Parallel()

	store := newMemStore(dataStart)
	a := New(4, store)

	index, err := a.Allocate(100)
	require.NoError(t, err)
	require.NoError(t, a.Use(index, 0, 100))
	require.NoError(t, a.Free(index))
	require.Equal(t, int64(dataStart+100), store.size, "the freed span reaches past the end of the stream")

	store.growErr = errors.New("disk full")
	_, err = a.Allocate(record.ClusterSize)
	require.ErrorIs(t, err, packtype.ErrNoSpace)
	require.ErrorIs(t, err, packtype.ErrFull)
	assert.Equal(t, []FreeBlock{{Index: index, Cluster: 1, Length: record.ClusterSize}}, a.FreeBlocks(),
		"the span stays free")

	store.growErr = nil
	again, err := a.Allocate(record.ClusterSize)
	require.NoError(t, err)
	assert.Equal(t, index, again)
	assert.Equal(t, int64(2*record.ClusterSize), store.size)
}

func TestAllocateNegative(t *testing.T) {
	t.Parallel()

	a := New(4, newMemStore(dataStart))
	_, err := a.Allocate(-1)
	require.ErrorIs(t, err, packtype.ErrInvalidArgument)
}

func TestUse(t *testing.T) {
	t.Parallel()

	store := newMemStore(dataStart)
	a := New(4, store)

	index, err := a.Allocate(100)
	require.NoError(t, err)
	require.NoError(t, a.Use(index, 3, 100))
	assert.Equal(t, used(3, 1, 100), a.Block(index))
	assert.Equal(t, used(3, 1, 100), store.blocks[index])

	require.ErrorIs(t, a.Use(index, record.FreeSlot, 100), packtype.ErrInvalidArgument)
}

func TestFreeCoalescesNeighbours(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		order []int
	}{
		{name: "left then right", order: []int{0, 1}},
		{name: "right then left", order: []int{1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			blocks := []record.Block{
				used(0, 1, 5000),
				used(1, 3, 100),
				used(2, 4, 10),
			}
			store := newMemStore(4*record.ClusterSize + 10)
			a := Load(blocks, 8, store)

			for _, index := range tt.order {
				require.NoError(t, a.Free(index))
			}

			freeBlocks := a.FreeBlocks()
			require.Len(t, freeBlocks, 1)
			assert.Equal(t, uint32(1), freeBlocks[0].Cluster)
			assert.Equal(t, int64(3*record.ClusterSize), freeBlocks[0].Length)
			assert.Equal(t, 1, a.EmptySlots())

			absorbed := tt.order[0]
			assert.Equal(t, record.EmptyBlock, store.blocks[absorbed], "absorbed slot is persisted as empty")
			survivor := freeBlocks[0].Index
			assert.Equal(t, free(1, 3*record.ClusterSize), store.blocks[survivor])

			index, err := a.Allocate(3 * record.ClusterSize)
			require.NoError(t, err)
			assert.Equal(t, survivor, index, "the merged span satisfies a request of its full size")
		})
	}
}

func TestFreeCoalescesBothSides(t *testing.T) {
	t.Parallel()

	blocks := []record.Block{
		used(0, 1, 4096),
		used(1, 2, 4096),
		used(2, 3, 4096),
	}
	a := Load(blocks, 8, newMemStore(4*record.ClusterSize))

	require.NoError(t, a.Free(0))
	require.NoError(t, a.Free(2))
	require.Len(t, a.FreeBlocks(), 2)

	require.NoError(t, a.Free(1))
	assert.Equal(t, []FreeBlock{{Index: 1, Cluster: 1, Length: 3 * record.ClusterSize}}, a.FreeBlocks())
	assert.Equal(t, 2, a.EmptySlots())
}

func TestFreeDoesNotMergeDistantBlocks(t *testing.T) {
	t.Parallel()

	blocks := []record.Block{
		used(0, 1, 4096),
		used(1, 2, 4096),
		used(2, 3, 4096),
	}
	a := Load(blocks, 8, newMemStore(4*record.ClusterSize))

	require.NoError(t, a.Free(0))
	require.NoError(t, a.Free(2))

	assert.Len(t, a.FreeBlocks(), 2)
	assert.Zero(t, a.EmptySlots())
}

func TestFreeZeroLength(t *testing.T) {
	t.Parallel()

	blocks := []record.Block{used(0, 0, 0), used(1, 1, 4096)}
	store := newMemStore(2 * record.ClusterSize)
	a := Load(blocks, 4, store)

	require.NoError(t, a.Free(0))
	assert.Equal(t, 1, a.EmptySlots())
	assert.Empty(t, a.FreeBlocks())
	assert.Equal(t, record.EmptyBlock, store.blocks[0])
}

func TestLoadRegistersFreeBlocks(t *testing.T) {
	t.Parallel()

	blocks := []record.Block{
		used(0, 1, 10),
		free(2, 8192),
		record.EmptyBlock,
		record.EmptyBlock,
	}
	a := Load(blocks, 8, newMemStore(4*record.ClusterSize))

	assert.Equal(t, 4, a.Len())
	assert.Equal(t, 2, a.EmptySlots())
	assert.Equal(t, []FreeBlock{{Index: 1, Cluster: 2, Length: 8192}}, a.FreeBlocks())

	index, err := a.Allocate(0)
	require.NoError(t, err)
	assert.Equal(t, 2, index, "empty slots are handed out in index order")
}
