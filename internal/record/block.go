package record

import (
	"encoding/binary"
	"math"
)

// BlockSize is the encoded size of Block.
const BlockSize = 16 // 4 + 4 + 8

// FreeSlot is the name slot sentinel of a free block.
const FreeSlot int32 = -1

// MaxCluster is the largest cluster index a block can start at.
const MaxCluster = math.MaxUint32

// Block is one block table entry.
//
// A used block has NameSlot >= 0 and Length equal to the logical file length.
// A free block has NameSlot < 0 and a cluster-aligned Length; a free block of
// length zero is an empty table slot that backs no clusters.
type Block struct {
	NameSlot int32
	Cluster  uint32
	Length   int64
}

// EmptyBlock is the value stored in recycled table slots.
var EmptyBlock = Block{NameSlot: FreeSlot}

// IsFree reports whether b is not backing a file.
func (b Block) IsFree() bool {
	return b.NameSlot < 0
}

// Offset returns the absolute stream offset of the block's first cluster.
func (b Block) Offset() int64 {
	return ClusterOffset(b.Cluster)
}

// Clusters returns the number of clusters the block spans.
func (b Block) Clusters() int64 {
	return Clusters(b.Length)
}

// End returns the first cluster after the block.
func (b Block) End() int64 {
	return int64(b.Cluster) + b.Clusters()
}

// Encode writes b into buf[:BlockSize].
func (b *Block) Encode(buf []byte) {
	_ = buf[BlockSize-1]
	binary.LittleEndian.PutUint32(buf[0:4], uint32(b.NameSlot))
	binary.LittleEndian.PutUint32(buf[4:8], b.Cluster)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(b.Length))
}

// DecodeBlock reads a block from buf[:BlockSize].
func DecodeBlock(buf []byte) Block {
	_ = buf[BlockSize-1]
	return Block{
		NameSlot: int32(binary.LittleEndian.Uint32(buf[0:4])),
		Cluster:  binary.LittleEndian.Uint32(buf[4:8]),
		Length:   int64(binary.LittleEndian.Uint64(buf[8:16])),
	}
}
