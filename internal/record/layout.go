package record

// ClusterSize is the allocation granularity of the data area.
const ClusterSize = 4096

// Layout locates the fixed tables of an archive in its stream.
type Layout struct {
	MaxFiles  int
	MaxBlocks int
}

// BlockTableOffset is the offset of block slot 0.
func (l Layout) BlockTableOffset() int64 {
	return HeaderSize
}

// NameTableOffset is the offset of name slot 0.
func (l Layout) NameTableOffset() int64 {
	return l.BlockTableOffset() + int64(l.MaxBlocks)*BlockSize
}

// DataOffset is the cluster-aligned start of the data area.
func (l Layout) DataOffset() int64 {
	return AlignUp(l.NameTableOffset() + int64(l.MaxFiles)*NameSlotSize)
}

// BlockOffset returns the offset of block slot i.
func (l Layout) BlockOffset(i int) int64 {
	return l.BlockTableOffset() + int64(i)*BlockSize
}

// NameOffset returns the offset of name slot i.
func (l Layout) NameOffset(i int) int64 {
	return l.NameTableOffset() + int64(i)*NameSlotSize
}

// ClusterOffset returns the absolute stream offset of cluster c.
func ClusterOffset(c uint32) int64 {
	return int64(c) * ClusterSize
}

// Clusters returns how many clusters n bytes occupy.
func Clusters(n int64) int64 {
	return (n + ClusterSize - 1) / ClusterSize
}

// AlignUp rounds n up to the next multiple of ClusterSize.
func AlignUp(n int64) int64 {
	return Clusters(n) * ClusterSize
}
