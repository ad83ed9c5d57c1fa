package packfs

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
)

// FileInfo describes one file in the archive.
type FileInfo struct {
	// Name is the file name.
	Name string

	// Offset is the absolute stream offset of the file content.
	Offset int64

	// Length is the file length in bytes.
	Length int64
}

// HasFile reports whether the archive contains a file named name.
func (a *Archive) HasFile(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.dir[name]
	return ok
}

// FileInfo returns the location and length of the named file.
func (a *Archive) FileInfo(name string) (FileInfo, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return FileInfo{}, false
	}
	b, ok := a.lookup(name)
	if !ok {
		return FileInfo{}, false
	}
	return FileInfo{Name: name, Offset: b.Offset(), Length: b.Length}, true
}

// FileInfos returns every file in the archive sorted by name.
func (a *Archive) FileInfos() []FileInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot()
}

// Files returns an iterator over a snapshot of the archive's files, sorted
// by name.
func (a *Archive) Files() iter.Seq[FileInfo] {
	infos := a.FileInfos()
	return slices.Values(infos)
}

// snapshot lists the directory sorted by name. Callers hold a.mu.
func (a *Archive) snapshot() []FileInfo {
	if a.closed {
		return nil
	}
	infos := make([]FileInfo, 0, len(a.dir))
	for name, index := range a.dir {
		b := a.alloc.Block(index)
		infos = append(infos, FileInfo{Name: name, Offset: b.Offset(), Length: b.Length})
	}
	slices.SortFunc(infos, func(x, y FileInfo) int {
		return cmp.Compare(x.Name, y.Name)
	})
	return infos
}

// Stats summarizes the space usage of an archive.
type Stats struct {
	// Files and MaxFiles count stored files against the file capacity.
	Files    int
	MaxFiles int

	// Blocks counts allocated block slots, used and free, against MaxBlocks.
	Blocks    int
	MaxBlocks int

	// FreeBlocks is the number of free spans in the data area.
	FreeBlocks int

	// EmptySlots is the number of block slots that back no clusters.
	EmptySlots int

	// UsedBytes is the total length of all files.
	UsedBytes int64

	// FreeBytes is the total length of all free spans.
	FreeBytes int64

	// DataOffset is where the data area begins.
	DataOffset int64

	// StreamSize is the current length of the backing stream.
	StreamSize int64
}

// Stats reports how the archive uses its capacities and stream.
func (a *Archive) Stats() (Stats, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if err := a.checkOpen("stats", a.path); err != nil {
		return Stats{}, err
	}

	size, err := a.s.Size()
	if err != nil {
		return Stats{}, fmt.Errorf("stats: stream size: %w", err)
	}
	st := Stats{
		Files:      len(a.dir),
		MaxFiles:   a.maxFiles(),
		Blocks:     a.alloc.Len(),
		MaxBlocks:  int(a.tables.header.MaxBlocks),
		EmptySlots: a.alloc.EmptySlots(),
		DataOffset: a.tables.layout.DataOffset(),
		StreamSize: size,
	}
	for _, index := range a.dir {
		st.UsedBytes += a.alloc.Block(index).Length
	}
	for _, fb := range a.alloc.FreeBlocks() {
		st.FreeBlocks++
		st.FreeBytes += fb.Length
	}
	return st, nil
}
