package batch

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/meigma/packfs/internal/packtype"
	"github.com/meigma/packfs/internal/sizing"
)

// Entry locates one archive file in the backing stream.
type Entry struct {
	Name   string
	Offset int64
	Length int64
}

func (e *Entry) end() int64 {
	return e.Offset + e.Length
}

// span is one ReadAt: the byte range [off, end) and the entries inside it.
type span struct {
	off     int64
	end     int64
	entries []*Entry
}

func (s *span) size() int64 {
	return s.end - s.off
}

// slice returns the part of data, read from s, that holds e.
func (s *span) slice(data []byte, e *Entry) []byte {
	lo := e.Offset - s.off
	return data[lo : lo+e.Length]
}

// plan sorts entries by offset and packs them into spans. An entry joins the
// current span when it starts at most maxGap bytes after the span ends.
func plan(entries []*Entry, maxGap int64) ([]span, error) {
	for _, e := range entries {
		if e.Offset < 0 || e.Length < 0 {
			return nil, fmt.Errorf("%s: %w: offset %d length %d", e.Name, packtype.ErrInvalidArgument, e.Offset, e.Length)
		}
		if _, ok := sizing.AddInt64(e.Offset, e.Length); !ok {
			return nil, fmt.Errorf("%s: %w", e.Name, packtype.ErrSizeOverflow)
		}
	}
	if len(entries) == 0 {
		return nil, nil
	}

	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b *Entry) int {
		return cmp.Compare(a.Offset, b.Offset)
	})

	var spans []span
	cur := span{off: sorted[0].Offset, end: sorted[0].end(), entries: sorted[:1:1]}
	for _, e := range sorted[1:] {
		if e.Offset-cur.end > maxGap {
			spans = append(spans, cur)
			cur = span{off: e.Offset, end: e.end(), entries: []*Entry{e}}
			continue
		}
		cur.end = max(cur.end, e.end())
		cur.entries = append(cur.entries, e)
	}
	return append(spans, cur), nil
}
