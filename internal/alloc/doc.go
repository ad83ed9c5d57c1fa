// Package alloc manages the block table of an archive: which cluster spans
// back files, which are free, and which table slots are empty.
//
// Allocation is best-fit over a multimap from span length to block indices.
// Finding the best bucket is a linear scan of the bucket keys, which is fine
// while the block table stays small. Freed spans are merged with their
// immediate cluster neighbours. Table slots are never removed, because
// persisted records are addressed by index; absorbed slots become empty and
// are reused by later allocations.
package alloc
