// Package record implements the fixed-width binary encodings of the archive
// header, block table entries, and name slots, plus the arithmetic that maps
// table indices and clusters to stream offsets.
//
// Every record has a constant size so a table entry lives at
//
//	offset = table_base + index*record_size
//
// All integers are little-endian. Encoders write into caller-provided buffers
// and decoders read from them; callers must supply buffers of at least the
// record size.
package record
