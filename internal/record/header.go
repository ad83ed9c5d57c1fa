package record

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/meigma/packfs/internal/packtype"
)

// Magic identifies a packfs archive.
var Magic = [3]byte{'P', 'K', 'F'}

// Version is the only on-disk format version this package reads and writes.
const Version uint8 = 1

// HeaderSize is the encoded size of Header.
const HeaderSize = 20 // 3 + 1 + 4 + 4 + 4 + 4

// KeySize is the length of the name obfuscation key.
const KeySize = 4

// MaxCapacity bounds max_file_count and max_block_count so they fit the
// signed 32-bit fields of the header and the name slot index of a block.
const MaxCapacity = math.MaxInt32

// Header is the first record in the stream.
type Header struct {
	Magic      [3]byte
	Version    uint8
	Key        [KeySize]byte
	MaxFiles   int32
	MaxBlocks  int32
	BlockCount int32
}

// NewHeader returns a header for a fresh archive with no block slots.
func NewHeader(key [KeySize]byte, maxFiles, maxBlocks int32) Header {
	return Header{
		Magic:     Magic,
		Version:   Version,
		Key:       key,
		MaxFiles:  maxFiles,
		MaxBlocks: maxBlocks,
	}
}

// Encode writes h into buf[:HeaderSize].
func (h *Header) Encode(buf []byte) {
	_ = buf[HeaderSize-1]
	copy(buf[0:3], h.Magic[:])
	buf[3] = h.Version
	copy(buf[4:8], h.Key[:])
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.MaxFiles))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(h.MaxBlocks))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(h.BlockCount))
}

// DecodeHeader reads a header from buf[:HeaderSize].
func DecodeHeader(buf []byte) Header {
	_ = buf[HeaderSize-1]
	var h Header
	copy(h.Magic[:], buf[0:3])
	h.Version = buf[3]
	copy(h.Key[:], buf[4:8])
	h.MaxFiles = int32(binary.LittleEndian.Uint32(buf[8:12]))
	h.MaxBlocks = int32(binary.LittleEndian.Uint32(buf[12:16]))
	h.BlockCount = int32(binary.LittleEndian.Uint32(buf[16:20]))
	return h
}

// Validate checks the header invariants.
//
// A block count of zero is accepted: a freshly created archive has no block
// slots until its first write.
func (h *Header) Validate() error {
	if h.Magic != Magic {
		return fmt.Errorf("%w: bad magic %q", packtype.ErrCorrupt, h.Magic[:])
	}
	if h.Version != Version {
		return fmt.Errorf("%w: unsupported version %d", packtype.ErrCorrupt, h.Version)
	}
	if h.MaxFiles <= 0 || h.MaxFiles > h.MaxBlocks {
		return fmt.Errorf("%w: max file count %d outside (0, %d]", packtype.ErrCorrupt, h.MaxFiles, h.MaxBlocks)
	}
	if h.BlockCount < 0 || h.BlockCount > h.MaxBlocks {
		return fmt.Errorf("%w: block count %d outside [0, %d]", packtype.ErrCorrupt, h.BlockCount, h.MaxBlocks)
	}
	return nil
}
