package record

// NameSlotSize is the encoded size of NameSlot.
const NameSlotSize = 1 + MaxNameLength

// MaxNameLength is the longest encoded name a slot can hold.
const MaxNameLength = 255

// NameSlot holds one obfuscated file name.
//
// Only the first Length bytes of Bytes are meaningful. The rest is filler.
type NameSlot struct {
	Length uint8
	Bytes  [MaxNameLength]byte
}

// SetName stores name XOR-obfuscated with key, leaving the filler after the
// name untouched. The caller guarantees len(name) <= MaxNameLength.
func (s *NameSlot) SetName(name string, key [KeySize]byte) {
	n := copy(s.Bytes[:], name)
	xor(s.Bytes[:n], key)
	s.Length = uint8(n) //nolint:gosec // n <= MaxNameLength
}

// Name decodes the stored name with key.
func (s *NameSlot) Name(key [KeySize]byte) string {
	buf := make([]byte, s.Length)
	copy(buf, s.Bytes[:s.Length])
	xor(buf, key)
	return string(buf)
}

// Encode writes s into buf[:NameSlotSize].
func (s *NameSlot) Encode(buf []byte) {
	_ = buf[NameSlotSize-1]
	buf[0] = s.Length
	copy(buf[1:NameSlotSize], s.Bytes[:])
}

// DecodeNameSlot reads a name slot from buf[:NameSlotSize].
func DecodeNameSlot(buf []byte) NameSlot {
	_ = buf[NameSlotSize-1]
	var s NameSlot
	s.Length = buf[0]
	copy(s.Bytes[:], buf[1:NameSlotSize])
	return s
}

// xor obfuscates b in place with key applied cyclically.
func xor(b []byte, key [KeySize]byte) {
	for i := range b {
		b[i] ^= key[i%KeySize]
	}
}
