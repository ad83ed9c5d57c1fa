package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/packfs/internal/packtype"
)

func TestHeaderEncoding(t *testing.T) {
	t.Parallel()

	h := NewHeader([KeySize]byte{0xde, 0xad, 0xbe, 0xef}, 4, 8)
	h.BlockCount = 3

	buf := make([]byte, HeaderSize)
	h.Encode(buf)

	assert.Equal(t, []byte("PKF"), buf[0:3])
	assert.Equal(t, Version, buf[3])
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, buf[4:8])
	assert.Equal(t, []byte{4, 0, 0, 0}, buf[8:12], "max file count is little-endian")
	assert.Equal(t, []byte{8, 0, 0, 0}, buf[12:16])
	assert.Equal(t, []byte{3, 0, 0, 0}, buf[16:20])

	assert.Equal(t, h, DecodeHeader(buf))
}

func TestHeaderValidate(t *testing.T) {
	t.Parallel()

	valid := NewHeader([KeySize]byte{1, 2, 3, 4}, 4, 8)

	tests := []struct {
		name    string
		mutate  func(*Header)
		wantErr bool
	}{
		{name: "fresh archive", mutate: func(*Header) {}},
		{name: "full block table", mutate: func(h *Header) { h.BlockCount = 8 }},
		{name: "files equal blocks", mutate: func(h *Header) { h.MaxFiles = 8 }},
		{name: "bad magic", mutate: func(h *Header) { h.Magic = [3]byte{'G', 'F', 'F'} }, wantErr: true},
		{name: "wrong version", mutate: func(h *Header) { h.Version = Version + 1 }, wantErr: true},
		{name: "zero max files", mutate: func(h *Header) { h.MaxFiles = 0 }, wantErr: true},
		{name: "files exceed blocks", mutate: func(h *Header) { h.MaxFiles = 9 }, wantErr: true},
		{name: "negative block count", mutate: func(h *Header) { h.BlockCount = -1 }, wantErr: true},
		{name: "block count over max", mutate: func(h *Header) { h.BlockCount = 9 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := valid
			tt.mutate(&h)
			err := h.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, packtype.ErrCorrupt)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestBlockEncoding(t *testing.T) {
	t.Parallel()

	for _, b := range []Block{
		EmptyBlock,
		{NameSlot: 7, Cluster: 12, Length: 5000},
		{NameSlot: FreeSlot, Cluster: MaxCluster, Length: 1 << 40},
	} {
		buf := make([]byte, BlockSize)
		b.Encode(buf)
		assert.Equal(t, b, DecodeBlock(buf))
	}

	buf := make([]byte, BlockSize)
	EmptyBlock.Encode(buf)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, buf[0:4], "free sentinel is -1")
}

func TestBlockGeometry(t *testing.T) {
	t.Parallel()

	b := Block{NameSlot: 0, Cluster: 3, Length: 5000}
	assert.Equal(t, int64(3*ClusterSize), b.Offset())
	assert.Equal(t, int64(2), b.Clusters())
	assert.Equal(t, int64(5), b.End())
	assert.False(t, b.IsFree())
	assert.True(t, EmptyBlock.IsFree())
}

func TestNameSlot(t *testing.T) {
	t.Parallel()

	key := [KeySize]byte{0x11, 0x22, 0x33, 0x44}
	var s NameSlot
	for i := range s.Bytes {
		s.Bytes[i] = 0xaa
	}

	s.SetName("textures/hero.png", key)
	assert.Equal(t, uint8(len("textures/hero.png")), s.Length)
	assert.NotEqual(t, []byte("textures/hero.png"), s.Bytes[:s.Length], "name is stored obfuscated")
	assert.Equal(t, byte(0xaa), s.Bytes[s.Length], "filler is preserved")
	assert.Equal(t, "textures/hero.png", s.Name(key))

	buf := make([]byte, NameSlotSize)
	s.Encode(buf)
	decoded := DecodeNameSlot(buf)
	assert.Equal(t, s, decoded)
	assert.Equal(t, "textures/hero.png", decoded.Name(key))

	var other [KeySize]byte
	assert.NotEqual(t, "textures/hero.png", decoded.Name(other))
}

func TestLayout(t *testing.T) {
	t.Parallel()

	l := Layout{MaxFiles: 4, MaxBlocks: 8}
	assert.Equal(t, int64(HeaderSize), l.BlockTableOffset())
	assert.Equal(t, int64(HeaderSize+8*BlockSize), l.NameTableOffset())
	assert.Equal(t, int64(ClusterSize), l.DataOffset())
	assert.Equal(t, int64(HeaderSize+2*BlockSize), l.BlockOffset(2))
	assert.Equal(t, l.NameTableOffset()+3*NameSlotSize, l.NameOffset(3))

	big := Layout{MaxFiles: 100, MaxBlocks: 200}
	assert.Equal(t, int64(0), big.DataOffset()%ClusterSize)
	assert.GreaterOrEqual(t, big.DataOffset(), big.NameOffset(100))
}

func TestAlignment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n        int64
		clusters int64
		aligned  int64
	}{
		{0, 0, 0},
		{1, 1, ClusterSize},
		{ClusterSize, 1, ClusterSize},
		{ClusterSize + 1, 2, 2 * ClusterSize},
		{5000, 2, 8192},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.clusters, Clusters(tt.n), "Clusters(%d)", tt.n)
		assert.Equal(t, tt.aligned, AlignUp(tt.n), "AlignUp(%d)", tt.n)
	}
}
