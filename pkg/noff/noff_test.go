package noff

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadHeader(t *testing.T) {
	b := &Builder{Code: []uint32{1, 2, 3}, Data: []byte("hello"), BSS: 12}

	tests := []struct {
		name      string
		bigEndian bool
	}{
		{"NativeOrder", false},
		{"SwappedOrder", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b.BigEndian = tt.bigEndian
			h, err := ReadHeader(bytes.NewReader(b.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, Magic, h.Magic)
			assert.Equal(t, Segment{VirtualAddr: 0, InFileAddr: HeaderSize, Size: 12}, h.Code)
			assert.Equal(t, Segment{VirtualAddr: 12, InFileAddr: HeaderSize + 12, Size: 5}, h.InitData)
			assert.Equal(t, uint32(12), h.UninitData.Size)
			assert.Equal(t, 29, h.MemorySize())
		})
	}
}

func TestReadHeaderBadImage(t *testing.T) {
	t.Run("WrongMagic", func(t *testing.T) {
		raw := (&Builder{}).Bytes()
		raw[0] ^= 0xff
		_, err := ReadHeader(bytes.NewReader(raw))
		assert.ErrorIs(t, err, ErrBadImage)
	})
	t.Run("Truncated", func(t *testing.T) {
		_, err := ReadHeader(bytes.NewReader([]byte{0xad, 0xdf}))
		assert.ErrorIs(t, err, ErrBadImage)
	})
}
