package noff

import "encoding/binary"

// Builder assembles an image from instruction words, initialized data and
// a bss size. Code is placed at virtual address 0, data right after the
// code, and bss right after the data.
type Builder struct {
	Code []uint32
	Data []byte
	BSS  int
	// BigEndian writes the header in the opposite byte order.
	BigEndian bool
}

// DataAddr returns the virtual address of the first data byte.
func (b *Builder) DataAddr() int {
	return len(b.Code) * 4
}

// Bytes produces the encoded image.
func (b *Builder) Bytes() []byte {
	codeSize := uint32(len(b.Code) * 4)
	h := Header{
		Magic: Magic,
		Code: Segment{
			VirtualAddr: 0,
			InFileAddr:  HeaderSize,
			Size:        codeSize,
		},
		InitData: Segment{
			VirtualAddr: codeSize,
			InFileAddr:  HeaderSize + codeSize,
			Size:        uint32(len(b.Data)),
		},
		UninitData: Segment{
			VirtualAddr: codeSize + uint32(len(b.Data)),
			Size:        uint32(b.BSS),
		},
	}
	if b.BigEndian {
		h.swap()
	}
	out, _ := h.MarshalBinary()
	for _, w := range b.Code {
		out = binary.LittleEndian.AppendUint32(out, w)
	}
	return append(out, b.Data...)
}
