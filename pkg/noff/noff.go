// Package noff reads and writes the header of NOFF executable images: a
// magic number followed by descriptors for the code, initialized data and
// uninitialized data segments.
package noff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"
)

// Magic identifies a NOFF image.
const Magic uint32 = 0xbadfad

// HeaderSize is the encoded size of Header in bytes.
const HeaderSize = 40

// ErrBadImage is returned when an image header cannot be understood.
var ErrBadImage = errors.New("bad executable image")

// Segment describes where a segment lives in the file and in memory.
type Segment struct {
	// VirtualAddr is the segment's location in the address space.
	VirtualAddr uint32
	// InFileAddr is the segment's offset in the image file.
	InFileAddr uint32
	// Size is the segment length in bytes.
	Size uint32
}

// Header is the fixed-size image header.
type Header struct {
	Magic      uint32
	Code       Segment
	InitData   Segment
	UninitData Segment
}

func (h *Header) words() []*uint32 {
	return []*uint32{
		&h.Magic,
		&h.Code.Size, &h.Code.VirtualAddr, &h.Code.InFileAddr,
		&h.InitData.Size, &h.InitData.VirtualAddr, &h.InitData.InFileAddr,
		&h.UninitData.Size, &h.UninitData.VirtualAddr, &h.UninitData.InFileAddr,
	}
}

func (h *Header) swap() {
	for _, w := range h.words() {
		*w = bits.ReverseBytes32(*w)
	}
}

// ReadHeader decodes the header at the start of an image. Headers written
// in the opposite byte order are swapped transparently; any other magic
// number yields ErrBadImage.
func ReadHeader(r io.ReaderAt) (Header, error) {
	var raw [HeaderSize]byte
	if _, err := r.ReadAt(raw[:], 0); err != nil {
		return Header{}, fmt.Errorf("%w: reading header: %v", ErrBadImage, err)
	}

	var h Header
	for i, w := range h.words() {
		*w = binary.LittleEndian.Uint32(raw[i*4:])
	}
	if h.Magic != Magic && bits.ReverseBytes32(h.Magic) == Magic {
		h.swap()
	}
	if h.Magic != Magic {
		return Header{}, fmt.Errorf("%w: magic %#x", ErrBadImage, h.Magic)
	}
	return h, nil
}

// MarshalBinary encodes the header in little-endian order.
func (h Header) MarshalBinary() ([]byte, error) {
	out := make([]byte, HeaderSize)
	for i, w := range h.words() {
		binary.LittleEndian.PutUint32(out[i*4:], *w)
	}
	return out, nil
}

// MemorySize is the number of bytes the segments occupy in memory.
func (h Header) MemorySize() int {
	return int(h.Code.Size) + int(h.InitData.Size) + int(h.UninitData.Size)
}
