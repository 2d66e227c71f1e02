// Package bitmap provides a fixed-size set of bits used to track which
// members of a resource pool (physical frames, process ids) are in use.
package bitmap

import (
	"fmt"
	"math/bits"
)

// Bitmap is a fixed-size bit set backed by 64-bit words.
// It is not safe for concurrent use; owners guard it with their own lock.
type Bitmap struct {
	size  int
	words []uint64
}

// New creates a bitmap of the given number of bits, all clear.
func New(size int) *Bitmap {
	if size <= 0 {
		panic(fmt.Sprintf("bitmap: invalid size %d", size))
	}
	return &Bitmap{
		size:  size,
		words: make([]uint64, (size+63)/64),
	}
}

// Size returns the number of bits in the bitmap.
func (b *Bitmap) Size() int {
	return b.size
}

func (b *Bitmap) check(which int) {
	if which < 0 || which >= b.size {
		panic(fmt.Sprintf("bitmap: bit %d out of range [0, %d)", which, b.size))
	}
}

// Mark sets the given bit.
func (b *Bitmap) Mark(which int) {
	b.check(which)
	b.words[which>>6] |= 1 << (uint(which) & 63)
}

// Clear clears the given bit.
func (b *Bitmap) Clear(which int) {
	b.check(which)
	b.words[which>>6] &^= 1 << (uint(which) & 63)
}

// Test reports whether the given bit is set.
func (b *Bitmap) Test(which int) bool {
	b.check(which)
	return b.words[which>>6]&(1<<(uint(which)&63)) != 0
}

// Find marks and returns the lowest clear bit, or -1 if every bit is set.
func (b *Bitmap) Find() int {
	for i, w := range b.words {
		if w == ^uint64(0) {
			continue
		}
		which := i*64 + bits.TrailingZeros64(^w)
		if which >= b.size {
			return -1
		}
		b.Mark(which)
		return which
	}
	return -1
}

// NumClear returns the number of clear bits.
func (b *Bitmap) NumClear() int {
	set := 0
	for _, w := range b.words {
		set += bits.OnesCount64(w)
	}
	return b.size - set
}
