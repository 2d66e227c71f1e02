package bitmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitmapFindFirstFit(t *testing.T) {
	b := New(70)
	for i := 0; i < 70; i++ {
		assert.Equal(t, i, b.Find(), "find %d", i)
	}
	assert.Equal(t, -1, b.Find(), "full bitmap")
	assert.Equal(t, 0, b.NumClear())

	b.Clear(65)
	b.Clear(3)
	assert.Equal(t, 2, b.NumClear())
	assert.Equal(t, 3, b.Find(), "lowest clear bit first")
	assert.Equal(t, 65, b.Find())
	assert.Equal(t, -1, b.Find())
}

func TestBitmapMarkTest(t *testing.T) {
	b := New(10)
	assert.False(t, b.Test(7))
	b.Mark(7)
	assert.True(t, b.Test(7))
	assert.Equal(t, 9, b.NumClear())
	b.Clear(7)
	assert.False(t, b.Test(7))
	assert.Equal(t, 10, b.Size())
}

func TestBitmapOutOfRange(t *testing.T) {
	b := New(8)
	assert.Panics(t, func() { b.Mark(8) })
	assert.Panics(t, func() { b.Test(-1) })
	assert.Panics(t, func() { New(0) })
}
