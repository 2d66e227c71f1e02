package addrspace

import (
	"bytes"
	"encoding/binary"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minikern/pkg/machine"
	"minikern/pkg/mm"
	"minikern/pkg/noff"
)

func newLoader(frames, stack int) *Loader {
	return &Loader{
		Machine:       machine.New(frames, machine.DefaultPageSize),
		Frames:        mm.NewManager(frames),
		Lock:          &sync.Mutex{},
		UserStackSize: stack,
	}
}

func sampleImage(bigEndian bool) *noff.Builder {
	return &noff.Builder{
		Code:      []uint32{machine.Addi(2, 0, 1), machine.Syscall(), 0xdeadbeef, 7},
		Data:      []byte("hello\x00"),
		BSS:       10,
		BigEndian: bigEndian,
	}
}

func TestLoad(t *testing.T) {
	for _, bigEndian := range []bool{false, true} {
		name := "LittleEndian"
		if bigEndian {
			name = "Swapped"
		}
		t.Run(name, func(t *testing.T) {
			l := newLoader(32, 256)
			mem := l.Machine.Memory()
			for i := range mem {
				mem[i] = 0xff
			}
			img := sampleImage(bigEndian)

			as, err := l.Load(bytes.NewReader(img.Bytes()))
			require.NoError(t, err)

			// 16 code + 6 data + 10 bss + 256 stack = 288 bytes.
			assert.Equal(t, 3, as.NumPages())
			assert.Equal(t, 29, l.Frames.FreeCount())
			assert.True(t, as.Valid())

			for i, w := range img.Code {
				got := binary.LittleEndian.Uint32(mem[as.Translate(i*4):])
				assert.Equal(t, w, got)
			}
			s, err := as.ReadString(img.DataAddr(), 256)
			require.NoError(t, err)
			assert.Equal(t, "hello", s)

			for v := img.DataAddr() + len(img.Data); v < as.NumPages()*machine.DefaultPageSize; v++ {
				require.Zero(t, mem[as.Translate(v)], "byte %d not zeroed", v)
			}
		})
	}
}

func TestLoadBadImage(t *testing.T) {
	l := newLoader(32, 256)

	_, err := l.Load(bytes.NewReader([]byte("not an executable image at all, clearly....")))
	assert.ErrorIs(t, err, noff.ErrBadImage)

	_, err = l.Load(bytes.NewReader([]byte{1, 2}))
	assert.ErrorIs(t, err, noff.ErrBadImage)

	// Header promises more code than the file holds.
	img := sampleImage(false).Bytes()
	_, err = l.Load(bytes.NewReader(img[:noff.HeaderSize+4]))
	assert.ErrorIs(t, err, noff.ErrBadImage)

	assert.Equal(t, 32, l.Frames.FreeCount())
}

func TestLoadOutOfMemory(t *testing.T) {
	l := newLoader(4, 1024)

	_, err := l.Load(bytes.NewReader(sampleImage(false).Bytes()))
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.ErrorIs(t, err, mm.ErrOutOfMemory)
	assert.Equal(t, 4, l.Frames.FreeCount())
}

func TestDuplicate(t *testing.T) {
	l := newLoader(32, 256)
	as, err := l.Load(bytes.NewReader(sampleImage(false).Bytes()))
	require.NoError(t, err)
	as.pageTable[1].ReadOnly = true
	as.pageTable[2].Dirty = true

	dup, err := as.Duplicate()
	require.NoError(t, err)
	assert.Equal(t, 26, l.Frames.FreeCount())

	// Equal: same contents page for page.
	for i := range as.PageTable() {
		assert.Equal(t, l.Machine.Frame(as.Frames()[i]), l.Machine.Frame(dup.Frames()[i]))
	}

	// Identical: same size and flags.
	require.Equal(t, as.NumPages(), dup.NumPages())
	for i, e := range as.PageTable() {
		d := dup.PageTable()[i]
		assert.Equal(t, e.VirtualPage, d.VirtualPage)
		assert.Equal(t, e.Valid, d.Valid)
		assert.Equal(t, e.ReadOnly, d.ReadOnly)
		assert.Equal(t, e.Dirty, d.Dirty)
	}

	// Disjoint: no frame shared.
	owned := map[int]bool{}
	for _, f := range as.Frames() {
		owned[f] = true
	}
	for _, f := range dup.Frames() {
		assert.False(t, owned[f], "frame %d shared", f)
	}

	// Writes to one are invisible to the other.
	mem := l.Machine.Memory()
	mem[as.Translate(0)] = 0x42
	assert.NotEqual(t, byte(0x42), mem[dup.Translate(0)])
}

func TestDuplicateOutOfMemory(t *testing.T) {
	l := newLoader(5, 256)
	as, err := l.Load(bytes.NewReader(sampleImage(false).Bytes()))
	require.NoError(t, err)
	require.Equal(t, 2, l.Frames.FreeCount())

	_, err = as.Duplicate()
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, 2, l.Frames.FreeCount())
	assert.True(t, as.Valid())
}

func TestInitRegisters(t *testing.T) {
	l := newLoader(32, 256)
	as, err := l.Load(bytes.NewReader(sampleImage(false).Bytes()))
	require.NoError(t, err)

	l.Machine.WriteRegister(5, 99)
	as.InitRegisters()

	assert.Equal(t, 0, l.Machine.ReadRegister(machine.PCReg))
	assert.Equal(t, 4, l.Machine.ReadRegister(machine.NextPCReg))
	assert.Equal(t, 3*machine.DefaultPageSize-16, l.Machine.ReadRegister(machine.StackReg))
	assert.Zero(t, l.Machine.ReadRegister(5))
}

func TestSaveRestoreState(t *testing.T) {
	l := newLoader(32, 256)
	a, err := l.Load(bytes.NewReader(sampleImage(false).Bytes()))
	require.NoError(t, err)
	b, err := a.Duplicate()
	require.NoError(t, err)

	a.RestoreState()
	assert.Len(t, l.Machine.PageTable(), a.NumPages())

	// Saving a space that is not installed leaves the machine alone.
	b.SaveState()
	assert.NotNil(t, l.Machine.PageTable())

	a.SaveState()
	assert.Nil(t, l.Machine.PageTable())
}

func TestRelease(t *testing.T) {
	l := newLoader(32, 256)
	as, err := l.Load(bytes.NewReader(sampleImage(false).Bytes()))
	require.NoError(t, err)
	as.RestoreState()

	as.Release()
	assert.Equal(t, 32, l.Frames.FreeCount())
	assert.False(t, as.Valid())
	assert.Nil(t, as.PageTable())
	assert.Nil(t, l.Machine.PageTable())

	assert.Panics(t, func() { as.Release() })

	_, err = as.Duplicate()
	assert.ErrorIs(t, err, ErrReleased)
}

func TestReleaseFreedFramePanics(t *testing.T) {
	l := newLoader(32, 256)
	as, err := l.Load(bytes.NewReader(sampleImage(false).Bytes()))
	require.NoError(t, err)

	require.NoError(t, l.Frames.Deallocate(as.Frames()[1]))
	assert.Panics(t, func() { as.Release() })
}

func TestReadString(t *testing.T) {
	l := newLoader(32, 256)
	img := sampleImage(false)
	as, err := l.Load(bytes.NewReader(img.Bytes()))
	require.NoError(t, err)

	s, err := as.ReadString(img.DataAddr(), 4)
	require.NoError(t, err)
	assert.Equal(t, "hel", s)

	last := as.NumPages()*machine.DefaultPageSize - 1
	l.Machine.Memory()[as.Translate(last)] = 'x'
	_, err = as.ReadString(last, 256)
	assert.ErrorIs(t, err, ErrBadAddress)

	_, err = as.ReadString(-5, 256)
	assert.ErrorIs(t, err, ErrBadAddress)
}

func TestTranslate(t *testing.T) {
	l := newLoader(32, 256)
	as, err := l.Load(bytes.NewReader(sampleImage(false).Bytes()))
	require.NoError(t, err)

	pt := as.PageTable()
	assert.Equal(t, pt[1].PhysicalPage*machine.DefaultPageSize+5, as.Translate(machine.DefaultPageSize+5))
	assert.Equal(t, -1, as.Translate(as.NumPages()*machine.DefaultPageSize))
}
