package machine

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identity installs a page table mapping virtual page i to frame i.
func identity(m *Machine, pages int) []TranslationEntry {
	pt := make([]TranslationEntry, pages)
	for i := range pt {
		pt[i] = TranslationEntry{VirtualPage: i, PhysicalPage: i, Valid: true}
	}
	m.SetPageTable(pt)
	return pt
}

func load(m *Machine, words ...uint32) {
	for i, w := range words {
		binary.LittleEndian.PutUint32(m.Memory()[i*4:], w)
	}
	m.WriteRegister(PCReg, 0)
	m.WriteRegister(NextPCReg, 4)
}

func TestEncodeDecode(t *testing.T) {
	in := Decode(Addi(9, 8, -3))
	assert.Equal(t, Instruction{Op: OpADDI, RS: 8, RT: 9, Imm: -3}, in)

	in = Decode(Bne(4, 5, -7))
	assert.Equal(t, OpBNE, in.Op)
	assert.Equal(t, -7, in.Imm)
}

func TestTranslate(t *testing.T) {
	m := New(8, 16)
	pt := identity(m, 2)
	pt[1].PhysicalPage = 5

	paddr, exc := m.Translate(20, 4, true)
	require.Equal(t, NoException, exc)
	assert.Equal(t, 5*16+4, paddr)
	assert.True(t, m.PageTable()[1].Use)
	assert.True(t, m.PageTable()[1].Dirty)

	tests := []struct {
		name  string
		addr  int
		size  int
		write bool
		setup func()
		want  ExceptionType
	}{
		{"Misaligned", 2, 4, false, nil, AddressErrorException},
		{"BeyondTable", 32, 1, false, nil, AddressErrorException},
		{"Negative", -1, 1, false, nil, AddressErrorException},
		{"Invalid", 0, 1, false, func() { pt[0].Valid = false }, PageFaultException},
		{"ReadOnly", 16, 4, true, func() { pt[1].ReadOnly = true }, ReadOnlyException},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			_, exc := m.Translate(tt.addr, tt.size, tt.write)
			assert.Equal(t, tt.want, exc)
		})
	}
}

func TestRunCountingLoop(t *testing.T) {
	m := New(4, 64)
	identity(m, 4)
	load(m,
		Addi(8, 0, 0),   // 0: r8 = 0
		Addi(9, 0, 10),  // 4: r9 = 10
		Addi(8, 8, 1),   // 8: r8++
		Bne(8, 9, -2),   // 12: loop to 8
		Sw(8, 0, 128),   // 16: mem[128] = r8
		Lw(10, 0, 128),  // 20: r10 = mem[128]
		Add(11, 10, 10), // 24: r11 = r10 + r10
		Syscall(),       // 28
	)

	var trapped int
	m.SetHandler(func(which ExceptionType) {
		require.Equal(t, SyscallException, which)
		trapped++
		m.AdvancePC()
	})

	for trapped == 0 {
		m.OneInstruction()
	}
	assert.Equal(t, 10, m.ReadRegister(8))
	assert.Equal(t, 10, m.ReadRegister(10))
	assert.Equal(t, 20, m.ReadRegister(11))
	assert.Equal(t, 32, m.ReadRegister(PCReg))
	assert.Equal(t, 36, m.ReadRegister(NextPCReg))
	assert.Equal(t, 28, m.ReadRegister(PrevPCReg))
}

func TestExceptions(t *testing.T) {
	tests := []struct {
		name  string
		words []uint32
		want  ExceptionType
		bad   int
	}{
		{"IllegalInstruction", []uint32{0}, IllegalInstrException, 0},
		{"LoadOutsideSpace", []uint32{Lw(8, 0, 1024)}, AddressErrorException, 1024},
		{"Overflow", []uint32{Addi(8, 0, 1), Add(8, 8, 9)}, OverflowException, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(4, 64)
			identity(m, 4)
			load(m, tt.words...)
			m.WriteRegister(9, 0x7fffffff)

			var got ExceptionType
			m.SetHandler(func(which ExceptionType) { got = which })
			for i := 0; i < len(tt.words) && got == NoException; i++ {
				m.OneInstruction()
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.bad, m.ReadRegister(BadVAddrReg))
		})
	}
}

func TestZeroRegister(t *testing.T) {
	m := New(1, 16)
	m.WriteRegister(0, 42)
	assert.Equal(t, 0, m.ReadRegister(0))

	var regs [NumTotalRegs]int
	regs[0] = 7
	regs[StackReg] = 99
	m.SetRegisters(regs)
	assert.Equal(t, 0, m.ReadRegister(0))
	assert.Equal(t, 99, m.Registers()[StackReg])
}
