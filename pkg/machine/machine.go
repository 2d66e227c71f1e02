package machine

import (
	"encoding/binary"
	"fmt"
)

// Register numbers.
const (
	NumGPRegs    = 32
	StackReg     = 29
	RetAddrReg   = 31
	HiReg        = 32
	LoReg        = 33
	PCReg        = 34
	NextPCReg    = 35
	PrevPCReg    = 36
	LoadReg      = 37
	LoadValueReg = 38
	BadVAddrReg  = 39
	NumTotalRegs = 40
)

// Default geometry of the simulated hardware.
const (
	DefaultPageSize     = 128
	DefaultNumPhysPages = 32
	InstructionSize     = 4
)

// ExceptionType identifies why control left user code.
type ExceptionType int

const (
	NoException ExceptionType = iota
	SyscallException
	PageFaultException
	ReadOnlyException
	BusErrorException
	AddressErrorException
	OverflowException
	IllegalInstrException
)

var exceptionNames = [...]string{
	NoException:           "no exception",
	SyscallException:      "syscall",
	PageFaultException:    "page fault",
	ReadOnlyException:     "read-only write",
	BusErrorException:     "bus error",
	AddressErrorException: "address error",
	OverflowException:     "overflow",
	IllegalInstrException: "illegal instruction",
}

func (e ExceptionType) String() string {
	if e >= 0 && int(e) < len(exceptionNames) {
		return exceptionNames[e]
	}
	return fmt.Sprintf("exception(%d)", int(e))
}

// ExceptionHandler is invoked by the machine whenever user code traps.
type ExceptionHandler func(which ExceptionType)

// TranslationEntry maps one virtual page to one physical frame.
type TranslationEntry struct {
	// VirtualPage is the page number in the virtual address space.
	VirtualPage int
	// PhysicalPage is the frame number in main memory.
	PhysicalPage int
	// Valid is false when the entry must not be used.
	Valid bool
	// ReadOnly forbids stores through this entry.
	ReadOnly bool
	// Use is set by the hardware on every access.
	Use bool
	// Dirty is set by the hardware on every store.
	Dirty bool
}

// Machine is the simulated CPU and its physical memory.
type Machine struct {
	registers    [NumTotalRegs]int
	memory       []byte
	pageSize     int
	numPhysPages int
	// pageTable is the translation context installed by the running
	// address space.
	pageTable []TranslationEntry
	handler   ExceptionHandler
	ticks     int64
}

// New creates a machine with numPhysPages frames of pageSize bytes each.
func New(numPhysPages, pageSize int) *Machine {
	if numPhysPages <= 0 || pageSize <= 0 || pageSize%InstructionSize != 0 {
		panic(fmt.Sprintf("machine: invalid geometry %d x %d", numPhysPages, pageSize))
	}
	return &Machine{
		memory:       make([]byte, numPhysPages*pageSize),
		pageSize:     pageSize,
		numPhysPages: numPhysPages,
	}
}

// SetHandler installs the exception handler.
func (m *Machine) SetHandler(h ExceptionHandler) {
	m.handler = h
}

// PageSize returns the size of a page and of a frame in bytes.
func (m *Machine) PageSize() int { return m.pageSize }

// NumPhysPages returns the number of frames of main memory.
func (m *Machine) NumPhysPages() int { return m.numPhysPages }

// Memory returns physical main memory. Kernel code addresses it directly by
// physical address.
func (m *Machine) Memory() []byte { return m.memory }

// Frame returns the bytes of one physical frame.
func (m *Machine) Frame(frame int) []byte {
	start := frame * m.pageSize
	return m.memory[start : start+m.pageSize]
}

// Ticks returns the number of instructions executed so far.
func (m *Machine) Ticks() int64 { return m.ticks }

// ReadRegister returns the contents of register n.
func (m *Machine) ReadRegister(n int) int {
	if n == 0 {
		return 0
	}
	return m.registers[n]
}

// WriteRegister stores value into register n. Writes to r0 are discarded.
func (m *Machine) WriteRegister(n int, value int) {
	if n == 0 {
		return
	}
	m.registers[n] = value
}

// Registers returns a snapshot of the whole register file.
func (m *Machine) Registers() [NumTotalRegs]int {
	return m.registers
}

// SetRegisters replaces the whole register file.
func (m *Machine) SetRegisters(regs [NumTotalRegs]int) {
	m.registers = regs
	m.registers[0] = 0
}

// SetPageTable installs the translation context used by the MMU. A nil
// table detaches translation entirely.
func (m *Machine) SetPageTable(pt []TranslationEntry) {
	m.pageTable = pt
}

// PageTable returns the installed translation context.
func (m *Machine) PageTable() []TranslationEntry {
	return m.pageTable
}

// AdvancePC moves the program counters one instruction forward.
func (m *Machine) AdvancePC() {
	pc := m.registers[PCReg]
	next := m.registers[NextPCReg]
	m.registers[PrevPCReg] = pc
	m.registers[PCReg] = next
	m.registers[NextPCReg] = next + InstructionSize
}

// jump transfers control to target without a delay slot.
func (m *Machine) jump(target int) {
	m.registers[PrevPCReg] = m.registers[PCReg]
	m.registers[PCReg] = target
	m.registers[NextPCReg] = target + InstructionSize
}

// RaiseException records the faulting address and hands control to the
// exception handler.
func (m *Machine) RaiseException(which ExceptionType, badVAddr int) {
	m.registers[BadVAddrReg] = badVAddr
	if m.handler == nil {
		panic(fmt.Sprintf("machine: unhandled %s at pc %d", which, m.registers[PCReg]))
	}
	m.handler(which)
}

// Translate converts a virtual address into a physical one through the
// installed page table, updating the use and dirty bits.
func (m *Machine) Translate(vaddr, size int, writing bool) (int, ExceptionType) {
	if vaddr < 0 || (size > 1 && vaddr%size != 0) {
		return -1, AddressErrorException
	}
	vpn := vaddr / m.pageSize
	offset := vaddr % m.pageSize
	if vpn >= len(m.pageTable) {
		return -1, AddressErrorException
	}
	entry := &m.pageTable[vpn]
	if !entry.Valid {
		return -1, PageFaultException
	}
	if writing && entry.ReadOnly {
		return -1, ReadOnlyException
	}
	if entry.PhysicalPage < 0 || entry.PhysicalPage >= m.numPhysPages {
		return -1, BusErrorException
	}
	entry.Use = true
	if writing {
		entry.Dirty = true
	}
	return entry.PhysicalPage*m.pageSize + offset, NoException
}

// ReadMem loads size bytes (1 or 4) from virtual address addr. On failure
// the exception has already been raised and ok is false.
func (m *Machine) ReadMem(addr, size int) (value int, ok bool) {
	paddr, exc := m.Translate(addr, size, false)
	if exc != NoException {
		m.RaiseException(exc, addr)
		return 0, false
	}
	switch size {
	case 1:
		return int(m.memory[paddr]), true
	case 4:
		return int(int32(binary.LittleEndian.Uint32(m.memory[paddr:]))), true
	default:
		panic(fmt.Sprintf("machine: unsupported access size %d", size))
	}
}

// WriteMem stores size bytes (1 or 4) of value at virtual address addr. On
// failure the exception has already been raised and false is returned.
func (m *Machine) WriteMem(addr, size, value int) bool {
	paddr, exc := m.Translate(addr, size, true)
	if exc != NoException {
		m.RaiseException(exc, addr)
		return false
	}
	switch size {
	case 1:
		m.memory[paddr] = byte(value)
	case 4:
		binary.LittleEndian.PutUint32(m.memory[paddr:], uint32(int32(value)))
	default:
		panic(fmt.Sprintf("machine: unsupported access size %d", size))
	}
	return true
}

// Run executes user instructions forever. Control only leaves through the
// exception handler, which retires the calling thread when the process ends.
func (m *Machine) Run() {
	for {
		m.OneInstruction()
	}
}
