package addrspace

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"minikern/pkg/machine"
	"minikern/pkg/mm"
	"minikern/pkg/noff"
	"minikern/pkg/pcb"
)

// DefaultUserStackSize is the stack reserved above the program's segments.
const DefaultUserStackSize = 1024

// Errors returned while building address spaces.
var (
	// ErrOutOfMemory wraps mm.ErrOutOfMemory so callers may test for either.
	ErrOutOfMemory = fmt.Errorf("address space: %w", mm.ErrOutOfMemory)
	ErrBadAddress  = errors.New("bad user address")
	ErrReleased    = errors.New("address space already released")
)

// Loader creates address spaces on one machine.
type Loader struct {
	// Machine provides main memory and the page size.
	Machine *machine.Machine
	// Frames is the physical page allocator.
	Frames *mm.Manager
	// Lock serializes free-count checks with the allocations that follow.
	// Nil means the caller already excludes other allocators.
	Lock sync.Locker
	// UserStackSize is added to the image size; zero selects
	// DefaultUserStackSize.
	UserStackSize int
}

// AddrSpace is the virtual memory of one process.
type AddrSpace struct {
	// PCB is the process that owns the space, if any.
	PCB *pcb.PCB

	loader    *Loader
	pageTable []machine.TranslationEntry
	numPages  int
	valid     bool
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

func (l *Loader) lock() sync.Locker {
	if l.Lock == nil {
		return noLock{}
	}
	return l.Lock
}

func (l *Loader) stackSize() int {
	if l.UserStackSize <= 0 {
		return DefaultUserStackSize
	}
	return l.UserStackSize
}

// Load creates an address space holding the image read from exe. Every
// frame is zero-filled and the code and initialized data segments are
// copied in. On failure no frames remain allocated.
func (l *Loader) Load(exe io.ReaderAt) (*AddrSpace, error) {
	hdr, err := noff.ReadHeader(exe)
	if err != nil {
		return nil, err
	}

	pageSize := l.Machine.PageSize()
	size := hdr.MemorySize() + l.stackSize()
	numPages := (size + pageSize - 1) / pageSize
	limit := numPages * pageSize

	code, err := readSegment(exe, hdr.Code, limit)
	if err != nil {
		return nil, err
	}
	data, err := readSegment(exe, hdr.InitData, limit)
	if err != nil {
		return nil, err
	}

	as := &AddrSpace{loader: l, numPages: numPages}
	if err := as.allocate(); err != nil {
		return nil, err
	}

	for _, e := range as.pageTable {
		clear(l.Machine.Frame(e.PhysicalPage))
	}
	as.copyIn(int(hdr.Code.VirtualAddr), code)
	as.copyIn(int(hdr.InitData.VirtualAddr), data)
	return as, nil
}

// readSegment reads seg from the image and checks that it fits in limit
// bytes of virtual memory.
func readSegment(exe io.ReaderAt, seg noff.Segment, limit int) ([]byte, error) {
	if seg.Size == 0 {
		return nil, nil
	}
	if int(seg.VirtualAddr)+int(seg.Size) > limit {
		return nil, fmt.Errorf("%w: segment at %#x exceeds address space", noff.ErrBadImage, seg.VirtualAddr)
	}
	buf := make([]byte, seg.Size)
	if _, err := exe.ReadAt(buf, int64(seg.InFileAddr)); err != nil {
		return nil, fmt.Errorf("%w: reading segment at %#x: %v", noff.ErrBadImage, seg.InFileAddr, err)
	}
	return buf, nil
}

// allocate gives every page a fresh frame. It fails without allocating
// anything when there are not enough free frames.
func (as *AddrSpace) allocate() error {
	frames := as.loader.Frames
	lock := as.loader.lock()
	lock.Lock()
	defer lock.Unlock()

	if as.numPages > frames.FreeCount() {
		return ErrOutOfMemory
	}

	pt := make([]machine.TranslationEntry, as.numPages)
	for i := range pt {
		frame, err := frames.Allocate()
		if err != nil {
			for _, e := range pt[:i] {
				_ = frames.Deallocate(e.PhysicalPage)
			}
			return ErrOutOfMemory
		}
		pt[i] = machine.TranslationEntry{VirtualPage: i, PhysicalPage: frame, Valid: true}
	}
	as.pageTable = pt
	as.valid = true
	return nil
}

// copyIn writes data at vaddr one byte at a time through translation.
func (as *AddrSpace) copyIn(vaddr int, data []byte) {
	mem := as.loader.Machine.Memory()
	for i, b := range data {
		mem[as.Translate(vaddr+i)] = b
	}
}

// Duplicate returns a copy of as backed by newly allocated frames. Frame
// contents and entry flags are copied. If memory runs out nothing is kept
// and ErrOutOfMemory is returned.
func (as *AddrSpace) Duplicate() (*AddrSpace, error) {
	if !as.valid {
		return nil, ErrReleased
	}
	dup := &AddrSpace{loader: as.loader, numPages: as.numPages}
	if err := dup.allocate(); err != nil {
		return nil, err
	}

	m := as.loader.Machine
	for i, src := range as.pageTable {
		dst := &dup.pageTable[i]
		copy(m.Frame(dst.PhysicalPage), m.Frame(src.PhysicalPage))
		dst.Valid = src.Valid
		dst.ReadOnly = src.ReadOnly
		dst.Use = src.Use
		dst.Dirty = src.Dirty
	}
	return dup, nil
}

// Translate maps a virtual address to a physical one, or returns -1 when
// vaddr is outside the space.
func (as *AddrSpace) Translate(vaddr int) int {
	pageSize := as.loader.Machine.PageSize()
	if vaddr < 0 || vaddr >= as.numPages*pageSize {
		return -1
	}
	return as.pageTable[vaddr/pageSize].PhysicalPage*pageSize + vaddr%pageSize
}

// InitRegisters prepares the machine to start the program at address 0
// with the stack pointer near the top of the space.
func (as *AddrSpace) InitRegisters() {
	var regs [machine.NumTotalRegs]int
	regs[machine.PCReg] = 0
	regs[machine.NextPCReg] = machine.InstructionSize
	regs[machine.StackReg] = as.numPages*as.loader.Machine.PageSize() - 16
	as.loader.Machine.SetRegisters(regs)
}

// SaveState detaches the space from the machine on a context switch.
func (as *AddrSpace) SaveState() {
	m := as.loader.Machine
	if pt := m.PageTable(); len(pt) > 0 && len(as.pageTable) > 0 && &pt[0] == &as.pageTable[0] {
		m.SetPageTable(nil)
	}
}

// RestoreState installs the space's page table on the machine.
func (as *AddrSpace) RestoreState() {
	as.loader.Machine.SetPageTable(as.pageTable)
}

// Release returns every frame to the allocator and drops the page table.
// It panics when called twice or when a frame turns out to be free
// already, since either means two owners for one frame.
func (as *AddrSpace) Release() {
	if !as.valid {
		panic("addrspace: released twice")
	}
	as.SaveState()
	for _, e := range as.pageTable {
		if err := as.loader.Frames.Deallocate(e.PhysicalPage); err != nil {
			panic(fmt.Sprintf("addrspace: %v", err))
		}
	}
	as.pageTable = nil
	as.valid = false
}

// Valid reports whether the space still owns its frames.
func (as *AddrSpace) Valid() bool { return as.valid }

// NumPages returns the number of virtual pages.
func (as *AddrSpace) NumPages() int { return as.numPages }

// PageTable returns the translation entries.
func (as *AddrSpace) PageTable() []machine.TranslationEntry { return as.pageTable }

// Frames returns the physical frames in virtual page order.
func (as *AddrSpace) Frames() []int {
	out := make([]int, len(as.pageTable))
	for i, e := range as.pageTable {
		out[i] = e.PhysicalPage
	}
	return out
}

// ReadString copies a NUL-terminated string out of user memory one byte at
// a time. At most limit-1 bytes are returned; a longer string is truncated.
func (as *AddrSpace) ReadString(vaddr, limit int) (string, error) {
	if !as.valid {
		return "", ErrReleased
	}
	mem := as.loader.Machine.Memory()
	buf := make([]byte, 0, limit)
	for i := 0; i < limit-1; i++ {
		paddr := as.Translate(vaddr + i)
		if paddr < 0 {
			return "", fmt.Errorf("%w: %#x", ErrBadAddress, vaddr+i)
		}
		if mem[paddr] == 0 {
			break
		}
		buf = append(buf, mem[paddr])
	}
	return string(buf), nil
}
