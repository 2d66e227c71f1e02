package kernel

import (
	"encoding/binary"
	"fmt"

	"minikern/pkg/machine"
	"minikern/pkg/noff"
)

// asm assembles small test programs with symbolic labels. Code labels
// name instruction addresses; data labels name words or strings placed
// after the code.
type asm struct {
	code       []func(resolve func(string) int, pc int) uint32
	labels     map[string]int
	data       []byte
	dataLabels map[string]int
}

func newAsm() *asm {
	return &asm{labels: map[string]int{}, dataLabels: map[string]int{}}
}

func (a *asm) label(name string) *asm {
	a.labels[name] = len(a.code) * machine.InstructionSize
	return a
}

func (a *asm) emit(w uint32) *asm {
	a.code = append(a.code, func(func(string) int, int) uint32 { return w })
	return a
}

func (a *asm) emitf(f func(resolve func(string) int, pc int) uint32) *asm {
	a.code = append(a.code, f)
	return a
}

// li loads a constant.
func (a *asm) li(rt, v int) *asm { return a.emit(machine.Addi(rt, 0, v)) }

// mov copies rs into rt.
func (a *asm) mov(rt, rs int) *asm { return a.emit(machine.Addi(rt, rs, 0)) }

// addi adds a constant.
func (a *asm) addi(rt, rs, v int) *asm { return a.emit(machine.Addi(rt, rs, v)) }

// la loads the address of a label.
func (a *asm) la(rt int, name string) *asm {
	return a.emitf(func(resolve func(string) int, _ int) uint32 { return machine.Addi(rt, 0, resolve(name)) })
}

// lw loads the word at a data label.
func (a *asm) lw(rt int, name string) *asm {
	return a.emitf(func(resolve func(string) int, _ int) uint32 { return machine.Lw(rt, 0, resolve(name)) })
}

// sw stores rt at a data label.
func (a *asm) sw(rt int, name string) *asm {
	return a.emitf(func(resolve func(string) int, _ int) uint32 { return machine.Sw(rt, 0, resolve(name)) })
}

func (a *asm) bne(rs, rt int, name string) *asm {
	return a.emitf(func(resolve func(string) int, pc int) uint32 {
		return machine.Bne(rs, rt, (resolve(name)-pc-machine.InstructionSize)/machine.InstructionSize)
	})
}

func (a *asm) j(name string) *asm {
	return a.emitf(func(resolve func(string) int, _ int) uint32 { return machine.J(resolve(name)) })
}

// sys issues system call code with whatever is already in r4.
func (a *asm) sys(code Syscall) *asm {
	return a.li(2, int(code)).emit(machine.Syscall())
}

// sysv issues system call code with constant argument v.
func (a *asm) sysv(code Syscall, v int) *asm {
	return a.li(4, v).sys(code)
}

// sysr issues system call code with the argument taken from register r.
func (a *asm) sysr(code Syscall, r int) *asm {
	return a.mov(4, r).sys(code)
}

// sysl issues system call code with the address of a label as argument.
func (a *asm) sysl(code Syscall, name string) *asm {
	return a.la(4, name).sys(code)
}

// exitResult exits with r2 plus offset, making a -1 result distinguishable
// from a crash.
func (a *asm) exitResult(offset int) *asm {
	return a.addi(4, 2, offset).sys(SyscallExit)
}

func (a *asm) word(name string, v uint32) *asm {
	a.dataLabels[name] = len(a.data)
	a.data = binary.LittleEndian.AppendUint32(a.data, v)
	return a
}

func (a *asm) str(name, s string) *asm {
	a.dataLabels[name] = len(a.data)
	a.data = append(a.data, s...)
	a.data = append(a.data, 0)
	for len(a.data)%4 != 0 {
		a.data = append(a.data, 0)
	}
	return a
}

func (a *asm) image() []byte {
	codeLen := len(a.code) * machine.InstructionSize
	resolve := func(name string) int {
		if addr, ok := a.labels[name]; ok {
			return addr
		}
		if off, ok := a.dataLabels[name]; ok {
			return codeLen + off
		}
		panic(fmt.Sprintf("undefined label %q", name))
	}
	words := make([]uint32, len(a.code))
	for i, f := range a.code {
		words[i] = f(resolve, i*machine.InstructionSize)
	}
	b := &noff.Builder{Code: words, Data: a.data}
	return b.Bytes()
}
