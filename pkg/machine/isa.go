package machine

import "math"

// Opcode is the operation field of an instruction word.
type Opcode uint32

const (
	OpADD Opcode = iota + 1
	OpADDI
	OpLW
	OpSW
	OpBEQ
	OpBNE
	OpJ
	OpSYSCALL
)

// Instruction is a decoded instruction word.
type Instruction struct {
	Op  Opcode
	RS  int
	RT  int
	Imm int
}

// Encode packs an instruction into a word.
func Encode(op Opcode, rs, rt, imm int) uint32 {
	return uint32(op)<<26 | uint32(rs&31)<<21 | uint32(rt&31)<<16 | uint32(imm)&0xffff
}

// Decode unpacks an instruction word.
func Decode(word uint32) Instruction {
	return Instruction{
		Op:  Opcode(word >> 26),
		RS:  int(word>>21) & 31,
		RT:  int(word>>16) & 31,
		Imm: int(int16(word & 0xffff)),
	}
}

// Add encodes rd = rs + rt.
func Add(rd, rs, rt int) uint32 { return Encode(OpADD, rs, rd, rt) }

// Addi encodes rt = rs + imm.
func Addi(rt, rs, imm int) uint32 { return Encode(OpADDI, rs, rt, imm) }

// Lw encodes rt = mem[rs+imm].
func Lw(rt, rs, imm int) uint32 { return Encode(OpLW, rs, rt, imm) }

// Sw encodes mem[rs+imm] = rt.
func Sw(rt, rs, imm int) uint32 { return Encode(OpSW, rs, rt, imm) }

// Beq encodes a branch taken when rs == rt. The offset counts instructions
// relative to the following instruction.
func Beq(rs, rt, offset int) uint32 { return Encode(OpBEQ, rs, rt, offset) }

// Bne encodes a branch taken when rs != rt.
func Bne(rs, rt, offset int) uint32 { return Encode(OpBNE, rs, rt, offset) }

// J encodes an absolute jump to a byte address below 64KiB.
func J(target int) uint32 { return Encode(OpJ, 0, 0, target) }

// Syscall encodes a trap into the kernel.
func Syscall() uint32 { return Encode(OpSYSCALL, 0, 0, 0) }

func addOverflows(a, b int) (int, bool) {
	sum := int64(a) + int64(b)
	if sum > math.MaxInt32 || sum < math.MinInt32 {
		return 0, true
	}
	return int(sum), false
}

// OneInstruction fetches, decodes and executes the instruction at PC.
func (m *Machine) OneInstruction() {
	pc := m.registers[PCReg]
	word, ok := m.ReadMem(pc, InstructionSize)
	if !ok {
		return
	}
	m.ticks++
	in := Decode(uint32(word))

	switch in.Op {
	case OpADD, OpADDI:
		operand := in.Imm
		if in.Op == OpADD {
			operand = m.ReadRegister(in.Imm & 31)
		}
		sum, overflow := addOverflows(m.ReadRegister(in.RS), operand)
		if overflow {
			m.RaiseException(OverflowException, 0)
			return
		}
		m.WriteRegister(in.RT, sum)
	case OpLW:
		value, ok := m.ReadMem(m.ReadRegister(in.RS)+in.Imm, 4)
		if !ok {
			return
		}
		m.WriteRegister(in.RT, value)
	case OpSW:
		if !m.WriteMem(m.ReadRegister(in.RS)+in.Imm, 4, m.ReadRegister(in.RT)) {
			return
		}
	case OpBEQ, OpBNE:
		equal := m.ReadRegister(in.RS) == m.ReadRegister(in.RT)
		if equal == (in.Op == OpBEQ) {
			m.jump(pc + InstructionSize + in.Imm*InstructionSize)
			return
		}
	case OpJ:
		m.jump(in.Imm & 0xffff)
		return
	case OpSYSCALL:
		m.RaiseException(SyscallException, 0)
		return
	default:
		m.RaiseException(IllegalInstrException, 0)
		return
	}
	m.AdvancePC()
}
