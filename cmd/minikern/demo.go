package main

import (
	"minikern/pkg/kernel"
	"minikern/pkg/machine"
	"minikern/pkg/noff"
)

const demoPath = "/test/forkjoin"

// demoProgram forks a child that counts to 10 in its own copy of a global,
// joins it and exits with the child's status plus the parent's global.
//
//	0  ADDI r4, r0, child
//	1  ADDI r2, r0, Fork
//	2  SYSCALL
//	3  ADDI r4, r2, 0
//	4  ADDI r2, r0, Join
//	5  SYSCALL
//	6  LW   r8, global
//	7  ADD  r4, r2, r8
//	8  ADDI r2, r0, Exit
//	9  SYSCALL
//	child:
//	10 ADDI r9, r0, 10
//	loop:
//	11 LW   r8, global
//	12 ADDI r8, r8, 1
//	13 SW   r8, global
//	14 BNE  r8, r9, loop
//	15 ADDI r4, r8, 0
//	16 ADDI r2, r0, Exit
//	17 SYSCALL
func demoProgram() []byte {
	const (
		child  = 10 * machine.InstructionSize
		global = 18 * machine.InstructionSize
	)
	b := &noff.Builder{
		Code: []uint32{
			machine.Addi(4, 0, child),
			machine.Addi(2, 0, int(kernel.SyscallFork)),
			machine.Syscall(),
			machine.Addi(4, 2, 0),
			machine.Addi(2, 0, int(kernel.SyscallJoin)),
			machine.Syscall(),
			machine.Lw(8, 0, global),
			machine.Add(4, 2, 8),
			machine.Addi(2, 0, int(kernel.SyscallExit)),
			machine.Syscall(),

			machine.Addi(9, 0, 10),
			machine.Lw(8, 0, global),
			machine.Addi(8, 8, 1),
			machine.Sw(8, 0, global),
			machine.Bne(8, 9, -4),
			machine.Addi(4, 8, 0),
			machine.Addi(2, 0, int(kernel.SyscallExit)),
			machine.Syscall(),
		},
		Data: []byte{0, 0, 0, 0},
	}
	return b.Bytes()
}
