package kernel

import "fmt"

// Syscall is a system call code passed in r2.
type Syscall int

// System call codes.
const (
	SyscallHalt   Syscall = 0
	SyscallExit   Syscall = 1
	SyscallExec   Syscall = 2
	SyscallJoin   Syscall = 3
	SyscallCreate Syscall = 4
	SyscallFork   Syscall = 9
	SyscallYield  Syscall = 10
	SyscallKill   Syscall = 11
)

var syscallNames = map[Syscall]string{
	SyscallHalt:   "Halt",
	SyscallExit:   "Exit",
	SyscallExec:   "Exec",
	SyscallJoin:   "Join",
	SyscallCreate: "Create",
	SyscallFork:   "Fork",
	SyscallYield:  "Yield",
	SyscallKill:   "Kill",
}

func (s Syscall) String() string {
	if name, ok := syscallNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Syscall(%d)", int(s))
}

// Registers used by the calling convention.
const (
	resultReg = 2
	arg1Reg   = 4
)
