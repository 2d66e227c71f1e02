/*
Package machine simulates the user-level CPU that runs processes: a register
file, a flat physical main memory, an MMU that translates virtual addresses
through a single linear page table, and an interpreter for a small 32-bit
instruction set.

# Registers

Register numbering follows the MIPS convention used by the system call ABI:

  - r2 holds the system call code on entry and the result on return
  - r4..r7 carry up to four arguments
  - r29 is the stack pointer
  - PCReg, NextPCReg and PrevPCReg hold the program counter, the
    lookahead counter one instruction ahead, and the previous counter

# Instruction set

Every instruction is one little-endian word laid out as

	op(6) | rs(5) | rt(5) | imm(16)

with imm sign-extended. Supported operations are ADD, ADDI, LW, SW, BEQ,
BNE, J and SYSCALL. Register r0 always reads as zero.

# Exceptions

Address errors, page faults, writes to read-only pages, arithmetic overflow,
illegal instructions and SYSCALL all transfer control to the registered
ExceptionHandler. The handler is responsible for advancing the program
counter after a system call.
*/
package machine
