// Package kernel ties the simulated machine, the scheduler, the frame
// allocator and the process registry together and implements the system
// calls user programs issue.
//
// # Calling convention
//
// A user program loads the call code into r2 and up to four arguments into
// r4 to r7, then executes SYSCALL. The result, if any, is returned in r2 and
// execution continues with the next instruction. Exit and Halt never return;
// a successful Exec continues at address 0 of the new image.
//
//	Halt   0  stop the machine
//	Exit   1  Exit(status)
//	Exec   2  Exec(path) replaces the program of the caller
//	Join   3  Join(pid) waits for a child and returns its status
//	Create 4  Create(path) creates an empty file
//	Fork   9  Fork(entry) starts a copy of the caller at entry, returns the pid
//	Yield 10  Yield()
//	Kill  11  Kill(pid) terminates a process with status -1
//
// Any other exception terminates the offending process with status -1.
//
// # Process lifetime
//
// A process record outlives its program while a parent may still Join it.
// When a process exits, children that already exited are discarded and
// running children are disowned. A process without a parent is discarded
// as soon as it exits.
package kernel
