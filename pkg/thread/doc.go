/*
Package thread implements cooperative multitasking on a single simulated
CPU.

Every Thread runs on its own goroutine, but only the thread holding the
CPU executes: the others are parked until the scheduler hands the CPU to
them. Control changes hands only at Yield, Sleep and Finish, so code that
does not call one of them runs without interruption.

# Context switches

When a thread that runs a user program gives up the CPU, the scheduler
saves the machine's register file into the thread and detaches its address
space; when the thread gets the CPU back, both are restored.

# Synchronization

Lock and Condition are built on Sleep and ReadyToRun. Lock implements
sync.Locker so that it can guard multi-step protocols in other packages.
*/
package thread
