package thread

import (
	"runtime"

	"minikern/pkg/machine"
)

// UserSpace is the address space of the user program a thread runs. The
// scheduler detaches it when the thread loses the CPU and installs it again
// when the thread resumes.
type UserSpace interface {
	SaveState()
	RestoreState()
}

// Thread is a kernel thread of control.
type Thread struct {
	name   string
	sched  *Scheduler
	status Status
	// wake carries the CPU to this thread.
	wake chan struct{}
	// kill is closed when the thread is removed from scheduling.
	kill chan struct{}
	// userRegisters holds the user register file while the thread is
	// off the CPU.
	userRegisters [machine.NumTotalRegs]int
	// Space is the user program's address space, nil for pure kernel
	// threads.
	Space UserSpace
}

// Name returns the thread's debug name.
func (t *Thread) Name() string { return t.name }

// Status returns the scheduling status.
func (t *Thread) Status() Status { return t.status }

// Fork makes t runnable; when first dispatched it calls fn(arg) and
// finishes when fn returns.
func (t *Thread) Fork(fn func(arg int), arg int) {
	s := t.sched
	go func() {
		t.park()
		t.restoreUserContext()
		fn(arg)
		s.Finish()
	}()
	s.ReadyToRun(t)
}

// park blocks the goroutine until the thread is given the CPU. A removed
// thread, or any thread after the scheduler halts, exits instead.
func (t *Thread) park() {
	select {
	case <-t.wake:
	case <-t.kill:
		runtime.Goexit()
	case <-t.sched.done:
		runtime.Goexit()
	}
}

// SaveUserState copies the machine's registers into the thread.
func (t *Thread) SaveUserState() {
	t.userRegisters = t.sched.machine.Registers()
}

// RestoreUserState loads the thread's saved registers into the machine.
func (t *Thread) RestoreUserState() {
	t.sched.machine.SetRegisters(t.userRegisters)
}

// UserRegisters returns the saved register file.
func (t *Thread) UserRegisters() [machine.NumTotalRegs]int {
	return t.userRegisters
}

// SetUserRegisters replaces the saved register file; it takes effect the
// next time the thread is dispatched.
func (t *Thread) SetUserRegisters(regs [machine.NumTotalRegs]int) {
	t.userRegisters = regs
}

func (t *Thread) saveUserContext() {
	if t.Space == nil {
		return
	}
	t.SaveUserState()
	t.Space.SaveState()
}

func (t *Thread) restoreUserContext() {
	if t.Space == nil {
		return
	}
	t.RestoreUserState()
	t.Space.RestoreState()
}
