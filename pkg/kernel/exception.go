package kernel

import (
	"context"
	"errors"
	"fmt"

	"minikern/pkg/addrspace"
	"minikern/pkg/machine"
	"minikern/pkg/pcb"
	"minikern/pkg/tracing"
)

// Sentinels that tell handleException how a system call ended.
var (
	errNoReturn = errors.New("no return")
	errKillSelf = errors.New("kill self")
)

// handleException is the machine's entry point into the kernel. It runs on
// the goroutine of the thread that trapped.
func (k *Kernel) handleException(which machine.ExceptionType) {
	space := k.currentSpace()
	pid := space.PCB.PID

	if which != machine.SyscallException {
		k.log.Warn("user exception, terminating process",
			"pid", pid,
			"exception", which.String(),
			"pc", k.machine.ReadRegister(machine.PCReg),
			"badVAddr", k.machine.ReadRegister(machine.BadVAddrReg))
		k.exit(-1)
		return
	}

	code := Syscall(k.machine.ReadRegister(resultReg))
	arg := k.machine.ReadRegister(arg1Reg)
	k.log.Debug("system call", "pid", pid, "call", code.String(), "arg", arg)
	_, span := k.tracer.StartSyscall(context.Background(), code.String(), pid)

	var (
		ret int
		err error
	)
	switch code {
	case SyscallHalt:
		tracing.EndSpan(span, nil)
		k.log.Info("shutdown initiated by user program", "pid", pid)
		k.scheduler.Halt()
	case SyscallExit:
		tracing.EndSpan(span.SetAttributes(map[string]int{"exit.status": arg}), nil)
		k.exit(arg)
	case SyscallExec:
		ret, err = k.doExec(space, arg)
	case SyscallFork:
		ret, err = k.doFork(space, arg)
	case SyscallJoin:
		ret, err = k.doJoin(space, arg)
	case SyscallKill:
		ret, err = k.doKill(space, arg)
	case SyscallYield:
		k.scheduler.Yield()
	case SyscallCreate:
		ret, err = k.doCreate(space, arg)
	default:
		tracing.EndSpan(span, fmt.Errorf("unknown system call %d", int(code)))
		k.log.Warn("unknown system call, terminating process", "pid", pid, "code", int(code))
		k.exit(-1)
	}

	span.SetAttributes(map[string]int{"syscall.result": ret})
	switch err {
	case errNoReturn:
		tracing.EndSpan(span, nil)
		return
	case errKillSelf:
		tracing.EndSpan(span, nil)
		k.exit(0)
	}
	tracing.EndSpan(span, err)
	if code != SyscallYield {
		k.machine.WriteRegister(resultReg, ret)
	}
	k.machine.AdvancePC()
}

// doFork starts a copy of the calling process at entry and returns the
// child's pid, or -1 when memory is short.
func (k *Kernel) doFork(space *addrspace.AddrSpace, entry int) (int, error) {
	parent := space.PCB
	if space.NumPages() > k.frames.FreeCount() {
		k.log.Warn("fork refused, not enough memory",
			"pid", parent.PID, "pages", space.NumPages(), "free", k.frames.FreeCount())
		return -1, addrspace.ErrOutOfMemory
	}

	regs := k.machine.Registers()
	childSpace, err := space.Duplicate()
	if err != nil {
		k.log.Warn("fork failed", "pid", parent.PID, "error", err)
		return -1, err
	}

	child := k.pcbs.Allocate()
	t := k.scheduler.NewThread(fmt.Sprintf("pid-%d", child.PID))
	child.Thread = t
	parent.AddChild(child)
	childSpace.PCB = child
	t.Space = childSpace

	regs[machine.PCReg] = entry
	regs[machine.NextPCReg] = entry + machine.InstructionSize
	regs[machine.PrevPCReg] = entry - machine.InstructionSize
	t.SetUserRegisters(regs)

	t.Fork(func(pid int) {
		k.log.Debug("process forked",
			"pid", pid, "pc", k.machine.ReadRegister(machine.PCReg), "pages", childSpace.NumPages())
		k.machine.Run()
	}, child.PID)

	k.log.Info("fork", "pid", parent.PID, "child", child.PID, "entry", entry)
	return child.PID, nil
}

// doExec replaces the calling process's program. The new image is loaded
// before the old one is released, so on failure the caller continues
// unchanged and -1 is returned.
func (k *Kernel) doExec(space *addrspace.AddrSpace, pathAddr int) (int, error) {
	p := space.PCB
	path, err := space.ReadString(pathAddr, k.cfg.Process.MaxStringLength)
	if err != nil {
		k.log.Warn("exec: bad path address", "pid", p.PID, "error", err)
		return -1, err
	}

	f, err := k.fs.Open(path)
	if err != nil {
		k.log.Warn("exec: unable to open file", "pid", p.PID, "path", path, "error", err)
		return -1, err
	}
	defer f.Close()

	newSpace, err := k.loader.Load(f)
	if err != nil {
		k.log.Warn("exec: could not create address space", "pid", p.PID, "path", path, "error", err)
		return -1, err
	}

	space.Release()
	newSpace.PCB = p
	p.Thread.Space = newSpace
	newSpace.InitRegisters()
	newSpace.RestoreState()

	k.log.Info("exec", "pid", p.PID, "path", path, "pages", newSpace.NumPages())
	return 0, errNoReturn
}

// doJoin waits for child pid to exit and returns its status.
func (k *Kernel) doJoin(space *addrspace.AddrSpace, pid int) (int, error) {
	self := space.PCB
	target := k.pcbs.Lookup(pid)
	if target == nil {
		return -1, fmt.Errorf("join %d: %w", pid, ErrInvalidPid)
	}
	if target.Parent() != self {
		return -1, fmt.Errorf("join %d: %w", pid, ErrNotChild)
	}

	for !target.HasExited() {
		k.scheduler.Yield()
	}

	status := target.ExitStatus()
	self.RemoveChild(target)
	k.pcbs.Deallocate(target)
	k.log.Info("join", "pid", self.PID, "child", pid, "status", status)
	return status, nil
}

// doKill terminates process pid with status -1. Killing the caller is an
// Exit(0); killing a process that already exited does nothing.
func (k *Kernel) doKill(space *addrspace.AddrSpace, pid int) (int, error) {
	self := space.PCB
	target := k.pcbs.Lookup(pid)
	if target == nil {
		return -1, fmt.Errorf("kill %d: %w", pid, ErrInvalidPid)
	}
	if target == self {
		return 0, errKillSelf
	}
	if target.HasExited() {
		return 0, nil
	}

	victim := target.Thread
	victimSpace, _ := victim.Space.(*addrspace.AddrSpace)
	k.retire(target, victimSpace, -1)
	k.scheduler.RemoveThread(victim)
	k.log.Info("kill", "pid", self.PID, "victim", pid)
	return 0, nil
}

// doCreate creates the file named at pathAddr.
func (k *Kernel) doCreate(space *addrspace.AddrSpace, pathAddr int) (int, error) {
	path, err := space.ReadString(pathAddr, k.cfg.Process.MaxStringLength)
	if err != nil {
		return -1, err
	}
	if err := k.fs.Create(path); err != nil {
		k.log.Warn("create failed", "pid", space.PCB.PID, "path", path, "error", err)
		return -1, err
	}
	k.log.Info("create", "pid", space.PCB.PID, "path", path)
	return 0, nil
}

// exit terminates the calling process. It never returns.
func (k *Kernel) exit(status int) {
	cur := k.scheduler.Current()
	space := k.currentSpace()
	k.retire(space.PCB, space, status)
	cur.Space = nil
	k.scheduler.Finish()
}

// retire releases everything process p owns except, when a parent may
// still join it, the record itself.
func (k *Kernel) retire(p *pcb.PCB, space *addrspace.AddrSpace, status int) {
	if err := p.MarkExited(status); err != nil {
		panic(fmt.Sprintf("kernel: pid %d: %v", p.PID, err))
	}
	p.ReapOrDisownChildren(k.pcbs)
	orphan := p.Parent() == nil
	if orphan {
		k.pcbs.Deallocate(p)
	}
	if space != nil {
		space.Release()
	}
	k.log.Info("process exited", "pid", p.PID, "status", status, "orphan", orphan)
	k.notifyExit(p.PID, status)
}
