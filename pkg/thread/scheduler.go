package thread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"minikern/pkg/machine"
)

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Scheduler hands the single CPU from thread to thread. Every method except
// Run and Shutdown must be called by the thread currently holding the CPU.
type Scheduler struct {
	machine *machine.Machine
	log     *slog.Logger
	// ready holds threads waiting for the CPU in arrival order.
	ready   *RunQueue
	current *Thread
	// done is closed when the simulation stops.
	done     chan struct{}
	stopOnce sync.Once
	started  bool
	switches int64
}

// NewScheduler creates a scheduler for the given machine.
func NewScheduler(m *machine.Machine, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		machine: m,
		log:     logger,
		ready:   NewRunQueue(),
		done:    make(chan struct{}),
	}
}

// NewThread creates a thread that is not yet runnable.
func (s *Scheduler) NewThread(name string) *Thread {
	return &Thread{
		name:   name,
		sched:  s,
		status: StatusJustCreated,
		wake:   make(chan struct{}, 1),
		kill:   make(chan struct{}),
	}
}

// Current returns the thread holding the CPU.
func (s *Scheduler) Current() *Thread {
	return s.current
}

// Switches returns the number of context switches performed.
func (s *Scheduler) Switches() int64 {
	return s.switches
}

// Done is closed once the simulation has stopped.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// ReadyToRun appends t to the ready queue.
func (s *Scheduler) ReadyToRun(t *Thread) {
	t.setStatus(StatusReady)
	s.ready.Push(t)
}

// FindNextToRun removes and returns the next ready thread, or nil.
func (s *Scheduler) FindNextToRun() *Thread {
	return s.ready.Pop()
}

// ReadyCount returns the number of threads waiting for the CPU.
func (s *Scheduler) ReadyCount() int {
	return s.ready.Len()
}

// Run dispatches the first ready thread and blocks until the simulation
// halts, every thread has finished, or ctx is done. When ctx ends the run,
// a thread that never yields may still be executing.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.started {
		return ErrAlreadyRunning
	}
	s.started = true

	next := s.FindNextToRun()
	if next == nil {
		s.Shutdown()
		return nil
	}
	s.dispatch(next)

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.Shutdown()
		return ctx.Err()
	}
}

// Yield gives the CPU to the next ready thread, if any, and puts the
// caller back on the ready queue.
func (s *Scheduler) Yield() {
	next := s.FindNextToRun()
	if next == nil {
		return
	}
	s.ReadyToRun(s.current)
	s.switchTo(next)
}

// Sleep blocks the caller until another thread readies it. With nothing
// left to run the simulation halts.
func (s *Scheduler) Sleep() {
	cur := s.current
	cur.setStatus(StatusBlocked)

	next := s.FindNextToRun()
	if next == nil {
		s.log.Warn("no runnable threads, halting", "blocked", cur.name)
		s.Halt()
	}
	s.switchTo(next)
}

// Finish retires the caller. It never returns.
func (s *Scheduler) Finish() {
	cur := s.current
	cur.setStatus(StatusFinished)
	cur.Space = nil
	s.log.Debug("thread finished", "thread", cur.name)

	next := s.FindNextToRun()
	if next == nil {
		s.current = nil
		s.Shutdown()
		runtime.Goexit()
	}
	s.dispatch(next)
	runtime.Goexit()
}

// RemoveThread takes t out of scheduling for good. t must not be the
// running thread.
func (s *Scheduler) RemoveThread(t *Thread) {
	if t == s.current {
		panic(fmt.Sprintf("thread %s: cannot remove the running thread", t.name))
	}
	if t.status == StatusFinished {
		return
	}
	s.ready.Remove(t)
	t.setStatus(StatusFinished)
	t.Space = nil
	close(t.kill)
	s.log.Debug("thread removed", "thread", t.name)
}

// Halt stops the simulation from inside a thread. It never returns.
func (s *Scheduler) Halt() {
	s.Shutdown()
	runtime.Goexit()
}

// Shutdown stops the simulation. Parked threads exit.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Scheduler) dispatch(next *Thread) {
	next.setStatus(StatusRunning)
	s.current = next
	s.switches++
	next.wake <- struct{}{}
}

func (s *Scheduler) switchTo(next *Thread) {
	cur := s.current
	cur.saveUserContext()
	s.log.Debug("context switch", "from", cur.name, "to", next.name)
	s.dispatch(next)

	cur.park()
	cur.restoreUserContext()
}
