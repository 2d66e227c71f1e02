package pcb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"minikern/pkg/thread"
)

// State is the lifecycle state of a process.
type State string

const (
	// StateRunning indicates the process has not exited yet.
	StateRunning State = "running"
	// StateZombie indicates the process has exited and its status is
	// waiting to be collected by its parent.
	StateZombie State = "zombie"
)

// ErrInvalidTransition is reported for a lifecycle transition the table
// below does not allow.
var ErrInvalidTransition = errors.New("invalid state transition")

// StateTransition represents a valid state transition.
type StateTransition struct {
	From State
	To   State
}

// ValidTransitions defines all valid state transitions.
var ValidTransitions = []StateTransition{
	// Exit or Kill: Running -> Zombie
	{From: StateRunning, To: StateZombie},
}

// IsValidTransition checks if a state transition is valid.
func IsValidTransition(from, to State) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

// PCB is the kernel's record of one process.
type PCB struct {
	// PID is the process identifier, unique among live processes.
	PID int
	// Thread is the kernel thread executing the process.
	Thread *thread.Thread
	// mu protects the mutable fields below.
	mu sync.Mutex
	// parent is nil once the process has been disowned.
	parent *PCB
	// children are owned by this PCB until reaped or disowned.
	children map[int]*PCB
	// exitStatus is valid once state is StateZombie.
	exitStatus int
	state      State
	reaped     bool
}

// New creates a running PCB with the given pid.
func New(pid int) *PCB {
	return &PCB{
		PID:      pid,
		children: make(map[int]*PCB),
		state:    StateRunning,
	}
}

// Parent returns the parent PCB, or nil if the process has been disowned or
// never had one.
func (p *PCB) Parent() *PCB {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parent
}

func (p *PCB) setParent(parent *PCB) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parent = parent
}

// AddChild links child under p.
func (p *PCB) AddChild(child *PCB) {
	child.setParent(p)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.children[child.PID] = child
}

// RemoveChild unlinks child from p and reports whether it was a child.
func (p *PCB) RemoveChild(child *PCB) bool {
	p.mu.Lock()
	c, ok := p.children[child.PID]
	ok = ok && c == child
	if ok {
		delete(p.children, child.PID)
	}
	p.mu.Unlock()

	if ok {
		child.setParent(nil)
	}
	return ok
}

// Children returns the current children ordered by pid.
func (p *PCB) Children() []*PCB {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*PCB, 0, len(p.children))
	for _, c := range p.children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}

// State returns the lifecycle state.
func (p *PCB) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// HasExited reports whether the process has exited.
func (p *PCB) HasExited() bool {
	return p.State() == StateZombie
}

// MarkExited records the exit status and moves the PCB to StateZombie.
func (p *PCB) MarkExited(status int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !IsValidTransition(p.state, StateZombie) {
		return ErrInvalidTransition
	}
	p.state = StateZombie
	p.exitStatus = status
	return nil
}

// ExitStatus returns the status recorded by MarkExited.
func (p *PCB) ExitStatus() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitStatus
}

// ReapOrDisownChildren runs once, when p exits. Children that have already
// exited are removed from reg; their status can no longer be joined.
// Children still running lose their parent link so that their own exit
// deallocates them.
func (p *PCB) ReapOrDisownChildren(reg *Manager) {
	p.mu.Lock()
	if p.reaped {
		p.mu.Unlock()
		panic(fmt.Sprintf("pcb: children of pid %d already reaped", p.PID))
	}
	p.reaped = true
	children := p.children
	p.children = make(map[int]*PCB)
	p.mu.Unlock()

	pids := make([]int, 0, len(children))
	for pid := range children {
		pids = append(pids, pid)
	}
	sort.Ints(pids)

	for _, pid := range pids {
		child := children[pid]
		child.setParent(nil)
		if child.HasExited() {
			reg.Deallocate(child)
		}
	}
}
