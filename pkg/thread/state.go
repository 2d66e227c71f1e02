package thread

import "fmt"

// Status is the scheduling state of a thread.
type Status string

const (
	// StatusJustCreated indicates the thread has not been forked yet.
	StatusJustCreated Status = "just-created"
	// StatusReady indicates the thread is waiting in the ready queue.
	StatusReady Status = "ready"
	// StatusRunning indicates the thread holds the CPU.
	StatusRunning Status = "running"
	// StatusBlocked indicates the thread is asleep until someone readies it.
	StatusBlocked Status = "blocked"
	// StatusFinished indicates the thread has retired or was removed.
	StatusFinished Status = "finished"
)

// StateTransition represents a valid status transition.
type StateTransition struct {
	From Status
	To   Status
}

// ValidTransitions defines all valid status transitions.
var ValidTransitions = []StateTransition{
	// Fork: JustCreated -> Ready
	{From: StatusJustCreated, To: StatusReady},
	// Dispatch: Ready -> Running
	{From: StatusReady, To: StatusRunning},
	// Yield: Running -> Ready
	{From: StatusRunning, To: StatusReady},
	// Sleep: Running -> Blocked
	{From: StatusRunning, To: StatusBlocked},
	// Wake up: Blocked -> Ready
	{From: StatusBlocked, To: StatusReady},
	// Finish: Running -> Finished
	{From: StatusRunning, To: StatusFinished},
	// Removed while waiting for the CPU: Ready -> Finished
	{From: StatusReady, To: StatusFinished},
	// Removed while asleep: Blocked -> Finished
	{From: StatusBlocked, To: StatusFinished},
	// Removed before it was ever forked: JustCreated -> Finished
	{From: StatusJustCreated, To: StatusFinished},
}

// IsValidTransition checks if a status transition is valid.
func IsValidTransition(from, to Status) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

// setStatus moves t to a new status. An invalid transition means the
// scheduler's bookkeeping is broken.
func (t *Thread) setStatus(to Status) {
	if !IsValidTransition(t.status, to) {
		panic(fmt.Sprintf("thread %s: invalid transition %s -> %s", t.name, t.status, to))
	}
	t.status = to
}
