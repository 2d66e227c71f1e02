package thread

import "fmt"

// Lock is a mutual-exclusion lock whose waiters sleep instead of spinning.
type Lock struct {
	name    string
	sched   *Scheduler
	owner   *Thread
	waiters *RunQueue
}

// NewLock creates an unheld lock.
func (s *Scheduler) NewLock(name string) *Lock {
	return &Lock{name: name, sched: s, waiters: NewRunQueue()}
}

// Acquire waits until the lock is free and takes it.
func (l *Lock) Acquire() {
	cur := l.sched.Current()
	if cur == nil {
		panic(fmt.Sprintf("lock %s: acquire outside a thread", l.name))
	}
	if l.owner == cur {
		panic(fmt.Sprintf("lock %s: already held by %s", l.name, cur.name))
	}
	for l.owner != nil {
		l.waiters.Push(cur)
		l.sched.Sleep()
	}
	l.owner = cur
}

// Release frees the lock and wakes one waiter.
func (l *Lock) Release() {
	if !l.IsHeldByCurrentThread() {
		panic(fmt.Sprintf("lock %s: released by a thread that does not hold it", l.name))
	}
	l.owner = nil
	wakeOne(l.sched, l.waiters)
}

// IsHeldByCurrentThread reports whether the running thread owns the lock.
func (l *Lock) IsHeldByCurrentThread() bool {
	return l.owner != nil && l.owner == l.sched.Current()
}

// Lock implements sync.Locker.
func (l *Lock) Lock() { l.Acquire() }

// Unlock implements sync.Locker.
func (l *Lock) Unlock() { l.Release() }

// Condition is a condition variable used together with a Lock.
type Condition struct {
	name    string
	sched   *Scheduler
	waiters *RunQueue
}

// NewCondition creates a condition variable with no waiters.
func (s *Scheduler) NewCondition(name string) *Condition {
	return &Condition{name: name, sched: s, waiters: NewRunQueue()}
}

// Wait releases l, sleeps until signalled, and reacquires l.
func (c *Condition) Wait(l *Lock) {
	c.mustHold(l)
	c.waiters.Push(c.sched.Current())
	l.Release()
	c.sched.Sleep()
	l.Acquire()
}

// Signal wakes one waiter.
func (c *Condition) Signal(l *Lock) {
	c.mustHold(l)
	wakeOne(c.sched, c.waiters)
}

// Broadcast wakes every waiter.
func (c *Condition) Broadcast(l *Lock) {
	c.mustHold(l)
	for wakeOne(c.sched, c.waiters) {
	}
}

func (c *Condition) mustHold(l *Lock) {
	if !l.IsHeldByCurrentThread() {
		panic(fmt.Sprintf("condition %s: lock %s not held", c.name, l.name))
	}
}

// wakeOne readies the first waiter that has not been removed.
func wakeOne(s *Scheduler, waiters *RunQueue) bool {
	for {
		t := waiters.Pop()
		if t == nil {
			return false
		}
		if t.status == StatusBlocked {
			s.ReadyToRun(t)
			return true
		}
	}
}
