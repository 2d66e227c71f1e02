package thread

// RunQueue is a first-in first-out queue of threads.
type RunQueue struct {
	items []*Thread
}

// NewRunQueue creates an empty queue.
func NewRunQueue() *RunQueue {
	return &RunQueue{items: make([]*Thread, 0)}
}

// Len returns the number of items in the queue.
func (q *RunQueue) Len() int { return len(q.items) }

// Push appends a thread to the tail.
func (q *RunQueue) Push(t *Thread) {
	q.items = append(q.items, t)
}

// Pop removes and returns the head, or nil if the queue is empty.
func (q *RunQueue) Pop() *Thread {
	if len(q.items) == 0 {
		return nil
	}
	t := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return t
}

// Contains checks if a thread is in the queue.
func (q *RunQueue) Contains(t *Thread) bool {
	for _, item := range q.items {
		if item == t {
			return true
		}
	}
	return false
}

// Remove removes a thread from the queue.
func (q *RunQueue) Remove(t *Thread) bool {
	for i, item := range q.items {
		if item == t {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}
