package replay

import "sync"

// Queue is an unbounded FIFO. Push never blocks and never drops.
type Queue struct {
	mu    sync.Mutex
	items []Operation
	head  int
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Push(ops ...Operation) {
	q.mu.Lock()
	q.items = append(q.items, ops...)
	q.mu.Unlock()
}

// Pop removes the head operation. ok is false when the queue is empty.
func (q *Queue) Pop() (op Operation, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head >= len(q.items) {
		return Operation{}, false
	}
	op = q.items[q.head]
	q.items[q.head] = Operation{}
	q.head++

	// reclaim the consumed prefix once it dominates the backing array
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return op, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Pending returns a copy of the queued operations in dequeue order.
func (q *Queue) Pending() []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Operation, len(q.items)-q.head)
	copy(out, q.items[q.head:])
	return out
}
