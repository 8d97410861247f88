package threadpool

import "sync/atomic"

// ringQueue is a fixed-capacity circular buffer of tasks. One slot is kept
// free so that front == rear means empty and rear+1 == front means full.
//
// All mutation happens under Pool.mu. The indices are atomics because the
// diagnostics accessors read them without the lock.
type ringQueue struct {
	buf   []Task
	slots int64
	front atomic.Int64
	rear  atomic.Int64
}

func newRingQueue(capacity int) *ringQueue {
	return &ringQueue{
		buf:   make([]Task, capacity+1),
		slots: int64(capacity + 1),
	}
}

func (q *ringQueue) next(i int64) int64 {
	i++
	if i >= q.slots {
		return 0
	}
	return i
}

func (q *ringQueue) empty() bool {
	return q.front.Load() == q.rear.Load()
}

func (q *ringQueue) full() bool {
	return q.next(q.rear.Load()) == q.front.Load()
}

// push stores t at rear. The caller must have checked full.
func (q *ringQueue) push(t Task) {
	rear := q.rear.Load()
	q.buf[rear] = t
	q.rear.Store(q.next(rear))
}

// pop removes the task at front. The caller must have checked empty.
func (q *ringQueue) pop() Task {
	front := q.front.Load()
	t := q.buf[front]
	q.buf[front] = Task{}
	q.front.Store(q.next(front))
	return t
}

// len is exact under Pool.mu and an advisory snapshot otherwise.
func (q *ringQueue) len() int {
	n := (q.rear.Load() - q.front.Load() + q.slots) % q.slots
	return int(n)
}

func (q *ringQueue) capacity() int {
	return int(q.slots - 1)
}

// drop discards every queued task and releases the buffer. It returns the
// number of tasks discarded. Indices stay readable for diagnostics.
func (q *ringQueue) drop() int {
	n := q.len()
	q.front.Store(q.rear.Load())
	q.buf = nil
	return n
}
