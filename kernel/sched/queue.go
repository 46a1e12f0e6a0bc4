package sched

import "novaos/kernel/thread"

// tcbQueue is an intrusive FIFO threaded through TCB.Next/TCB.Prev, so the
// scheduler path never allocates: the only storage a queue needs is the
// head/tail pointers below, and moving a TCB between queues is just
// relinking.
type tcbQueue struct {
	head, tail *thread.TCB
}

func (q *tcbQueue) empty() bool {
	return q.head == nil
}

// pushBack appends t to the tail of the queue. t must not currently be a
// member of any other queue.
func (q *tcbQueue) pushBack(t *thread.TCB) {
	t.Next, t.Prev = nil, q.tail
	if q.tail != nil {
		q.tail.Next = t
	} else {
		q.head = t
	}
	q.tail = t
}

// popFront removes and returns the head of the queue, or nil if empty.
func (q *tcbQueue) popFront() *thread.TCB {
	t := q.head
	if t == nil {
		return nil
	}
	q.remove(t)
	return t
}

// remove unlinks t from the queue. t must currently be a member of this
// queue (or the call is a no-op on an unrelated queue, since it only
// follows t's own links).
func (q *tcbQueue) remove(t *thread.TCB) {
	if t.Prev != nil {
		t.Prev.Next = t.Next
	} else if q.head == t {
		q.head = t.Next
	}

	if t.Next != nil {
		t.Next.Prev = t.Prev
	} else if q.tail == t {
		q.tail = t.Prev
	}

	t.Next, t.Prev = nil, nil
}

// insertSorted inserts t into the queue ordered ascending by key(t),
// breaking ties by insertion order (new entries with an equal key go after
// existing ones). Used for the sleep queue, which stays ordered by wake
// time ascending.
func (q *tcbQueue) insertSorted(t *thread.TCB, key func(*thread.TCB) uint64) {
	k := key(t)
	for n := q.head; n != nil; n = n.Next {
		if key(n) > k {
			t.Next, t.Prev = n, n.Prev
			if n.Prev != nil {
				n.Prev.Next = t
			} else {
				q.head = t
			}
			n.Prev = t
			return
		}
	}
	q.pushBack(t)
}
