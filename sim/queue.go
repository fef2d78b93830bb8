package sim

import "fmt"

type entry struct {
	act  Action
	left int // remaining ticks, -1 forever, 0 free
}

// Queue is an actor's pending actions: a buffer with explicit head and
// tail cursors. When the tail reaches the end of the buffer the live
// entries are moved to the front if the head has advanced; otherwise the
// buffer doubles.
type Queue struct {
	buf  []entry
	head int
	tail int
}

// NewQueue creates a queue with room for capacity actions.
func NewQueue(capacity int) (*Queue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrQueueConfig, capacity)
	}
	return &Queue{buf: make([]entry, capacity)}, nil
}

// Len returns the number of pending actions.
func (q *Queue) Len() int { return q.tail - q.head }

// Cap returns the buffer size.
func (q *Queue) Cap() int { return len(q.buf) }

// Push appends an action.
func (q *Queue) Push(act Action) {
	if q.tail == len(q.buf) {
		if q.head > 0 {
			n := copy(q.buf, q.buf[q.head:q.tail])
			clear(q.buf[n:])
			q.head, q.tail = 0, n
		} else {
			grown := make([]entry, 2*len(q.buf))
			copy(grown, q.buf)
			q.buf = grown
		}
	}
	q.buf[q.tail] = entry{act: act, left: ticks(act)}
	q.tail++
}

// Peek returns the head action.
func (q *Queue) Peek() (Action, bool) {
	if q.head == q.tail {
		return nil, false
	}
	return q.buf[q.head].act, true
}

// Pop removes and returns the head action.
func (q *Queue) Pop() (Action, bool) {
	if q.head == q.tail {
		return nil, false
	}
	act := q.buf[q.head].act
	q.buf[q.head] = entry{}
	q.head++
	if q.head == q.tail {
		q.head, q.tail = 0, 0
	}
	return act, true
}

// consume spends one tick of the head action and drops it when its
// counter runs out. Repeating actions stay at the head.
func (q *Queue) consume() {
	if q.head == q.tail {
		return
	}
	e := &q.buf[q.head]
	if e.left < 0 {
		return
	}
	e.left--
	if e.left <= 0 {
		q.Pop()
	}
}

// Clear drops every pending action.
func (q *Queue) Clear() {
	clear(q.buf[q.head:q.tail])
	q.head, q.tail = 0, 0
}

// Actions returns a copy of the pending actions in order.
func (q *Queue) Actions() []Action {
	out := make([]Action, 0, q.Len())
	for i := q.head; i < q.tail; i++ {
		out = append(out, q.buf[i].act)
	}
	return out
}
