package scheduler

import "github.com/clelom/titan/internal/packet"

// Capacity is the number of pending activations a node can hold.
const Capacity = packet.ActivationQueue

// Activation schedules a task for one run on one input port.
type Activation struct {
	Task uint8
	Port uint8
}

// Queue is a circular buffer of activations. The zero value is ready to use.
// It is not safe for concurrent use.
type Queue struct {
	ring    [Capacity]Activation
	head    int
	n       int
	dropped uint64
}

// Enqueue appends a, unless it repeats the newest pending entry or the
// queue is full. It reports whether a is pending after the call.
func (q *Queue) Enqueue(a Activation) bool {
	if q.n > 0 && q.ring[(q.head+q.n-1)%Capacity] == a {
		return true
	}
	if q.n == Capacity {
		q.dropped++
		return false
	}
	q.ring[(q.head+q.n)%Capacity] = a
	q.n++
	return true
}

// Pop removes the oldest activation.
func (q *Queue) Pop() (Activation, bool) {
	if q.n == 0 {
		return Activation{}, false
	}
	a := q.ring[q.head]
	q.head = (q.head + 1) % Capacity
	q.n--
	return a, true
}

// Retain keeps the activations for which keep returns true, in order.
func (q *Queue) Retain(keep func(Activation) bool) {
	var kept Queue
	kept.dropped = q.dropped
	for {
		a, ok := q.Pop()
		if !ok {
			break
		}
		if keep(a) {
			kept.ring[kept.n] = a
			kept.n++
		}
	}
	*q = kept
}

// Len returns the number of pending activations.
func (q *Queue) Len() int { return q.n }

// Dropped returns how many activations were rejected because the queue was
// full.
func (q *Queue) Dropped() uint64 { return q.dropped }

// Reset discards every pending activation.
func (q *Queue) Reset() {
	d := q.dropped
	*q = Queue{dropped: d}
}
