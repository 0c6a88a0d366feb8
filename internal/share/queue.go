package share

import (
	"errors"
	"fmt"
)

// ErrQueueFull is returned by Push on a full queue declared with Reject.
var ErrQueueFull = errors.New("share: queue full")

// OverflowPolicy fixes, at declaration time, what happens when a producer
// pushes into a full queue.
type OverflowPolicy int

const (
	// DropOldest discards the oldest queued item to make room. Pushes never
	// fail; the drop is counted.
	DropOldest OverflowPolicy = iota
	// Reject refuses the new item and returns ErrQueueFull.
	Reject
)

func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "drop-oldest"
	case Reject:
		return "reject"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", int(p))
	}
}

// Queue is the read side of a bounded FIFO used where event ordering matters
// (bump edges, for example) rather than just the latest value. TryPop never
// blocks: the cooperative loop must not be stalled by an empty queue.
type Queue[T any] struct {
	name    string
	policy  OverflowPolicy
	buf     []T
	head    int
	n       int
	pushes  uint64
	dropped uint64
}

// TryPop removes and returns the oldest item. The second result is false if
// the queue is empty.
func (q *Queue[T]) TryPop() (T, bool) {
	var zero T
	if q.n == 0 {
		return zero, false
	}
	v := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return v, true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int { return q.n }

// Cap returns the fixed capacity set at declaration.
func (q *Queue[T]) Cap() int { return len(q.buf) }

// Dropped returns how many items the DropOldest policy has discarded.
func (q *Queue[T]) Dropped() uint64 { return q.dropped }

// Name returns the queue's declared name.
func (q *Queue[T]) Name() string { return q.name }

func (q *Queue[T]) describe() Description {
	var zero T
	return Description{
		Name:   q.name,
		Kind:   "queue",
		Type:   fmt.Sprintf("%T", zero),
		Writes: q.pushes,
		Drops:  q.dropped,
		Value:  fmt.Sprintf("%d/%d", q.n, len(q.buf)),
	}
}

// QueueWriter is the producer's handle for a queue, one per queue by
// construction.
type QueueWriter[T any] struct {
	q *Queue[T]
}

// Push appends an item. On a full queue the declared policy decides:
// DropOldest discards the oldest item and succeeds, Reject returns
// ErrQueueFull and leaves the queue unchanged.
func (w *QueueWriter[T]) Push(v T) error {
	q := w.q
	if q.n == len(q.buf) {
		switch q.policy {
		case DropOldest:
			q.head = (q.head + 1) % len(q.buf)
			q.n--
			q.dropped++
		default:
			return ErrQueueFull
		}
	}
	q.buf[(q.head+q.n)%len(q.buf)] = v
	q.n++
	q.pushes++
	return nil
}

// Queue returns the read view to hand to consumer tasks.
func (w *QueueWriter[T]) Queue() *Queue[T] { return w.q }

// DeclareQueue registers a named bounded FIFO and returns its sole writer.
// Capacity must be positive and is fixed for the queue's lifetime.
func DeclareQueue[T any](s *Store, name string, capacity int, policy OverflowPolicy) (*QueueWriter[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("share: queue %q capacity must be positive, got %d", name, capacity)
	}
	q := &Queue[T]{name: name, policy: policy, buf: make([]T, capacity)}
	if err := s.register(name, q); err != nil {
		return nil, err
	}
	return &QueueWriter[T]{q: q}, nil
}
