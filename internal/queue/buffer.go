// Package queue provides an unbounded, growable ring buffer used to stage
// domain events between producers and a batch consumer.
package queue

import "sync"

// Buffer is a thread-safe ring buffer that doubles its capacity when full,
// so producers never block. Consumers block in Receive until an item
// arrives or the buffer is closed.
type Buffer[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	head   int
	tail   int
	count  int
	closed bool

	enqueued int64
	dequeued int64
	grows    int
}

// Stats is a point-in-time snapshot of buffer counters.
type Stats struct {
	Len      int
	Cap      int
	Enqueued int64
	Dequeued int64
	Grows    int
}

// New creates a buffer with the given initial capacity (minimum 1).
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	b := &Buffer[T]{items: make([]T, capacity)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Send appends an item, growing the ring when full. Returns false once the
// buffer is closed.
func (b *Buffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}
	if b.count == len(b.items) {
		b.grow()
	}

	b.items[b.tail] = item
	b.tail = (b.tail + 1) % len(b.items)
	b.count++
	b.enqueued++
	b.cond.Signal()
	return true
}

// Receive blocks until an item is available or the buffer is drained and
// closed. The second result is false only on close-and-empty.
func (b *Buffer[T]) Receive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.takeLocked(), true
}

// TryReceive removes one item without blocking.
func (b *Buffer[T]) TryReceive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.takeLocked(), true
}

// Drain removes up to max items (all items when max <= 0) without blocking.
func (b *Buffer[T]) Drain(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.count
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}

	out := make([]T, n)
	for i := range out {
		out[i] = b.takeLocked()
	}
	return out
}

// Close marks the buffer closed and wakes blocked receivers. Items already
// buffered remain receivable.
func (b *Buffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}

// Len returns the number of buffered items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Snapshot returns current counters.
func (b *Buffer[T]) Snapshot() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Len:      b.count,
		Cap:      len(b.items),
		Enqueued: b.enqueued,
		Dequeued: b.dequeued,
		Grows:    b.grows,
	}
}

// takeLocked pops the head item. Caller holds b.mu and has checked count.
func (b *Buffer[T]) takeLocked() T {
	item := b.items[b.head]
	var zero T
	b.items[b.head] = zero
	b.head = (b.head + 1) % len(b.items)
	b.count--
	b.dequeued++
	return item
}

// grow doubles capacity, unwrapping the ring. Caller holds b.mu.
func (b *Buffer[T]) grow() {
	bigger := make([]T, len(b.items)*2)
	if b.head < b.tail || b.count == 0 {
		copy(bigger, b.items[b.head:b.tail])
	} else {
		n := copy(bigger, b.items[b.head:])
		copy(bigger[n:], b.items[:b.tail])
	}
	b.items = bigger
	b.head = 0
	b.tail = b.count
	b.grows++
}
