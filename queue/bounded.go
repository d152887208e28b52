// Package queue provides the bounded, drop-oldest channel abstraction used
// for both the Raw and Window channels. Publishers never block: a full
// queue sheds its oldest item to admit the new one and counts the drop.
package queue

import "sync/atomic"

// Bounded is a fixed-capacity FIFO with a drop-oldest overflow policy. It
// wraps a buffered channel rather than a slice+mutex so the consumer side
// gets a native receive-and-block-on-empty for free.
type Bounded[T any] struct {
	ch      chan T
	dropped int64
}

// NewBounded creates a bounded queue with the given capacity.
func NewBounded[T any](capacity int) *Bounded[T] {
	return &Bounded[T]{ch: make(chan T, capacity)}
}

// TryPublish attempts a non-blocking send. On a full queue it drops the
// single oldest buffered item and retries once, so the queue always admits
// the newest arrival at the cost of the oldest one (drop-oldest policy).
// Returns false when the drop-and-retry itself lost a race and the publish
// still could not be admitted (vanishingly rare, but possible under
// concurrent producers); the caller should treat that as a dropped publish.
func (b *Bounded[T]) TryPublish(item T) bool {
	select {
	case b.ch <- item:
		return true
	default:
	}

	select {
	case <-b.ch:
		atomic.AddInt64(&b.dropped, 1)
	default:
	}

	select {
	case b.ch <- item:
		return true
	default:
		atomic.AddInt64(&b.dropped, 1)
		return false
	}
}

// Chan exposes the receive side for a consumer's select loop.
func (b *Bounded[T]) Chan() <-chan T {
	return b.ch
}

// Dropped returns the cumulative number of items discarded by the
// drop-oldest policy.
func (b *Bounded[T]) Dropped() int64 {
	return atomic.LoadInt64(&b.dropped)
}

// Len returns the number of items currently buffered (best-effort, racy by
// nature of channels — useful for metrics, not for correctness decisions).
func (b *Bounded[T]) Len() int {
	return len(b.ch)
}

// Cap returns the queue's fixed capacity.
func (b *Bounded[T]) Cap() int {
	return cap(b.ch)
}
