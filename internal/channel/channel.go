// Package channel provides the bounded drop-oldest feed used to hand
// snapshots to consumers without ever blocking the producer.
package channel

import "sync"

// Feed is a generic bounded channel that discards the oldest value when
// full. Producers call Offer and never block; slow consumers simply see
// fewer, more recent values.
type Feed[T any] struct {
	mu      sync.Mutex
	ch      chan T
	dropped uint64
	closed  bool
}

// NewFeed creates a feed holding up to size values. Sizes below 1 are
// raised to 1.
func NewFeed[T any](size int) *Feed[T] {
	if size < 1 {
		size = 1
	}
	return &Feed[T]{ch: make(chan T, size)}
}

// Offer delivers v, evicting the oldest buffered value if needed. After
// Close it counts the value as dropped instead.
func (f *Feed[T]) Offer(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		f.dropped++
		return
	}
	for {
		select {
		case f.ch <- v:
			return
		default:
			select {
			case <-f.ch:
				f.dropped++
			default:
			}
		}
	}
}

// Receive returns the consumer side of the feed.
func (f *Feed[T]) Receive() <-chan T {
	return f.ch
}

// Len returns the number of buffered values.
func (f *Feed[T]) Len() int {
	return len(f.ch)
}

// Dropped returns how many values were discarded so far.
func (f *Feed[T]) Dropped() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Close closes the consumer channel. Safe to call once; later Offers are
// counted as drops.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
}
