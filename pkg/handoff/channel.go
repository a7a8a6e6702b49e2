// Package handoff provides a bounded single-producer single-consumer queue
// that moves ownership of values between pipeline stages. The producer side
// never blocks beyond an explicit bounded wait, so a slow consumer can never
// stall the stages feeding the queue.
package handoff

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Channel errors
var (
	ErrFull   = errors.New("handoff: channel is full")
	ErrClosed = errors.New("handoff: channel is closed")
)

// Channel is a bounded FIFO queue of capacity fixed at construction.
// TrySend never blocks; Receive suspends the consumer until an item arrives,
// the context is cancelled, or the channel is closed. After Close, queued
// items drain in order before Receive reports ErrClosed.
type Channel[T any] struct {
	ch     chan T
	mu     sync.RWMutex
	closed bool
}

// New creates a channel with the given capacity. Capacity must be at least 1.
func New[T any](capacity int) *Channel[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Channel[T]{ch: make(chan T, capacity)}
}

// TrySend enqueues v without blocking. It reports ErrFull at capacity and
// ErrClosed after Close.
func (c *Channel[T]) TrySend(v T) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClosed
	}
	select {
	case c.ch <- v:
		return nil
	default:
		return ErrFull
	}
}

// SendTimeout enqueues v, waiting at most d for space. It reports ErrFull on
// timeout and ErrClosed after Close.
func (c *Channel[T]) SendTimeout(v T, d time.Duration) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClosed
	}

	select {
	case c.ch <- v:
		return nil
	default:
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case c.ch <- v:
		return nil
	case <-timer.C:
		return ErrFull
	}
}

// Receive dequeues the next item, suspending until one is available. It
// reports ErrClosed once the channel is closed and drained, and the context
// error if ctx ends first.
func (c *Channel[T]) Receive(ctx context.Context) (T, error) {
	var zero T
	select {
	case v, ok := <-c.ch:
		if !ok {
			return zero, ErrClosed
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close marks the channel terminal. Pending Receive calls drain any queued
// items and then observe ErrClosed instead of blocking forever. Close is
// idempotent.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// Len returns the number of queued items.
func (c *Channel[T]) Len() int {
	return len(c.ch)
}

// Cap returns the channel capacity.
func (c *Channel[T]) Cap() int {
	return cap(c.ch)
}
