// Package ringbuf provides a fixed-capacity single-producer/single-consumer
// queue that needs no locks and does not allocate after construction.
//
// Exactly one goroutine (or execution context) may call Push and exactly one
// may call Pop/Peek. Indices are free-running uint32 values; the distance
// between them never exceeds the capacity.
package ringbuf

import (
	"errors"
	"sync/atomic"
)

var ErrFull = errors.New("ring buffer full")

type Ring[T any] struct {
	buf []T
	rd  atomic.Uint32 // consumer index
	wr  atomic.Uint32 // producer index
}

// New returns a ring holding up to capacity elements.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		panic("ringbuf: capacity must be positive")
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

func (r *Ring[T]) Cap() int { return len(r.buf) }

// Len returns the number of queued elements.
func (r *Ring[T]) Len() int {
	return int(r.wr.Load() - r.rd.Load())
}

func (r *Ring[T]) IsEmpty() bool { return r.Len() == 0 }

// Push appends v. It fails with ErrFull instead of overwriting.
func (r *Ring[T]) Push(v T) error {
	wr := r.wr.Load()
	if int(wr-r.rd.Load()) >= len(r.buf) {
		return ErrFull
	}
	r.buf[wr%uint32(len(r.buf))] = v
	r.wr.Store(wr + 1) // release to consumer
	return nil
}

// Pop removes and returns the oldest element.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	rd := r.rd.Load()
	if rd == r.wr.Load() {
		return zero, false
	}
	idx := rd % uint32(len(r.buf))
	v := r.buf[idx]
	r.buf[idx] = zero
	r.rd.Store(rd + 1) // release slot to producer
	return v, true
}

// Peek returns the oldest element without removing it.
func (r *Ring[T]) Peek() (T, bool) {
	var zero T
	rd := r.rd.Load()
	if rd == r.wr.Load() {
		return zero, false
	}
	return r.buf[rd%uint32(len(r.buf))], true
}

// Drain discards every queued element and returns how many were dropped.
// It must only be called from the consumer side, or while the consumer is
// known to be inactive.
func (r *Ring[T]) Drain() int {
	n := 0
	for {
		if _, ok := r.Pop(); !ok {
			return n
		}
		n++
	}
}
