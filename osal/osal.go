// Package osal abstracts the scheduling primitives the bus engines need from
// the surrounding runtime: a notifier usable from interrupt context, a waiter
// the calling goroutine blocks on, and coarse timing helpers.
package osal

import (
	"runtime"
	"time"
)

// Notifier wakes the paired Waiter. Notify must never block.
type Notifier interface {
	Notify()
}

// Waiter blocks until notified or until d elapses. It reports whether a
// notification was consumed. Notifications are coalesced and spurious wakeups
// are allowed, so callers always re-check their condition.
type Waiter interface {
	Wait(d time.Duration) bool
}

// OS is the runtime backend an engine is built on.
type OS interface {
	Yield()
	Sleep(d time.Duration)
	NotifierPair() (Notifier, Waiter)
}

// WaitWith re-evaluates pred every time w wakes up, waiting at most poll
// between evaluations. It returns the first value pred accepts, or false once
// timeout has elapsed.
func WaitWith[T any](w Waiter, timeout, poll time.Duration, pred func() (T, bool)) (T, bool) {
	t := StartTimeout(timeout)
	for {
		if v, ok := pred(); ok {
			return v, true
		}
		left := t.Left()
		if left <= 0 {
			var zero T
			return zero, false
		}
		if poll > 0 && poll < left {
			left = poll
		}
		w.Wait(left)
	}
}

// Timeout measures a deadline relative to the last (re)start.
type Timeout struct {
	start time.Time
	d     time.Duration
}

func StartTimeout(d time.Duration) Timeout {
	return Timeout{start: time.Now(), d: d}
}

func (t Timeout) Expired() bool {
	return time.Since(t.start) >= t.d
}

func (t Timeout) Left() time.Duration {
	return t.d - time.Since(t.start)
}

func (t *Timeout) Restart() {
	t.start = time.Now()
}

// Std is the default hosted backend: the waiter parks on a channel.
type Std struct{}

var _ OS = Std{}

func (Std) Yield() { runtime.Gosched() }

func (Std) Sleep(d time.Duration) { time.Sleep(d) }

func (Std) NotifierPair() (Notifier, Waiter) {
	n := NewChanNotifier()
	return n, n
}

// Spin busy-polls instead of parking, matching bare-metal targets without a
// scheduler that can wake a sleeping thread from an interrupt.
type Spin struct{}

var _ OS = Spin{}

func (Spin) Yield() { runtime.Gosched() }

func (Spin) Sleep(d time.Duration) {
	t := StartTimeout(d)
	for !t.Expired() {
		runtime.Gosched()
	}
}

func (Spin) NotifierPair() (Notifier, Waiter) {
	n := &SpinNotifier{}
	return n, n
}
