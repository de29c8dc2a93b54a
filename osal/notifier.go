package osal

import (
	"runtime"
	"sync/atomic"
	"time"
)

// ChanNotifier coalesces notifications into a one-slot channel.
type ChanNotifier struct {
	ch chan struct{}
}

func NewChanNotifier() *ChanNotifier {
	return &ChanNotifier{ch: make(chan struct{}, 1)}
}

func (n *ChanNotifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

func (n *ChanNotifier) Wait(d time.Duration) bool {
	select {
	case <-n.ch:
		return true
	default:
	}
	if d <= 0 {
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-n.ch:
		return true
	case <-timer.C:
		return false
	}
}

// SpinNotifier is a single atomic flag; Wait yields until it can take it.
type SpinNotifier struct {
	flag atomic.Bool
}

func (n *SpinNotifier) Notify() {
	n.flag.Store(true)
}

func (n *SpinNotifier) Wait(d time.Duration) bool {
	t := StartTimeout(d)
	for {
		if n.flag.CompareAndSwap(true, false) {
			return true
		}
		if t.Expired() {
			return false
		}
		runtime.Gosched()
	}
}
