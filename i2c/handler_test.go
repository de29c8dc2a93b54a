package i2c

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mklimuk/f1hal"
)

// quietPeriph is a hand-written Periph whose methods never allocate, so the
// handler's own allocations can be measured.
type quietPeriph struct {
	sent     int
	received int
	rxReady  bool
}

func (p *quietPeriph) Steal() Periph         { return p }
func (p *quietPeriph) DisableAllInterrupts() {}
func (p *quietPeriph) DisableDataInterrupt() {}
func (p *quietPeriph) SendStart()            {}
func (p *quietPeriph) SendStop()             {}
func (p *quietPeriph) IsStopped() bool       { return true }

func (p *quietPeriph) PrepareWrite(f1hal.Address, *uint8) Progress { return Pending }

func (p *quietPeriph) PrepareRead(f1hal.Address, int, bool, *uint8) Progress { return Pending }

// WriteWith shifts out one byte per interrupt.
func (p *quietPeriph) WriteWith(next func() (byte, bool)) Progress {
	if _, ok := next(); !ok {
		return Done
	}
	p.sent++
	return Pending
}

// Receive delivers one byte per interrupt.
func (p *quietPeriph) Receive(int, bool) (byte, bool) {
	if !p.rxReady {
		return 0, false
	}
	p.rxReady = false
	p.received++
	return 0x5A, true
}

func (p *quietPeriph) GetAndCleanError() (Error, bool) { return Error{}, false }
func (p *quietPeriph) GetFlag(Flag) bool               { return false }
func (p *quietPeriph) HandleError(Error)               {}
func (p *quietPeriph) SoftReset()                      {}

func TestHandlerDoesNotAllocate(t *testing.T) {
	t.Run("write step", func(t *testing.T) {
		p := &quietPeriph{}
		b, h, _ := New(p)
		b.s.work.Store(WorkData)
		h.step = stepWrite
		buf := []byte{1, 2, 3, 4}
		run := func() {
			h.wbuf = buf
			h.Handle()
		}
		allocs := testing.AllocsPerRun(1000, run)
		assert.Zero(t, allocs)
		assert.Greater(t, p.sent, 1000)
		assert.Equal(t, stepWrite, h.step)
	})
	t.Run("read step", func(t *testing.T) {
		p := &quietPeriph{}
		b, h, _ := New(p)
		b.s.work.Store(WorkData)
		h.step = stepRead
		buf := make([]byte, 4)
		run := func() {
			h.rbuf = buf
			h.readLeft = len(buf)
			p.rxReady = true
			h.Handle()
		}
		allocs := testing.AllocsPerRun(1000, run)
		assert.Zero(t, allocs)
		assert.Greater(t, p.received, 1000)
		assert.Equal(t, byte(0x5A), buf[0])
		assert.Equal(t, stepRead, h.step)
	})
}
