package i2c

import "github.com/mklimuk/f1hal"

// InterruptHandler advances a transaction from the peripheral event
// interrupt. Handle must be bound to exactly one interrupt vector and never
// be called concurrently with itself. It does not allocate or block.
type InterruptHandler struct {
	p Periph
	s *shared
	// next is nextByte, bound once in New.
	next func() (byte, bool)

	step    step
	subStep uint8
	addr    f1hal.Address

	wbuf     []byte
	wEnded   bool
	rbuf     []byte
	readLeft int
	readLast bool
}

func (h *InterruptHandler) Handle() {
	if h.s.work.Load() == WorkStart {
		if !h.prepareCmd() {
			h.finish(false)
			h.s.notifier.Notify()
			return
		}
	}
	h.run()
	if h.step >= stepRead {
		h.s.notifier.Notify()
	}
}

// run loops until the peripheral would block or the transaction ends.
func (h *InterruptHandler) run() {
	for {
		switch h.step {
		case stepPrepareWrite:
			switch h.p.PrepareWrite(h.addr, &h.subStep) {
			case Done:
				h.stepTo(stepWrite)
			case Pending:
				return
			}
		case stepWrite:
			switch h.p.WriteWith(h.next) {
			case Done:
				h.endWrite()
				return
			case Pending:
				return
			}
		case stepPrepareRead:
			switch h.p.PrepareRead(h.addr, h.readLeft, h.readLast, &h.subStep) {
			case Done:
				h.stepTo(stepRead)
			case Pending:
				return
			}
		case stepRead:
			b, ok := h.p.Receive(h.readLeft, h.readLast)
			if !ok {
				return
			}
			if !h.store(b) {
				h.finish(false)
				return
			}
			if h.readLeft == 0 {
				h.endRead()
				return
			}
		default:
			if w := h.s.work.Load(); w != WorkSuccess && w != WorkStop {
				h.finish(false)
			}
			return
		}
	}
}

// prepareCmd picks up a freshly queued transaction.
func (h *InterruptHandler) prepareCmd() bool {
	h.reset()
	cmd, ok := h.s.ring.Pop()
	if !ok {
		return false
	}
	switch cmd.Kind {
	case CmdSlaveAddr:
		h.addr = f1hal.SevenBit(uint8(cmd.Addr))
	case CmdSlaveAddr10:
		h.addr = f1hal.TenBit(cmd.Addr)
	default:
		return false
	}
	next, ok := h.s.ring.Pop()
	if !ok {
		return false
	}
	switch next.Kind {
	case CmdWrite, CmdWriteEnd:
		h.beginWrite(next)
		h.stepTo(stepPrepareWrite)
	case CmdRead:
		if !h.beginRead(next) {
			return false
		}
		h.stepTo(stepPrepareRead)
	default:
		return false
	}
	return true
}

func (h *InterruptHandler) beginWrite(cmd Command) {
	h.wbuf = cmd.Buf
	h.wEnded = cmd.Kind == CmdWriteEnd
}

func (h *InterruptHandler) beginRead(cmd Command) bool {
	h.readLeft = cmd.Len
	h.readLast = cmd.Last
	buf, ok := h.s.ring.Pop()
	if !ok || buf.Kind != CmdReadBuf || cmd.Len <= 0 {
		return false
	}
	h.rbuf = buf.Buf
	return true
}

// nextByte feeds the peripheral, moving on to the next queued Write segment
// when the current one is exhausted. It reports false at WriteEnd.
func (h *InterruptHandler) nextByte() (byte, bool) {
	for len(h.wbuf) == 0 {
		if h.wEnded {
			return 0, false
		}
		cmd, ok := h.s.ring.Pop()
		if !ok {
			h.wEnded = true
			return 0, false
		}
		h.beginWrite(cmd)
	}
	b := h.wbuf[0]
	h.wbuf = h.wbuf[1:]
	return b, true
}

func (h *InterruptHandler) endWrite() {
	cmd, ok := h.s.ring.Pop()
	if ok && cmd.Kind == CmdRead {
		if !h.beginRead(cmd) {
			h.finish(false)
			return
		}
		h.stepTo(stepPrepareRead)
		h.p.DisableDataInterrupt()
		h.p.SendStart()
		return
	}
	h.p.SendStop()
	h.stepTo(stepEnd)
}

// store places b in the current destination segment.
func (h *InterruptHandler) store(b byte) bool {
	for len(h.rbuf) == 0 {
		cmd, ok := h.s.ring.Pop()
		if !ok || cmd.Kind != CmdReadBuf {
			return false
		}
		h.rbuf = cmd.Buf
	}
	h.rbuf[0] = b
	h.rbuf = h.rbuf[1:]
	h.readLeft--
	return true
}

// endRead runs after the last byte of a read group. The peripheral has
// already requested STOP or repeated START while receiving it.
func (h *InterruptHandler) endRead() {
	h.p.DisableDataInterrupt()
	cmd, ok := h.s.ring.Pop()
	if ok && (cmd.Kind == CmdWrite || cmd.Kind == CmdWriteEnd) {
		h.beginWrite(cmd)
		h.stepTo(stepPrepareWrite)
		return
	}
	h.stepTo(stepEnd)
}

func (h *InterruptHandler) stepTo(s step) {
	h.step = s
	switch s {
	case stepPrepareWrite, stepPrepareRead:
		h.subStep = 0
		h.s.work.Store(WorkAddr)
	case stepWrite, stepRead:
		h.s.work.Store(WorkData)
	case stepEnd:
		h.finish(true)
	}
}

func (h *InterruptHandler) finish(ok bool) {
	h.p.DisableAllInterrupts()
	h.step = stepEnd
	h.wbuf, h.rbuf = nil, nil
	if ok {
		h.s.work.Store(WorkSuccess)
	} else {
		h.s.work.Store(WorkStop)
	}
}

func (h *InterruptHandler) reset() {
	h.step = stepEnd
	h.subStep = 0
	h.wbuf, h.rbuf = nil, nil
	h.wEnded = false
	h.readLeft = 0
	h.readLast = false
}

// ErrorInterruptHandler records hardware error flags from the peripheral
// error interrupt and wakes the issuer.
type ErrorInterruptHandler struct {
	p Periph
	s *shared
}

func (h *ErrorInterruptHandler) Handle() {
	e, ok := h.p.GetAndCleanError()
	if !ok {
		return
	}
	h.s.err.Set(e)
	h.p.DisableAllInterrupts()
	h.s.notifier.Notify()
}
