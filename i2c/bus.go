package i2c

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/f1hal"
	"github.com/mklimuk/f1hal/osal"
	"github.com/mklimuk/f1hal/ringbuf"
)

// shared is the state owned jointly by the issuer and the interrupt handlers.
type shared struct {
	ring     *ringbuf.Ring[Command]
	work     workCell
	err      errorCell
	notifier osal.Notifier
}

// Bus issues transactions from thread context. It is not safe for concurrent
// use; wrap it in a SharedBus when several goroutines share one peripheral.
type Bus struct {
	p      Periph
	s      *shared
	waiter osal.Waiter
	opts   Options
	log    *slog.Logger

	mu         sync.Mutex // guards bytePeriod against SetSpeed
	bytePeriod time.Duration
}

// New builds a bus engine on p and returns the issuer together with the two
// handlers that must be bound to the peripheral's event and error interrupts.
func New(p Periph, opts ...Option) (*Bus, *InterruptHandler, *ErrorInterruptHandler) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.MaxOperation < 1 {
		o.MaxOperation = 1
	}
	if o.Speed <= 0 {
		o.Speed = DefaultSpeed
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier, waiter := o.OS.NotifierPair()
	s := &shared{
		ring:     ringbuf.New[Command](o.MaxOperation + ringHeadroom),
		notifier: notifier,
	}
	s.work.Store(WorkStop)
	b := &Bus{
		p:          p,
		s:          s,
		waiter:     waiter,
		opts:       o,
		log:        logger.With("component", "i2c"),
		bytePeriod: o.Speed.Period() * bitsPerByte,
	}
	irq := p.Steal()
	h := &InterruptHandler{p: irq, s: s, step: stepEnd}
	h.next = h.nextByte
	return b, h, &ErrorInterruptHandler{p: irq, s: s}
}

// SetSpeed changes the bus clock used for timeouts and, when the peripheral
// supports it, reprograms the hardware timing.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	if f <= 0 {
		return fmt.Errorf("invalid bus speed %s", f)
	}
	if sp, ok := b.p.(interface{ SetSpeed(physic.Frequency) error }); ok {
		err := sp.SetSpeed(f)
		if err != nil {
			return fmt.Errorf("could not set peripheral speed: %w", err)
		}
	}
	b.mu.Lock()
	b.opts.Speed = f
	b.bytePeriod = f.Period() * bitsPerByte
	b.mu.Unlock()
	return nil
}

func (b *Bus) Speed() physic.Frequency {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opts.Speed
}

// Timeout returns the wait budget for a transaction carrying n payload bytes.
func (b *Bus) Timeout(n int) time.Duration {
	b.mu.Lock()
	d := time.Duration(n+2) * b.bytePeriod
	b.mu.Unlock()
	if d < b.opts.MinTimeout {
		d = b.opts.MinTimeout
	}
	return d
}

// State reports the shared work state and the number of queued commands.
func (b *Bus) State() (Work, int) {
	return b.s.work.Load(), b.s.ring.Len()
}

func (b *Bus) String() string {
	return fmt.Sprintf("i2c@%s", b.Speed())
}

// Transaction runs ops against addr as one bus transaction and blocks until
// the interrupt handler finishes it or the timeout derived from the payload
// size elapses. On return the peripheral is stopped with its interrupts
// disabled, whatever the outcome.
func (b *Bus) Transaction(addr f1hal.Address, ops ...f1hal.Operation) error {
	err := b.transaction(addr, ops)
	b.p.DisableAllInterrupts()
	b.s.work.Store(WorkStop)
	if !b.p.IsStopped() {
		b.p.SendStop()
	}
	b.s.ring.Drain()
	b.s.err.Clear()
	if err != nil {
		// Buffer errors are raised before the hardware is touched.
		if e, ok := err.(Error); ok && e.Kind != KindBuffer {
			b.p.HandleError(e)
		}
		b.log.Debug("transaction failed", "addr", addr, "error", err)
	}
	return err
}

func (b *Bus) transaction(addr f1hal.Address, ops []f1hal.Operation) error {
	if !b.checkStopped() {
		return ErrBusy
	}
	b.p.DisableAllInterrupts()
	if n := b.s.ring.Drain(); n > 0 {
		b.log.Debug("dropped stale commands", "count", n)
	}
	total, err := b.enqueue(addr, ops)
	if err != nil {
		return err
	}
	b.s.err.Clear()
	b.s.work.Store(WorkStart)
	b.p.SendStart()

	res, ok := osal.WaitWith(b.waiter, b.Timeout(total), b.opts.Poll, b.outcome)
	if !ok {
		return ErrTimeout
	}
	return res
}

// outcome is polled by the issuer after every wakeup.
func (b *Bus) outcome() (error, bool) {
	if e, ok := b.s.err.Load(); ok {
		if e.Kind == KindNoAcknowledge && e.Nack == NackUnknown {
			switch b.s.work.Load() {
			case WorkAddr:
				e.Nack = NackAddress
			case WorkData:
				e.Nack = NackData
			}
		}
		return e, true
	}
	switch b.s.work.Load() {
	case WorkSuccess:
		return nil, true
	case WorkStop:
		return ErrOther, true
	}
	return nil, false
}

// checkStopped waits for the bus to go idle, applying the configured
// recovery once if it does not.
func (b *Bus) checkStopped() bool {
	if b.waitStopped() {
		return true
	}
	switch b.opts.Recovery {
	case RecoverStop:
		b.p.SendStop()
	case RecoverSoftReset:
		b.p.SoftReset()
	case RecoverHandleError:
		b.p.HandleError(ErrBusy)
	default:
		return false
	}
	b.log.Debug("bus busy, recovery applied", "recovery", b.opts.Recovery)
	return b.waitStopped()
}

func (b *Bus) waitStopped() bool {
	t := osal.StartTimeout(b.opts.BusyWait)
	for {
		if b.p.IsStopped() {
			return true
		}
		if t.Expired() {
			return false
		}
		b.opts.OS.Yield()
	}
}

// enqueue serialises ops into the ring and returns the payload byte count.
// Empty writes are skipped so that adjacent groups of the same direction
// merge; an empty read is rejected. A list with no payload becomes an
// address-only probe.
func (b *Bus) enqueue(addr f1hal.Address, ops []f1hal.Operation) (int, error) {
	r := b.s.ring
	cmd := Command{Kind: CmdSlaveAddr, Addr: addr.Value}
	if addr.TenBit {
		cmd.Kind = CmdSlaveAddr10
	}
	if err := r.Push(cmd); err != nil {
		return 0, ErrBuffer
	}
	segs := make([]f1hal.Operation, 0, len(ops))
	for _, op := range ops {
		if op.Read && len(op.Buf) == 0 {
			return 0, ErrBuffer
		}
		if len(op.Buf) > 0 {
			segs = append(segs, op)
		}
	}
	if len(segs) == 0 {
		if err := r.Push(Command{Kind: CmdWriteEnd}); err != nil {
			return 0, ErrBuffer
		}
		return 0, nil
	}
	total := 0
	for i := 0; i < len(segs); {
		j := i
		n := 0
		for j < len(segs) && segs[j].Read == segs[i].Read {
			n += len(segs[j].Buf)
			j++
		}
		if segs[i].Read {
			if err := r.Push(Command{Kind: CmdRead, Len: n, Last: j == len(segs)}); err != nil {
				return 0, ErrBuffer
			}
			for _, s := range segs[i:j] {
				if err := r.Push(Command{Kind: CmdReadBuf, Buf: s.Buf}); err != nil {
					return 0, ErrBuffer
				}
			}
		} else {
			for _, s := range segs[i:j] {
				if err := r.Push(Command{Kind: CmdWrite, Buf: s.Buf}); err != nil {
					return 0, ErrBuffer
				}
			}
			if err := r.Push(Command{Kind: CmdWriteEnd}); err != nil {
				return 0, ErrBuffer
			}
		}
		total += n
		i = j
	}
	return total, nil
}
