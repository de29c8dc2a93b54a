// Package sim simulates an STM32F1 I2C block at register level together with
// the slaves on its bus, and dispatches its event and error interrupts to
// bound handlers the way the NVIC does on a single core.
package sim

import (
	"context"
	"runtime"
	"sync"

	"github.com/mklimuk/f1hal"
	"github.com/mklimuk/f1hal/i2c"
	"github.com/mklimuk/f1hal/stm32"
)

type phase uint8

const (
	phaseIdle phase = iota
	phaseStarted
	phaseAddr10
	phaseAddressed
	phaseTransmit
	phaseReceive
	phaseNacked
)

// Faults injects bus misbehaviour.
type Faults struct {
	// NackAddress makes every slave refuse its address.
	NackAddress bool `yaml:"nack_address"`
	// NackDataAt refuses the n-th data byte written in a transaction (1-based).
	NackDataAt int `yaml:"nack_data_at"`
	// ArbitrationLoss loses arbitration on every START.
	ArbitrationLoss bool `yaml:"arbitration_loss"`
	// StuckBusy keeps BUSY set until that many STOPs or soft resets were
	// applied; negative means forever.
	StuckBusy int `yaml:"stuck_busy"`
	// Frozen never generates a requested START.
	Frozen bool `yaml:"frozen"`
	// OverrunAt raises OVR while receiving the n-th byte (1-based).
	OverrunAt int `yaml:"overrun_at"`
}

// Stats counts bus conditions generated by the simulated peripheral.
type Stats struct {
	Starts     int
	Stops      int
	SoftResets int
	Nacks      int
}

// Controller is the simulated peripheral. Register access goes through
// Thread (calling goroutine) or the view returned by its Steal (handlers).
type Controller struct {
	core sync.Mutex // held while a handler runs or a thread access is in progress
	mx   sync.Mutex

	cr1, cr2, oar1, oar2, ccr, trise, dr uint32
	sr1                                  uint32
	busy, msl, tra                       bool
	sr1Read                              bool

	phase      phase
	read       bool
	rxMore     bool
	rxFinal    bool
	header     byte
	slaves     []Slave
	active     Slave
	tenBitPeer Slave
	faults     Faults
	stuck      int
	txCount    int
	rxCount    int
	stats      Stats

	evt, err func()
	kick     chan struct{}
}

func NewController() *Controller {
	return &Controller{kick: make(chan struct{}, 1)}
}

// Attach connects a slave to the bus.
func (c *Controller) Attach(s Slave) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.slaves = append(c.slaves, s)
}

func (c *Controller) SetFaults(f Faults) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.faults = f
	c.stuck = f.StuckBusy
	if c.phase == phaseIdle {
		c.busy = c.stuck != 0
	}
}

func (c *Controller) Stats() Stats {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.stats
}

// Bind installs the event and error interrupt handlers.
func (c *Controller) Bind(evt, err func()) {
	c.core.Lock()
	defer c.core.Unlock()
	c.evt, c.err = evt, err
}

// Thread returns the register view for the calling goroutine. Every access
// excludes handler execution, like code running on the single core.
func (c *Controller) Thread() stm32.Registers {
	return threadView{c}
}

type threadView struct{ c *Controller }

func (v threadView) Load(r stm32.Reg) uint32 {
	v.c.core.Lock()
	defer v.c.core.Unlock()
	return v.c.load(r)
}

func (v threadView) Store(r stm32.Reg, val uint32) {
	v.c.core.Lock()
	defer v.c.core.Unlock()
	v.c.store(r, val)
}

func (v threadView) Steal() stm32.Registers {
	return irqView{v.c}
}

type irqView struct{ c *Controller }

func (v irqView) Load(r stm32.Reg) uint32       { return v.c.load(r) }
func (v irqView) Store(r stm32.Reg, val uint32) { v.c.store(r, val) }

// Run dispatches interrupts until ctx is done. The error interrupt takes
// precedence; handlers never overlap.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.kick:
		}
		for c.dispatch() {
			runtime.Gosched()
		}
	}
}

func (c *Controller) dispatch() bool {
	c.core.Lock()
	defer c.core.Unlock()
	c.mx.Lock()
	irqErr, irqEvt := c.pending()
	c.mx.Unlock()
	switch {
	case irqErr && c.err != nil:
		c.err()
	case irqEvt && c.evt != nil:
		c.evt()
	default:
		return false
	}
	return true
}

func (c *Controller) pending() (errIRQ, evtIRQ bool) {
	if c.cr2&stm32.CR2_ITERREN != 0 && c.sr1&stm32.SR1_Errors != 0 {
		errIRQ = true
	}
	if c.cr2&stm32.CR2_ITEVTEN != 0 {
		if c.sr1&(stm32.SR1_SB|stm32.SR1_ADDR|stm32.SR1_ADD10|stm32.SR1_STOPF|stm32.SR1_BTF) != 0 {
			evtIRQ = true
		}
		if c.cr2&stm32.CR2_ITBUFEN != 0 && c.sr1&(stm32.SR1_TXE|stm32.SR1_RXNE) != 0 {
			evtIRQ = true
		}
	}
	return errIRQ, evtIRQ
}

func (c *Controller) notify() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

func (c *Controller) load(r stm32.Reg) uint32 {
	c.mx.Lock()
	defer c.notify()
	defer c.mx.Unlock()
	var v uint32
	switch r {
	case stm32.CR1:
		v = c.cr1
	case stm32.CR2:
		v = c.cr2
	case stm32.OAR1:
		v = c.oar1
	case stm32.OAR2:
		v = c.oar2
	case stm32.CCR:
		v = c.ccr
	case stm32.TRISE:
		v = c.trise
	case stm32.SR1:
		c.sr1Read = true
		v = c.sr1
	case stm32.SR2:
		if c.msl {
			v |= stm32.SR2_MSL
		}
		if c.busy {
			v |= stm32.SR2_BUSY
		}
		if c.tra {
			v |= stm32.SR2_TRA
		}
		if c.sr1Read && c.sr1&stm32.SR1_ADDR != 0 {
			c.sr1 &^= stm32.SR1_ADDR
			c.addrCleared()
		}
		c.sr1Read = false
	case stm32.DR:
		v = c.dr
		if c.sr1Read {
			c.sr1 &^= stm32.SR1_BTF
		}
		c.sr1 &^= stm32.SR1_RXNE
	}
	c.advance()
	return v
}

func (c *Controller) store(r stm32.Reg, v uint32) {
	c.mx.Lock()
	defer c.notify()
	defer c.mx.Unlock()
	switch r {
	case stm32.CR1:
		old := c.cr1
		c.cr1 = v & 0xFFFF
		switch {
		case v&stm32.CR1_SWRST != 0:
			if old&stm32.CR1_SWRST == 0 {
				c.cr1 = stm32.CR1_SWRST
				c.softReset()
			}
			return
		case v&stm32.CR1_PE == 0 && old&stm32.CR1_PE != 0:
			c.disable()
		}
	case stm32.CR2:
		c.cr2 = v & 0xFFFF
	case stm32.OAR1:
		c.oar1 = v
	case stm32.OAR2:
		c.oar2 = v
	case stm32.CCR:
		c.ccr = v & 0xFFFF
	case stm32.TRISE:
		c.trise = v & 0x3F
	case stm32.SR1:
		c.sr1 &= v | ^uint32(stm32.SR1_Errors)
	case stm32.DR:
		c.dr = v & 0xFF
		c.writeDR(byte(v))
	}
	c.advance()
}

func (c *Controller) writeDR(b byte) {
	read := c.sr1Read
	c.sr1Read = false
	switch c.phase {
	case phaseStarted:
		if c.sr1&stm32.SR1_SB == 0 || !read {
			return
		}
		c.sr1 &^= stm32.SR1_SB
		c.addressHeader(b)
	case phaseAddr10:
		if c.sr1&stm32.SR1_ADD10 == 0 {
			return
		}
		c.sr1 &^= stm32.SR1_ADD10
		s := c.find(f1hal.TenBit(uint16(c.header&0x06)<<7 | uint16(b)))
		if s == nil || c.faults.NackAddress {
			c.nack()
			return
		}
		c.tenBitPeer = s
		c.selectSlave(s, false)
	case phaseTransmit:
		c.sr1 &^= stm32.SR1_TXE | stm32.SR1_BTF
		c.txCount++
		if c.faults.NackDataAt > 0 && c.txCount == c.faults.NackDataAt {
			c.nack()
			return
		}
		if !c.active.Write(b) {
			c.nack()
			return
		}
		c.sr1 |= stm32.SR1_TXE | stm32.SR1_BTF
	}
}

func (c *Controller) addressHeader(h byte) {
	if h&0xF8 == 0xF0 {
		if h&0x01 == 0 {
			if !c.anyTenBit(h) || c.faults.NackAddress {
				c.nack()
				return
			}
			c.header = h
			c.sr1 |= stm32.SR1_ADD10
			c.phase = phaseAddr10
			return
		}
		// read header after a repeated START addresses the last 10-bit peer
		if c.tenBitPeer == nil || i2c.HeaderByte(c.tenBitPeer.Address(), true) != h || c.faults.NackAddress {
			c.nack()
			return
		}
		c.selectSlave(c.tenBitPeer, true)
		return
	}
	s := c.find(f1hal.SevenBit(h >> 1))
	if s == nil || c.faults.NackAddress {
		c.nack()
		return
	}
	c.selectSlave(s, h&0x01 != 0)
}

func (c *Controller) find(addr f1hal.Address) Slave {
	for _, s := range c.slaves {
		if s.Address() == addr {
			return s
		}
	}
	return nil
}

func (c *Controller) anyTenBit(h byte) bool {
	for _, s := range c.slaves {
		if a := s.Address(); a.TenBit && i2c.HeaderByte(a, false) == h {
			return true
		}
	}
	return false
}

func (c *Controller) selectSlave(s Slave, read bool) {
	c.active = s
	c.read = read
	c.tra = !read
	s.Start(read)
	c.sr1 |= stm32.SR1_ADDR
	c.phase = phaseAddressed
}

func (c *Controller) addrCleared() {
	if c.phase != phaseAddressed {
		return
	}
	if c.read {
		c.phase = phaseReceive
		c.rxMore = true
		c.rxFinal = false
		return
	}
	c.phase = phaseTransmit
	c.sr1 |= stm32.SR1_TXE
}

func (c *Controller) nack() {
	c.sr1 |= stm32.SR1_AF
	c.sr1 &^= stm32.SR1_TXE | stm32.SR1_BTF
	c.phase = phaseNacked
	c.stats.Nacks++
}

// advance lets the bus make every progress the current register state allows.
func (c *Controller) advance() {
	if c.cr1&stm32.CR1_PE == 0 || c.cr1&stm32.CR1_SWRST != 0 {
		return
	}
	for {
		changed := false
		if c.phase == phaseReceive && c.rxMore && c.sr1&stm32.SR1_RXNE == 0 {
			c.rxCount++
			if c.faults.OverrunAt > 0 && c.rxCount == c.faults.OverrunAt {
				// the byte is lost and the slave stalls
				c.sr1 |= stm32.SR1_OVR
				c.rxMore = false
				c.rxFinal = true
				changed = true
				continue
			}
			c.dr = uint32(c.active.Read())
			c.sr1 |= stm32.SR1_RXNE
			if c.cr1&stm32.CR1_ACK == 0 {
				c.rxMore = false
				c.rxFinal = true
			}
			changed = true
		}
		between := c.phase != phaseReceive || c.rxFinal
		switch {
		case c.cr1&stm32.CR1_STOP != 0 && between:
			c.generateStop()
			changed = true
		case c.cr1&stm32.CR1_START != 0 && between && !c.faults.Frozen:
			c.generateStart()
			changed = true
		}
		if !changed {
			return
		}
	}
}

func (c *Controller) generateStart() {
	c.cr1 &^= stm32.CR1_START
	if c.faults.ArbitrationLoss {
		c.sr1 |= stm32.SR1_ARLO
		c.release()
		return
	}
	if c.phase == phaseIdle {
		c.txCount, c.rxCount = 0, 0
	}
	c.sr1 |= stm32.SR1_SB
	c.sr1 &^= stm32.SR1_BTF | stm32.SR1_TXE | stm32.SR1_ADDR | stm32.SR1_ADD10
	c.msl = true
	c.busy = true
	c.phase = phaseStarted
	c.stats.Starts++
}

func (c *Controller) generateStop() {
	c.cr1 &^= stm32.CR1_STOP
	if c.faults.Frozen {
		c.cr1 &^= stm32.CR1_START
	}
	if c.stuck > 0 {
		c.stuck--
	}
	c.stats.Stops++
	c.release()
}

// release returns the bus to idle; the last received byte stays in DR.
func (c *Controller) release() {
	if c.active != nil {
		c.active.Stop()
		c.active = nil
	}
	c.tenBitPeer = nil
	c.sr1 &^= stm32.SR1_SB | stm32.SR1_ADDR | stm32.SR1_ADD10 | stm32.SR1_BTF | stm32.SR1_TXE
	c.msl = false
	c.tra = false
	c.rxMore = false
	c.rxFinal = false
	c.phase = phaseIdle
	c.busy = c.stuck != 0
}

func (c *Controller) softReset() {
	if c.stuck > 0 {
		c.stuck--
	}
	c.stats.SoftResets++
	c.cr2, c.oar1, c.oar2, c.ccr, c.trise, c.dr, c.sr1 = 0, 0, 0, 0, 0, 0, 0
	c.release()
}

func (c *Controller) disable() {
	c.sr1 = 0
	c.release()
}
