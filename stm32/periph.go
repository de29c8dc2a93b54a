package stm32

import (
	"github.com/mklimuk/f1hal"
	"github.com/mklimuk/f1hal/i2c"
)

var _ i2c.Periph = &Periph{}

// Periph implements i2c.Periph on top of an I2C register block.
type Periph struct {
	regs Registers
	pclk uint32 // APB1 clock in Hz, needed to reprogram the timing
	duty Duty

	wrote bool // a data byte was written since the address phase
}

// New wraps regs. pclk1 is the APB1 clock feeding the peripheral.
func New(regs Registers, pclk1 uint32) *Periph {
	return &Periph{regs: regs, pclk: pclk1}
}

func (p *Periph) Steal() i2c.Periph {
	regs := p.regs
	if s, ok := regs.(Stealer); ok {
		regs = s.Steal()
	}
	return &Periph{regs: regs, pclk: p.pclk, duty: p.duty}
}

func (p *Periph) set(r Reg, bits uint32) {
	p.regs.Store(r, p.regs.Load(r)|bits)
}

func (p *Periph) clear(r Reg, bits uint32) {
	p.regs.Store(r, p.regs.Load(r)&^bits)
}

func (p *Periph) has(r Reg, bits uint32) bool {
	return p.regs.Load(r)&bits != 0
}

func (p *Periph) DisableAllInterrupts() {
	p.clear(CR2, CR2_ITEVTEN|CR2_ITBUFEN|CR2_ITERREN)
}

func (p *Periph) DisableDataInterrupt() {
	p.clear(CR2, CR2_ITBUFEN)
}

func (p *Periph) SendStart() {
	p.set(CR2, CR2_ITEVTEN)
	p.regs.Store(SR1, 0)
	p.set(CR1, CR1_START)
	p.set(CR2, CR2_ITERREN)
}

func (p *Periph) SendStop() {
	cr1 := p.regs.Load(CR1)
	p.regs.Store(CR1, (cr1|CR1_STOP)&^CR1_ACK)
	p.regs.Store(SR1, 0)
}

func (p *Periph) IsStopped() bool {
	return !p.has(CR1, CR1_STOP) && !p.has(SR2, SR2_BUSY)
}

// clearAddr performs the SR1-then-SR2 read sequence that releases ADDR.
func (p *Periph) clearAddr() {
	_ = p.regs.Load(SR1)
	_ = p.regs.Load(SR2)
}

func (p *Periph) PrepareWrite(addr f1hal.Address, subStep *uint8) i2c.Progress {
	switch *subStep {
	case 0:
		if !p.has(SR1, SR1_SB) {
			return i2c.Pending
		}
		p.regs.Store(DR, uint32(i2c.HeaderByte(addr, false)))
		if addr.TenBit {
			*subStep = 1
		} else {
			*subStep = 2
		}
		return i2c.Progressed
	case 1:
		if !p.has(SR1, SR1_ADD10) {
			return i2c.Pending
		}
		p.regs.Store(DR, uint32(i2c.TenBitLow(addr)))
		*subStep = 2
		return i2c.Progressed
	case 2:
		if !p.has(SR1, SR1_ADDR) {
			return i2c.Pending
		}
		p.clearAddr()
		p.wrote = false
		p.set(CR2, CR2_ITBUFEN)
		return i2c.Done
	}
	return i2c.Pending
}

func (p *Periph) PrepareRead(addr f1hal.Address, total int, last bool, subStep *uint8) i2c.Progress {
	if *subStep == 0 && p.has(SR1, SR1_BTF) {
		_ = p.regs.Load(DR)
	}
	switch *subStep {
	case 0:
		if !p.has(SR1, SR1_SB) {
			return i2c.Pending
		}
		p.clear(CR1, CR1_ACK)
		if addr.TenBit {
			p.regs.Store(DR, uint32(i2c.HeaderByte(addr, false)))
			*subStep = 1
		} else {
			p.regs.Store(DR, uint32(i2c.HeaderByte(addr, true)))
			*subStep = 4
		}
		return i2c.Progressed
	case 1:
		if !p.has(SR1, SR1_ADD10) {
			return i2c.Pending
		}
		p.regs.Store(DR, uint32(i2c.TenBitLow(addr)))
		*subStep = 2
		return i2c.Progressed
	case 2:
		// 10-bit reads restart with the header byte and the read bit set
		if !p.has(SR1, SR1_ADDR) {
			return i2c.Pending
		}
		p.clearAddr()
		p.SendStart()
		*subStep = 3
		return i2c.Progressed
	case 3:
		if !p.has(SR1, SR1_SB) {
			return i2c.Pending
		}
		p.regs.Store(DR, uint32(i2c.HeaderByte(addr, true)))
		*subStep = 4
		return i2c.Progressed
	case 4:
		if !p.has(SR1, SR1_ADDR) {
			return i2c.Pending
		}
		if total > 1 {
			p.set(CR1, CR1_ACK)
		} else {
			p.clear(CR1, CR1_ACK)
		}
		p.clearAddr()
		if total <= 1 {
			p.endCondition(last)
		}
		p.set(CR2, CR2_ITBUFEN)
		return i2c.Done
	}
	return i2c.Pending
}

// endCondition requests what follows the byte being received.
func (p *Periph) endCondition(last bool) {
	if last {
		p.set(CR1, CR1_STOP)
	} else {
		p.set(CR1, CR1_START)
	}
}

func (p *Periph) WriteWith(next func() (byte, bool)) i2c.Progress {
	sr1 := p.regs.Load(SR1)
	if sr1&SR1_TXE == 0 {
		return i2c.Pending
	}
	if b, ok := next(); ok {
		p.regs.Store(DR, uint32(b))
		p.wrote = true
		return i2c.Progressed
	}
	if sr1&SR1_BTF != 0 || !p.wrote {
		return i2c.Done
	}
	return i2c.Pending
}

func (p *Periph) Receive(left int, last bool) (byte, bool) {
	if !p.has(SR1, SR1_RXNE) {
		return 0, false
	}
	if left == 2 {
		p.endCondition(last)
		p.clear(CR1, CR1_ACK)
	}
	return byte(p.regs.Load(DR)), true
}

// GetAndCleanError reports the highest priority latched error and clears
// it. BERR is cleared and ignored: the F1 raises it spuriously (errata 2.13.7).
func (p *Periph) GetAndCleanError() (i2c.Error, bool) {
	sr1 := p.regs.Load(SR1)
	var bit uint32
	var e i2c.Error
	switch {
	case sr1&SR1_ARLO != 0:
		bit, e = SR1_ARLO, i2c.ErrArbitrationLoss
	case sr1&SR1_AF != 0:
		bit, e = SR1_AF, i2c.ErrNack
	case sr1&SR1_OVR != 0:
		bit, e = SR1_OVR, i2c.ErrOverrun
	case sr1&SR1_TIMEOUT != 0:
		bit, e = SR1_TIMEOUT, i2c.ErrSMBusTimeout
	case sr1&SR1_SMBALERT != 0:
		bit, e = SR1_SMBALERT, i2c.ErrSMBusAlert
	case sr1&SR1_PECERR != 0:
		bit, e = SR1_PECERR, i2c.ErrPec
	}
	if sr1&SR1_BERR != 0 || bit != 0 {
		p.regs.Store(SR1, 0xFFFF&^(bit|SR1_BERR))
	}
	return e, bit != 0
}

func (p *Periph) GetFlag(f i2c.Flag) bool {
	switch f {
	case i2c.FlagStartBit:
		return p.has(SR1, SR1_SB)
	case i2c.FlagAddrSent:
		return p.has(SR1, SR1_ADDR)
	case i2c.FlagAddr10:
		return p.has(SR1, SR1_ADD10)
	case i2c.FlagByteTransferFinished:
		return p.has(SR1, SR1_BTF)
	case i2c.FlagTxEmpty:
		return p.has(SR1, SR1_TXE)
	case i2c.FlagRxNotEmpty:
		return p.has(SR1, SR1_RXNE)
	case i2c.FlagBusy:
		return p.has(SR2, SR2_BUSY)
	case i2c.FlagMaster:
		return p.has(SR2, SR2_MSL)
	}
	return false
}

func (p *Periph) HandleError(e i2c.Error) {
	p.SoftReset()
}

// SoftReset pulses SWRST and restores the timing configuration it wipes.
func (p *Periph) SoftReset() {
	cr2 := p.regs.Load(CR2)
	trise := p.regs.Load(TRISE)
	ccr := p.regs.Load(CCR)
	p.set(CR1, CR1_SWRST)
	p.clear(CR1, CR1_SWRST)
	p.regs.Store(CR2, cr2)
	p.regs.Store(TRISE, trise)
	p.regs.Store(CCR, ccr)
	p.set(CR1, CR1_PE)
}
