package stm32

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// Duty is the fast mode SCL low/high ratio.
type Duty uint8

const (
	Duty2   Duty = iota // Tlow/Thigh = 2
	Duty169             // Tlow/Thigh = 16/9
)

const (
	standardModeMax = 100 * physic.KiloHertz
	fastModeMax     = 400 * physic.KiloHertz
)

// Timing holds the register values derived for a bus speed.
type Timing struct {
	Freq  uint32 // CR2.FREQ, peripheral clock in MHz
	CCR   uint32
	TRISE uint32
}

// ComputeTiming derives CR2.FREQ, CCR and TRISE for the given APB1 clock (Hz)
// and bus speed. Rise times are the I2C maxima: 1000 ns standard, 300 ns fast.
func ComputeTiming(pclk1 uint32, speed physic.Frequency, duty Duty) (Timing, error) {
	mhz := pclk1 / 1_000_000
	if mhz < 2 || mhz > 36 {
		return Timing{}, fmt.Errorf("APB1 clock %d Hz outside the 2-36 MHz range", pclk1)
	}
	if speed <= 0 || speed > fastModeMax {
		return Timing{}, fmt.Errorf("unsupported bus speed %s", speed)
	}
	hz := uint32(speed / physic.Hertz)
	t := Timing{Freq: mhz}
	if speed <= standardModeMax {
		t.TRISE = mhz + 1
		t.CCR = max(pclk1/(hz*2), 4)
		return t, nil
	}
	t.TRISE = mhz*300/1000 + 1
	switch duty {
	case Duty169:
		t.CCR = max(pclk1/(hz*25), 1) | CCR_FS | CCR_DUTY
	default:
		t.CCR = max(pclk1/(hz*3), 1) | CCR_FS
	}
	return t, nil
}

// Configure programs the bus timing and enables the peripheral. It must be
// called while the bus is idle.
func (p *Periph) Configure(speed physic.Frequency, duty Duty) error {
	t, err := ComputeTiming(p.pclk, speed, duty)
	if err != nil {
		return err
	}
	p.duty = duty
	p.clear(CR1, CR1_PE)
	p.regs.Store(CR2, p.regs.Load(CR2)&^CR2_FREQ_Msk|t.Freq)
	p.regs.Store(TRISE, t.TRISE)
	p.regs.Store(CCR, t.CCR)
	cr1 := p.regs.Load(CR1)
	p.regs.Store(CR1, (cr1|CR1_PE)&^CR1_POS)
	return nil
}

// SetSpeed reprograms the timing keeping the configured duty cycle.
func (p *Periph) SetSpeed(f physic.Frequency) error {
	return p.Configure(f, p.duty)
}
