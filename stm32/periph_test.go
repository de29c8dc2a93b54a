package stm32

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/f1hal"
	"github.com/mklimuk/f1hal/i2c"
)

func TestComputeTiming(t *testing.T) {
	tests := []struct {
		name  string
		pclk  uint32
		speed physic.Frequency
		duty  Duty
		want  Timing
	}{
		{"standard 36MHz", 36_000_000, 100 * physic.KiloHertz, Duty2, Timing{Freq: 36, CCR: 180, TRISE: 37}},
		{"standard 2MHz", 2_000_000, 100 * physic.KiloHertz, Duty2, Timing{Freq: 2, CCR: 10, TRISE: 3}},
		{"standard minimum ccr", 8_000_000, 100 * physic.KiloHertz, Duty2, Timing{Freq: 8, CCR: 40, TRISE: 9}},
		{"fast duty 2", 36_000_000, 400 * physic.KiloHertz, Duty2, Timing{Freq: 36, CCR: 30 | CCR_FS, TRISE: 11}},
		{"fast duty 16/9", 36_000_000, 400 * physic.KiloHertz, Duty169, Timing{Freq: 36, CCR: 3 | CCR_FS | CCR_DUTY, TRISE: 11}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ComputeTiming(test.pclk, test.speed, test.duty)
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestComputeTimingRejects(t *testing.T) {
	_, err := ComputeTiming(1_000_000, 100*physic.KiloHertz, Duty2)
	assert.Error(t, err)
	_, err = ComputeTiming(8_000_000, physic.MegaHertz, Duty2)
	assert.Error(t, err)
}

func TestConfigure(t *testing.T) {
	regs := newRegFile()
	regs.regs[CR1] = CR1_POS
	regs.regs[CR2] = CR2_ITEVTEN | 0x3F
	p := New(regs, 36_000_000)
	require.NoError(t, p.Configure(100*physic.KiloHertz, Duty2))
	assert.Equal(t, uint32(CR1_PE), regs.regs[CR1])
	assert.Equal(t, uint32(CR2_ITEVTEN|36), regs.regs[CR2])
	assert.Equal(t, uint32(180), regs.regs[CCR])
	assert.Equal(t, uint32(37), regs.regs[TRISE])
	// PE must be off while timing is written
	assert.Equal(t, store{CR1, CR1_POS &^ CR1_PE}, regs.stores[0])
}

func TestGetAndCleanErrorPriority(t *testing.T) {
	tests := []struct {
		name  string
		sr1   uint32
		want  i2c.Error
		found bool
		left  uint32
	}{
		{"none", SR1_TXE, i2c.Error{}, false, SR1_TXE},
		{"berr only is ignored", SR1_BERR, i2c.Error{}, false, 0},
		{"arlo beats af", SR1_ARLO | SR1_AF, i2c.ErrArbitrationLoss, true, SR1_AF},
		{"af", SR1_AF | SR1_BERR, i2c.ErrNack, true, 0},
		{"overrun", SR1_OVR | SR1_PECERR, i2c.ErrOverrun, true, SR1_PECERR},
		{"timeout", SR1_TIMEOUT, i2c.ErrSMBusTimeout, true, 0},
		{"alert", SR1_SMBALERT, i2c.ErrSMBusAlert, true, 0},
		{"pec", SR1_PECERR, i2c.ErrPec, true, 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			regs := &rcw0{sr1: test.sr1}
			p := New(regs, 8_000_000)
			e, ok := p.GetAndCleanError()
			assert.Equal(t, test.found, ok)
			assert.Equal(t, test.want, e)
			assert.Equal(t, test.left, regs.sr1)
		})
	}
}

// rcw0 models SR1 error bits that are cleared by writing zero.
type rcw0 struct {
	sr1 uint32
}

func (r *rcw0) Load(reg Reg) uint32 {
	if reg == SR1 {
		return r.sr1
	}
	return 0
}

func (r *rcw0) Store(reg Reg, v uint32) {
	if reg == SR1 {
		r.sr1 &= v | ^uint32(SR1_Errors)
	}
}

func TestPrepareWriteSevenBit(t *testing.T) {
	regs := newRegFile()
	p := New(regs, 8_000_000)
	addr := f1hal.SevenBit(0x68)
	var sub uint8

	assert.Equal(t, i2c.Pending, p.PrepareWrite(addr, &sub))
	regs.regs[SR1] = SR1_SB
	assert.Equal(t, i2c.Progressed, p.PrepareWrite(addr, &sub))
	assert.Equal(t, uint32(0xD0), regs.regs[DR])
	assert.Equal(t, uint8(2), sub)

	regs.regs[SR1] = SR1_ADDR
	assert.Equal(t, i2c.Done, p.PrepareWrite(addr, &sub))
	assert.NotZero(t, regs.regs[CR2]&CR2_ITBUFEN)
}

func TestPrepareWriteTenBit(t *testing.T) {
	regs := newRegFile()
	p := New(regs, 8_000_000)
	addr := f1hal.TenBit(0x2A5)
	var sub uint8

	regs.regs[SR1] = SR1_SB
	assert.Equal(t, i2c.Progressed, p.PrepareWrite(addr, &sub))
	assert.Equal(t, uint32(0xF4), regs.regs[DR])
	regs.regs[SR1] = SR1_ADD10
	assert.Equal(t, i2c.Progressed, p.PrepareWrite(addr, &sub))
	assert.Equal(t, uint32(0xA5), regs.regs[DR])
	regs.regs[SR1] = SR1_ADDR
	assert.Equal(t, i2c.Done, p.PrepareWrite(addr, &sub))
}

func TestPrepareReadSingleByte(t *testing.T) {
	regs := newRegFile()
	regs.regs[CR1] = CR1_PE | CR1_ACK
	p := New(regs, 8_000_000)
	addr := f1hal.SevenBit(0x68)
	var sub uint8

	regs.regs[SR1] = SR1_SB
	assert.Equal(t, i2c.Progressed, p.PrepareRead(addr, 1, true, &sub))
	assert.Equal(t, uint32(0xD1), regs.regs[DR])
	assert.Zero(t, regs.regs[CR1]&CR1_ACK)

	regs.regs[SR1] = SR1_ADDR
	assert.Equal(t, i2c.Done, p.PrepareRead(addr, 1, true, &sub))
	assert.NotZero(t, regs.regs[CR1]&CR1_STOP)
	assert.Zero(t, regs.regs[CR1]&CR1_ACK)
}

func TestPrepareReadRestartsBeforeWrite(t *testing.T) {
	regs := newRegFile()
	p := New(regs, 8_000_000)
	addr := f1hal.SevenBit(0x10)
	sub := uint8(4)

	regs.regs[SR1] = SR1_ADDR
	assert.Equal(t, i2c.Done, p.PrepareRead(addr, 1, false, &sub))
	assert.NotZero(t, regs.regs[CR1]&CR1_START)
	assert.Zero(t, regs.regs[CR1]&CR1_STOP)
}

func TestPrepareReadMultiByteAcks(t *testing.T) {
	regs := newRegFile()
	p := New(regs, 8_000_000)
	sub := uint8(4)
	regs.regs[SR1] = SR1_ADDR
	assert.Equal(t, i2c.Done, p.PrepareRead(f1hal.SevenBit(0x10), 3, true, &sub))
	assert.NotZero(t, regs.regs[CR1]&CR1_ACK)
	assert.Zero(t, regs.regs[CR1]&CR1_STOP)
}

func TestReceive(t *testing.T) {
	regs := newRegFile()
	regs.regs[CR1] = CR1_PE | CR1_ACK
	p := New(regs, 8_000_000)

	_, ok := p.Receive(3, true)
	assert.False(t, ok)

	regs.regs[SR1] = SR1_RXNE
	regs.regs[DR] = 0x11
	b, ok := p.Receive(3, true)
	assert.True(t, ok)
	assert.Equal(t, byte(0x11), b)
	assert.NotZero(t, regs.regs[CR1]&CR1_ACK)

	b, ok = p.Receive(2, true)
	assert.True(t, ok)
	assert.Equal(t, byte(0x11), b)
	assert.Zero(t, regs.regs[CR1]&CR1_ACK)
	assert.NotZero(t, regs.regs[CR1]&CR1_STOP)
}

func TestWriteWith(t *testing.T) {
	regs := newRegFile()
	p := New(regs, 8_000_000)
	data := []byte{0xAA}
	next := func() (byte, bool) {
		if len(data) == 0 {
			return 0, false
		}
		b := data[0]
		data = data[1:]
		return b, true
	}

	assert.Equal(t, i2c.Pending, p.WriteWith(next))
	regs.regs[SR1] = SR1_TXE
	assert.Equal(t, i2c.Progressed, p.WriteWith(next))
	assert.Equal(t, uint32(0xAA), regs.regs[DR])
	// last byte still shifting out
	assert.Equal(t, i2c.Pending, p.WriteWith(next))
	regs.regs[SR1] = SR1_TXE | SR1_BTF
	assert.Equal(t, i2c.Done, p.WriteWith(next))
}

func TestSoftResetRestoresTiming(t *testing.T) {
	regs := newRegFile()
	p := New(regs, 36_000_000)
	require.NoError(t, p.Configure(400*physic.KiloHertz, Duty2))
	ccr, trise, cr2 := regs.regs[CCR], regs.regs[TRISE], regs.regs[CR2]
	p.SoftReset()
	assert.Equal(t, ccr, regs.regs[CCR])
	assert.Equal(t, trise, regs.regs[TRISE])
	assert.Equal(t, cr2, regs.regs[CR2])
	assert.NotZero(t, regs.regs[CR1]&CR1_PE)
	assert.Zero(t, regs.regs[CR1]&CR1_SWRST)
}

func TestIsStopped(t *testing.T) {
	regs := newRegFile()
	p := New(regs, 8_000_000)
	assert.True(t, p.IsStopped())
	regs.regs[SR2] = SR2_BUSY
	assert.False(t, p.IsStopped())
	regs.regs[SR2] = 0
	regs.regs[CR1] = CR1_STOP
	assert.False(t, p.IsStopped())
}
