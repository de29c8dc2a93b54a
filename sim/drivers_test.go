package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/drivers/adxl345"

	"github.com/mklimuk/f1hal"
)

const (
	adxlPowerCtl   = 0x2D
	adxlDataFormat = 0x31
	adxlDataX0     = 0x32
)

func TestTinyGoDriverOverEngine(t *testing.T) {
	b := testBoard(t, Faults{})
	slave := NewRegisterSlave(f1hal.SevenBit(adxl345.AddressLow), map[uint8]uint8{
		adxlDataX0: 0x64, adxlDataX0 + 1: 0x00,
		adxlDataX0 + 2: 0x9C, adxlDataX0 + 3: 0xFF,
		adxlDataX0 + 4: 0x00, adxlDataX0 + 5: 0x01,
	})
	b.Controller.Attach(slave)

	dev := adxl345.New(b.Shared)
	dev.Configure()
	assert.Equal(t, byte(0x08), slave.Reg(adxlPowerCtl))
	dev.SetRange(adxl345.RANGE_16G)
	assert.Equal(t, byte(adxl345.RANGE_16G), slave.Reg(adxlDataFormat))

	x, y, z := dev.ReadRawAcceleration()
	assert.Equal(t, []int16{100, -100, 256}, []int16{x, y, z})
	assertIdle(t, b)
}

func TestAddressableBusOverEngine(t *testing.T) {
	b := testBoard(t, Faults{})
	var bus f1hal.I2CBus = b.Shared
	ctx := context.Background()

	require.NoError(t, bus.WriteToAddr(ctx, mpuAddr, []byte{0x75}))
	buf := make([]byte, 1)
	require.NoError(t, bus.ReadFromAddr(ctx, mpuAddr, buf))
	assert.Equal(t, []byte{0xAB}, buf)

	err := bus.ReadFromAddr(ctx, 0x50, buf)
	assert.ErrorContains(t, err, "could not read from i2c bus 50")
	assert.NoError(t, bus.Release(ctx))
}
