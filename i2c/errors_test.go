package i2c

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mklimuk/f1hal"
)

func allErrors() []Error {
	return []Error{
		ErrArbitrationLoss, ErrBus, ErrCrc, ErrNack, ErrNackAddress, ErrNackData,
		ErrOverrun, ErrPec, ErrSMBusAlert, ErrTimeout, ErrSMBusTimeout, ErrBusy,
		ErrBuffer, ErrOther,
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	for _, e := range allErrors() {
		t.Run(e.Error(), func(t *testing.T) {
			code := encode(e)
			assert.NotZero(t, code)
			got, ok := decode(code)
			assert.True(t, ok)
			assert.Equal(t, e, got)
		})
	}
	_, ok := decode(0)
	assert.False(t, ok)
}

func TestEncodeTable(t *testing.T) {
	assert.Equal(t, uint32(1), encode(ErrArbitrationLoss))
	assert.Equal(t, uint32(4), encode(ErrNack))
	assert.Equal(t, uint32(4|1<<8), encode(ErrNackAddress))
	assert.Equal(t, uint32(4|2<<8), encode(ErrNackData))
	assert.Equal(t, uint32(10), encode(ErrBusy))
	assert.Equal(t, uint32(12), encode(ErrOther))
}

func TestDecodeUnknownCode(t *testing.T) {
	got, ok := decode(0x7F)
	assert.True(t, ok)
	assert.Equal(t, ErrOther, got)
}

func TestErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("could not read: %w", ErrNackData)
	assert.ErrorIs(t, wrapped, ErrNack)
	assert.ErrorIs(t, wrapped, ErrNackData)
	assert.False(t, errors.Is(wrapped, ErrNackAddress))
	assert.ErrorIs(t, ErrBusy, f1hal.ErrBusBusy)
	assert.False(t, errors.Is(ErrTimeout, f1hal.ErrBusBusy))
}

func TestErrorCellKeepsFirst(t *testing.T) {
	var c errorCell
	_, ok := c.Load()
	assert.False(t, ok)
	c.Set(ErrOverrun)
	c.Set(ErrArbitrationLoss)
	e, ok := c.Load()
	assert.True(t, ok)
	assert.Equal(t, ErrOverrun, e)
	c.Clear()
	_, ok = c.Load()
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want f1hal.BusError
	}{
		{nil, f1hal.BusErrorNone},
		{ErrBusy, f1hal.BusErrorBusy},
		{f1hal.ErrBusBusy, f1hal.BusErrorBusy},
		{ErrArbitrationLoss, f1hal.BusErrorArbitrationLoss},
		{fmt.Errorf("x: %w", ErrNackAddress), f1hal.BusErrorNoAcknowledge},
		{ErrTimeout, f1hal.BusErrorTimeout},
		{ErrSMBusTimeout, f1hal.BusErrorTimeout},
		{ErrOverrun, f1hal.BusErrorOther},
		{errors.New("boom"), f1hal.BusErrorOther},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, Classify(test.err), "%v", test.err)
	}
}
