package accel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/f1hal"
	"github.com/mklimuk/f1hal/i2c"
	"github.com/mklimuk/f1hal/sim"
)

type MockDevice struct {
	mock.Mock
}

func (m *MockDevice) Read(ctx context.Context, buffer []byte) error {
	return m.Called(ctx, buffer).Error(0)
}

func (m *MockDevice) Write(ctx context.Context, buffer []byte) error {
	return m.Called(ctx, buffer).Error(0)
}

func (m *MockDevice) WriteRead(ctx context.Context, w, r []byte) error {
	args := m.Called(ctx, w, r)
	if data, ok := args.Get(0).([]byte); ok {
		copy(r, data)
	}
	return args.Error(1)
}

func TestInitSequence(t *testing.T) {
	dev := &MockDevice{}
	ctx := context.Background()
	dev.On("Write", ctx, []byte{regPower1, 0x00}).Return(nil).Once()
	dev.On("Write", ctx, []byte{regConfig, 0x03, 0x10, 0x08, 0x33}).Return(nil).Once()

	m := NewMPU6050(dev, WithWakeDelay(0))
	require.NoError(t, m.Init(ctx))
	dev.AssertExpectations(t)
}

func TestInitWakeFailure(t *testing.T) {
	dev := &MockDevice{}
	ctx := context.Background()
	dev.On("Write", ctx, []byte{regPower1, 0x00}).Return(i2c.ErrNackAddress).Once()

	err := NewMPU6050(dev).Init(ctx)
	assert.ErrorIs(t, err, i2c.ErrNackAddress)
	dev.AssertNumberOfCalls(t, "Write", 1)
}

func TestTemperature(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want float64
	}{
		{"zero", []byte{0x00, 0x00}, 36.53},
		{"positive", []byte{0x01, 0x54}, 37.53},
		{"negative", []byte{0xFE, 0xAC}, 35.53},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dev := &MockDevice{}
			dev.On("WriteRead", mock.Anything, []byte{regTemperature}, mock.Anything).Return(test.raw, nil)
			got, err := NewMPU6050(dev).Temperature(context.Background())
			require.NoError(t, err)
			assert.InDelta(t, test.want, got, 0.001)
		})
	}
}

func TestDetect(t *testing.T) {
	dev := &MockDevice{}
	dev.On("WriteRead", mock.Anything, []byte{regWhoAmI}, mock.Anything).Return([]byte{0x71}, nil)
	err := NewMPU6050(dev).Detect(context.Background())
	assert.ErrorIs(t, err, ErrUnknownDevice)

	dev = &MockDevice{}
	dev.On("WriteRead", mock.Anything, []byte{regWhoAmI}, mock.Anything).Return(nil, errors.New("bus down"))
	err = NewMPU6050(dev).Detect(context.Background())
	assert.ErrorContains(t, err, "bus down")
}

func TestOnSimulatedBoard(t *testing.T) {
	cfg := sim.DefaultBoardConfig()
	cfg.MinTimeout = time.Second
	cfg.Slaves = []sim.SlaveConfig{{
		Name:      "mpu6050",
		Address:   DefaultAddress,
		Registers: map[uint8]uint8{regWhoAmI: whoAmI, regTemperature: 0x01, regTemperature + 1: 0x54, regPower1: 0x40},
	}}
	b, err := sim.NewBoard(cfg)
	require.NoError(t, err)
	defer b.Close()

	m := NewMPU6050(i2c.NewDevice(b.Shared, f1hal.SevenBit(DefaultAddress)), WithInterval(time.Millisecond))
	var samples []Sample
	err = m.Poll(context.Background(), func(s Sample, err error) bool {
		require.NoError(t, err)
		samples = append(samples, s)
		return len(samples) < 3
	})
	require.NoError(t, err)
	require.Len(t, samples, 3)
	for _, s := range samples {
		assert.Equal(t, byte(whoAmI), s.WhoAmI)
		assert.InDelta(t, 37.53, s.Temperature, 0.001)
		assert.Equal(t, [4]byte{0x03, 0x10, 0x08, 0x33}, s.Config)
	}
	assert.Zero(t, b.Slaves[f1hal.SevenBit(DefaultAddress)].Reg(regPower1))
	assert.NoError(t, m.Detect(context.Background()))
}
