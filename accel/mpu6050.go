package accel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mklimuk/f1hal"
)

const (
	regConfig      = 0x1A
	regTemperature = 0x41
	regPower1      = 0x6B
	regWhoAmI      = 0x75
)

// DefaultAddress is the MPU-6050 address with AD0 tied low.
const DefaultAddress = 0x68

// whoAmI is the identity register content of a genuine part.
const whoAmI = 0x68

var ErrUnknownDevice = fmt.Errorf("mpu6050: unexpected WHO_AM_I value")

type MPU6050Opts struct {
	WakeDelay time.Duration
	Interval  time.Duration
}

type MPU6050Opt func(*MPU6050Opts)

// WithWakeDelay sets the pause between leaving sleep and configuring.
func WithWakeDelay(d time.Duration) MPU6050Opt {
	return func(o *MPU6050Opts) {
		o.WakeDelay = d
	}
}

// WithInterval sets the Poll period.
func WithInterval(d time.Duration) MPU6050Opt {
	return func(o *MPU6050Opts) {
		o.Interval = d
	}
}

// Sample is one Poll reading.
type Sample struct {
	WhoAmI      byte
	Temperature float64
	Config      [4]byte
}

// MPU6050 represents InvenSense MPU-6050 motion sensor
type MPU6050 struct {
	mx   sync.Mutex
	dev  f1hal.I2CDevice
	opts MPU6050Opts
}

func NewMPU6050(dev f1hal.I2CDevice, opts ...MPU6050Opt) *MPU6050 {
	o := MPU6050Opts{
		WakeDelay: 2 * time.Millisecond,
		Interval:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &MPU6050{dev: dev, opts: o}
}

// Init wakes the sensor and programs CONFIG, GYRO_CONFIG, ACCEL_CONFIG and
// FF_THR in one burst: DLPF 44Hz, gyro ±1000°/s, accel ±4g.
func (m *MPU6050) Init(ctx context.Context) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	err := m.dev.Write(ctx, []byte{regPower1, 0x00})
	if err != nil {
		return fmt.Errorf("could not wake up sensor: %w", err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.opts.WakeDelay):
	}
	err = m.dev.Write(ctx, []byte{regConfig, 0x03, 2 << 3, 1 << 3, 0x33})
	if err != nil {
		return fmt.Errorf("could not configure sensor: %w", err)
	}
	return nil
}

func (m *MPU6050) WhoAmI(ctx context.Context) (byte, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	buf := []byte{0}
	err := m.dev.WriteRead(ctx, []byte{regWhoAmI}, buf)
	if err != nil {
		return 0, fmt.Errorf("could not read WHO_AM_I: %w", err)
	}
	return buf[0], nil
}

// Detect checks the identity register.
func (m *MPU6050) Detect(ctx context.Context) error {
	id, err := m.WhoAmI(ctx)
	if err != nil {
		return err
	}
	if id != whoAmI {
		return fmt.Errorf("%w: %#02x", ErrUnknownDevice, id)
	}
	return nil
}

// Temperature returns the die temperature in °C.
func (m *MPU6050) Temperature(ctx context.Context) (float64, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	buf := make([]byte, 2)
	err := m.dev.WriteRead(ctx, []byte{regTemperature}, buf)
	if err != nil {
		return 0, fmt.Errorf("could not read temperature: %w", err)
	}
	return temperature(buf), nil
}

func temperature(buf []byte) float64 {
	raw := int16(uint16(buf[0])<<8 | uint16(buf[1]))
	return float64(raw)/340 + 36.53
}

// Config reads back the four configuration registers written by Init.
func (m *MPU6050) Config(ctx context.Context) ([4]byte, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	var cfg [4]byte
	err := m.dev.WriteRead(ctx, []byte{regConfig}, cfg[:])
	if err != nil {
		return cfg, fmt.Errorf("could not read configuration: %w", err)
	}
	return cfg, nil
}

func (m *MPU6050) Read(ctx context.Context) (Sample, error) {
	var s Sample
	var err error
	s.WhoAmI, err = m.WhoAmI(ctx)
	if err != nil {
		return s, err
	}
	s.Temperature, err = m.Temperature(ctx)
	if err != nil {
		return s, err
	}
	s.Config, err = m.Config(ctx)
	return s, err
}

// Poll initialises the sensor and then reads it every interval until ctx is
// done or fn returns false. Read errors are passed to fn and do not stop the
// loop.
func (m *MPU6050) Poll(ctx context.Context, fn func(Sample, error) bool) error {
	err := m.Init(ctx)
	if err != nil {
		return err
	}
	tick := time.NewTicker(m.opts.Interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
		s, err := m.Read(ctx)
		if !fn(s, err) {
			return nil
		}
	}
}
