package i2c

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
	periphi2c "periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"

	"github.com/mklimuk/f1hal"
)

var (
	_ f1hal.Transactor = &SharedBus{}
	_ f1hal.I2CBus     = &SharedBus{}
	_ periphi2c.Bus    = &SharedBus{}
	_ drivers.I2C      = &SharedBus{}
	_ f1hal.I2CDevice  = &Device{}
	_ f1hal.I2CDevice  = &SoleDevice{}
)

// SharedBus serialises transactions from several goroutines onto one Bus.
type SharedBus struct {
	mx      sync.Mutex
	bus     *Bus
	limiter *rate.Limiter
}

type SharedBusOpt func(*SharedBus)

// WithRateLimit caps the number of transactions per second.
func WithRateLimit(perSecond float64, burst int) SharedBusOpt {
	return func(s *SharedBus) {
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func NewSharedBus(bus *Bus, opts ...SharedBusOpt) *SharedBus {
	s := &SharedBus{bus: bus}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SharedBus) Transaction(ctx context.Context, addr f1hal.Address, ops ...f1hal.Operation) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.bus.Transaction(addr, ops...)
}

func (s *SharedBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	err := s.Transaction(ctx, f1hal.SevenBit(address), f1hal.Read(buffer))
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	return nil
}

func (s *SharedBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	err := s.Transaction(ctx, f1hal.SevenBit(address), f1hal.Write(buffer))
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	return nil
}

// Release is a no-op: every transaction ends with the bus stopped.
func (s *SharedBus) Release(ctx context.Context) error {
	return nil
}

// Tx performs a write-then-read transaction. Addresses above 0x7F select
// 10-bit addressing.
func (s *SharedBus) Tx(addr uint16, w, r []byte) error {
	a := f1hal.SevenBit(uint8(addr))
	if addr > 0x7F {
		a = f1hal.TenBit(addr)
	}
	ops := []f1hal.Operation{f1hal.Write(w)}
	if len(r) > 0 {
		ops = append(ops, f1hal.Read(r))
	}
	return s.Transaction(context.Background(), a, ops...)
}

func (s *SharedBus) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return s.Tx(uint16(addr), []byte{reg}, buf)
}

func (s *SharedBus) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	w := make([]byte, len(buf)+1)
	w[0] = reg
	copy(w[1:], buf)
	return s.Tx(uint16(addr), w, nil)
}

func (s *SharedBus) SetSpeed(f physic.Frequency) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.bus.SetSpeed(f)
}

func (s *SharedBus) String() string {
	return s.bus.String()
}

// Device binds a slave address to a SharedBus.
type Device struct {
	bus  *SharedBus
	addr f1hal.Address
}

func NewDevice(bus *SharedBus, addr f1hal.Address) *Device {
	return &Device{bus: bus, addr: addr}
}

func (d *Device) Address() f1hal.Address { return d.addr }

func (d *Device) SetAddress(addr f1hal.Address) { d.addr = addr }

func (d *Device) Read(ctx context.Context, buffer []byte) error {
	return d.bus.Transaction(ctx, d.addr, f1hal.Read(buffer))
}

func (d *Device) Write(ctx context.Context, buffer []byte) error {
	return d.bus.Transaction(ctx, d.addr, f1hal.Write(buffer))
}

func (d *Device) WriteRead(ctx context.Context, w, r []byte) error {
	return d.bus.Transaction(ctx, d.addr, f1hal.Write(w), f1hal.Read(r))
}

func (d *Device) Transaction(ctx context.Context, ops ...f1hal.Operation) error {
	return d.bus.Transaction(ctx, d.addr, ops...)
}

// SoleDevice owns its Bus exclusively, so no locking is involved.
type SoleDevice struct {
	bus  *Bus
	addr f1hal.Address
}

func NewSoleDevice(bus *Bus, addr f1hal.Address) *SoleDevice {
	return &SoleDevice{bus: bus, addr: addr}
}

func (d *SoleDevice) SetAddress(addr f1hal.Address) { d.addr = addr }

func (d *SoleDevice) Read(ctx context.Context, buffer []byte) error {
	return d.Transaction(ctx, f1hal.Read(buffer))
}

func (d *SoleDevice) Write(ctx context.Context, buffer []byte) error {
	return d.Transaction(ctx, f1hal.Write(buffer))
}

func (d *SoleDevice) WriteRead(ctx context.Context, w, r []byte) error {
	return d.Transaction(ctx, f1hal.Write(w), f1hal.Read(r))
}

func (d *SoleDevice) Transaction(ctx context.Context, ops ...f1hal.Operation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.bus.Transaction(d.addr, ops...)
}
