package f1hal

import (
	"context"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

// Address is an I2C slave address in either 7-bit or 10-bit mode.
type Address struct {
	Value  uint16
	TenBit bool
}

func SevenBit(addr uint8) Address {
	return Address{Value: uint16(addr) & 0x7F}
}

func TenBit(addr uint16) Address {
	return Address{Value: addr & 0x3FF, TenBit: true}
}

func (a Address) String() string {
	if a.TenBit {
		return fmt.Sprintf("%#03x(10)", a.Value)
	}
	return fmt.Sprintf("%#02x", a.Value)
}

// Operation is one segment of a transaction. Contiguous segments of the same
// direction are sent without a restart in between.
type Operation struct {
	Read bool
	Buf  []byte
}

func Write(buf []byte) Operation {
	return Operation{Buf: buf}
}

func Read(buf []byte) Operation {
	return Operation{Read: true, Buf: buf}
}

// Transactor executes an addressed list of operations as a single bus transaction.
type Transactor interface {
	Transaction(ctx context.Context, addr Address, ops ...Operation) error
}

type BusReader interface {
	Read(ctx context.Context, buffer []byte) error
}

type BusWriter interface {
	Write(ctx context.Context, buffer []byte) error
}

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

type I2CBus interface {
	AddressableReader
	AddressableWriter
}

type I2CDevice interface {
	BusReader
	BusWriter
	WriteRead(ctx context.Context, w, r []byte) error
}

// BusError is the coarse failure class reported to device drivers.
type BusError int

const (
	BusErrorNone BusError = iota
	BusErrorBusy
	BusErrorArbitrationLoss
	BusErrorNoAcknowledge
	BusErrorTimeout
	BusErrorOther
)

func (e BusError) String() string {
	switch e {
	case BusErrorNone:
		return "none"
	case BusErrorBusy:
		return "busy"
	case BusErrorArbitrationLoss:
		return "arbitration loss"
	case BusErrorNoAcknowledge:
		return "no acknowledge"
	case BusErrorTimeout:
		return "timeout"
	default:
		return "other"
	}
}
