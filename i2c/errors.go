package i2c

import (
	"errors"

	"github.com/mklimuk/f1hal"
)

// Kind identifies an I2C failure class.
type Kind uint8

const (
	KindArbitrationLoss Kind = iota + 1
	KindBus
	KindCrc
	KindNoAcknowledge
	KindOverrun
	KindPec
	KindSMBusAlert
	KindTimeout
	KindSMBusTimeout
	KindBusy
	KindBuffer
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindArbitrationLoss:
		return "arbitration loss"
	case KindBus:
		return "bus error"
	case KindCrc:
		return "crc error"
	case KindNoAcknowledge:
		return "no acknowledge"
	case KindOverrun:
		return "overrun"
	case KindPec:
		return "pec error"
	case KindSMBusAlert:
		return "smbus alert"
	case KindTimeout:
		return "timeout"
	case KindSMBusTimeout:
		return "smbus timeout"
	case KindBusy:
		return "bus busy"
	case KindBuffer:
		return "command buffer full"
	default:
		return "other"
	}
}

// NackSource tells which phase a slave refused to acknowledge.
type NackSource uint8

const (
	NackUnknown NackSource = iota
	NackAddress
	NackData
)

// Error is the value recorded by interrupt handlers and returned by Bus.
// It is comparable, so errors.Is works against the exported sentinels.
type Error struct {
	Kind Kind
	Nack NackSource
}

var (
	ErrArbitrationLoss = Error{Kind: KindArbitrationLoss}
	ErrBus             = Error{Kind: KindBus}
	ErrCrc             = Error{Kind: KindCrc}
	ErrNack            = Error{Kind: KindNoAcknowledge}
	ErrNackAddress     = Error{Kind: KindNoAcknowledge, Nack: NackAddress}
	ErrNackData        = Error{Kind: KindNoAcknowledge, Nack: NackData}
	ErrOverrun         = Error{Kind: KindOverrun}
	ErrPec             = Error{Kind: KindPec}
	ErrSMBusAlert      = Error{Kind: KindSMBusAlert}
	ErrTimeout         = Error{Kind: KindTimeout}
	ErrSMBusTimeout    = Error{Kind: KindSMBusTimeout}
	ErrBusy            = Error{Kind: KindBusy}
	ErrBuffer          = Error{Kind: KindBuffer}
	ErrOther           = Error{Kind: KindOther}
)

func (e Error) Error() string {
	switch {
	case e.Kind == KindNoAcknowledge && e.Nack == NackAddress:
		return "i2c: no acknowledge on address"
	case e.Kind == KindNoAcknowledge && e.Nack == NackData:
		return "i2c: no acknowledge on data"
	}
	return "i2c: " + e.Kind.String()
}

// Is lets ErrNack match a NACK of any phase and a busy error match
// f1hal.ErrBusBusy.
func (e Error) Is(target error) bool {
	if target == f1hal.ErrBusBusy {
		return e.Kind == KindBusy
	}
	t, ok := target.(Error)
	if !ok {
		return false
	}
	if t.Kind == KindNoAcknowledge && t.Nack == NackUnknown {
		return e.Kind == KindNoAcknowledge
	}
	return e == t
}

// encode packs an error into one word: the kind code in the low byte and the
// NACK source in the second byte. Zero means no error.
func encode(e Error) uint32 {
	return uint32(e.Kind) | uint32(e.Nack)<<8
}

func decode(v uint32) (Error, bool) {
	if v == 0 {
		return Error{}, false
	}
	kind := Kind(v & 0xFF)
	if kind < KindArbitrationLoss || kind > KindOther {
		return ErrOther, true
	}
	e := Error{Kind: kind}
	if kind == KindNoAcknowledge {
		nack := NackSource(v >> 8 & 0xFF)
		if nack <= NackData {
			e.Nack = nack
		}
	}
	return e, true
}

// Classify maps any transaction error onto the coarse driver-facing class.
func Classify(err error) f1hal.BusError {
	if err == nil {
		return f1hal.BusErrorNone
	}
	var e Error
	if !errors.As(err, &e) {
		if errors.Is(err, f1hal.ErrBusBusy) {
			return f1hal.BusErrorBusy
		}
		return f1hal.BusErrorOther
	}
	switch e.Kind {
	case KindBusy:
		return f1hal.BusErrorBusy
	case KindArbitrationLoss:
		return f1hal.BusErrorArbitrationLoss
	case KindNoAcknowledge:
		return f1hal.BusErrorNoAcknowledge
	case KindTimeout, KindSMBusTimeout:
		return f1hal.BusErrorTimeout
	default:
		return f1hal.BusErrorOther
	}
}
