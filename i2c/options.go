package i2c

import (
	"log/slog"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/f1hal/osal"
)

// Recovery selects what the issuer does once when the bus does not report
// idle within the busy-wait window.
type Recovery uint8

const (
	// RecoverStop forces a STOP condition.
	RecoverStop Recovery = iota
	// RecoverSoftReset resets the peripheral keeping its timing configuration.
	RecoverSoftReset
	// RecoverHandleError delegates to Periph.HandleError with ErrBusy.
	RecoverHandleError
	// RecoverNone fails with ErrBusy straight away.
	RecoverNone
)

func (r Recovery) String() string {
	switch r {
	case RecoverStop:
		return "stop"
	case RecoverSoftReset:
		return "soft-reset"
	case RecoverHandleError:
		return "handle-error"
	default:
		return "none"
	}
}

// ParseRecovery is the inverse of Recovery.String.
func ParseRecovery(s string) (Recovery, bool) {
	for _, r := range []Recovery{RecoverStop, RecoverSoftReset, RecoverHandleError, RecoverNone} {
		if r.String() == s {
			return r, true
		}
	}
	return RecoverStop, false
}

const (
	DefaultSpeed        = 100 * physic.KiloHertz
	DefaultMaxOperation = 16
	DefaultMinTimeout   = time.Millisecond
	DefaultBusyWait     = time.Millisecond

	// ringHeadroom covers the address, end-of-write and read header commands
	// that accompany the data segments.
	ringHeadroom = 8
	// bitsPerByte is the bus time budgeted per byte: 8 data bits, the ACK
	// bit and margin for clock stretching.
	bitsPerByte = 12
)

type Options struct {
	Speed        physic.Frequency
	MaxOperation int
	MinTimeout   time.Duration
	BusyWait     time.Duration
	Poll         time.Duration
	Recovery     Recovery
	Logger       *slog.Logger
	OS           osal.OS
}

type Option func(*Options)

func WithSpeed(f physic.Frequency) Option {
	return func(o *Options) {
		o.Speed = f
	}
}

// WithMaxOperation sizes the command ring; longer operation lists fail with ErrBuffer.
func WithMaxOperation(n int) Option {
	return func(o *Options) {
		o.MaxOperation = n
	}
}

// WithMinTimeout sets a floor for the per-transaction timeout.
func WithMinTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.MinTimeout = d
	}
}

func WithBusyWait(d time.Duration) Option {
	return func(o *Options) {
		o.BusyWait = d
	}
}

// WithPollInterval bounds how long the issuer sleeps between state checks
// when no notification arrives.
func WithPollInterval(d time.Duration) Option {
	return func(o *Options) {
		o.Poll = d
	}
}

func WithRecovery(r Recovery) Option {
	return func(o *Options) {
		o.Recovery = r
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

func WithOS(os osal.OS) Option {
	return func(o *Options) {
		o.OS = os
	}
}

func defaultOptions() Options {
	return Options{
		Speed:        DefaultSpeed,
		MaxOperation: DefaultMaxOperation,
		MinTimeout:   DefaultMinTimeout,
		BusyWait:     DefaultBusyWait,
		Recovery:     RecoverStop,
		OS:           osal.Std{},
	}
}
