package i2c

import "github.com/mklimuk/f1hal"

// Progress is the outcome of one non-blocking peripheral step.
type Progress uint8

const (
	// Pending means the hardware is not ready; retry on the next interrupt.
	Pending Progress = iota
	// Progressed means a sub-step was performed but the phase is not complete.
	Progressed
	// Done means the phase is complete.
	Done
)

func (p Progress) String() string {
	switch p {
	case Progressed:
		return "Progressed"
	case Done:
		return "Done"
	default:
		return "Pending"
	}
}

// Flag names the status bits the engine may query.
type Flag uint8

const (
	FlagStartBit Flag = iota
	FlagAddrSent
	FlagAddr10
	FlagByteTransferFinished
	FlagTxEmpty
	FlagRxNotEmpty
	FlagBusy
	FlagMaster
)

// Periph is the register-level capability set the engine drives. Bus calls it
// from the thread context; InterruptHandler and ErrorInterruptHandler call the
// handle returned by Steal from interrupt context.
type Periph interface {
	// Steal returns a handle for interrupt context. Implementations that
	// serialise thread access against interrupts return a handle that skips
	// that serialisation.
	Steal() Periph

	DisableAllInterrupts()
	// DisableDataInterrupt stops buffer (TXE/RXNE) interrupts and keeps
	// event and error interrupts armed.
	DisableDataInterrupt()
	// SendStart arms event and error interrupts and requests a (repeated) START.
	SendStart()
	SendStop()
	IsStopped() bool

	// PrepareWrite drives the address phase for writing. subStep is owned by
	// the caller and starts at zero.
	PrepareWrite(addr f1hal.Address, subStep *uint8) Progress
	// PrepareRead drives the address phase for reading total bytes. last
	// tells whether a STOP (rather than a repeated START) follows the group.
	PrepareRead(addr f1hal.Address, total int, last bool, subStep *uint8) Progress
	// WriteWith transmits the next byte produced by next. It returns Done once
	// next is exhausted and the last byte left the shift register.
	WriteWith(next func() (byte, bool)) Progress
	// Receive returns the next received byte. left counts the bytes still
	// expected in the group including this one.
	Receive(left int, last bool) (byte, bool)

	GetAndCleanError() (Error, bool)
	GetFlag(f Flag) bool
	// HandleError runs the recovery hook after a failed transaction.
	HandleError(e Error)
	SoftReset()
}

// HeaderByte returns the first byte sent after START: the shifted 7-bit
// address with the direction bit, or the 10-bit header 11110xx plus direction.
func HeaderByte(addr f1hal.Address, read bool) byte {
	var h byte
	if addr.TenBit {
		h = 0xF0 | byte(addr.Value>>7)&0x06
	} else {
		h = byte(addr.Value << 1)
	}
	if read {
		h |= 0x01
	}
	return h
}

// TenBitLow returns the second address byte of a 10-bit write header.
func TenBitLow(addr f1hal.Address) byte {
	return byte(addr.Value)
}
