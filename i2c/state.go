package i2c

import "sync/atomic"

// Work is the progress state shared by the issuer and the interrupt handler.
type Work uint32

const (
	WorkStop Work = iota
	WorkStart
	WorkAddr
	WorkData
	WorkSuccess
)

func (w Work) String() string {
	switch w {
	case WorkStop:
		return "Stop"
	case WorkStart:
		return "Start"
	case WorkAddr:
		return "Addr"
	case WorkData:
		return "Data"
	case WorkSuccess:
		return "Success"
	default:
		return "Invalid"
	}
}

type workCell struct {
	v atomic.Uint32
}

func (c *workCell) Load() Work   { return Work(c.v.Load()) }
func (c *workCell) Store(w Work) { c.v.Store(uint32(w)) }

// errorCell keeps the first error recorded since the last Clear.
type errorCell struct {
	v atomic.Uint32
}

func (c *errorCell) Set(e Error) {
	c.v.CompareAndSwap(0, encode(e))
}

func (c *errorCell) Load() (Error, bool) {
	return decode(c.v.Load())
}

func (c *errorCell) Clear() {
	c.v.Store(0)
}

type step uint8

// Declaration order matters: the handler wakes the issuer once step >= stepRead.
const (
	stepPrepareWrite step = iota
	stepWrite
	stepPrepareRead
	stepRead
	stepEnd
)
