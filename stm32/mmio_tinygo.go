//go:build tinygo

package stm32

import (
	"runtime/volatile"
	"unsafe"
)

// MMIO accesses a memory-mapped I2C block. Thread and interrupt context use
// the same view: on a single core the engine disables the peripheral
// interrupts around every multi-register sequence it runs from thread context.
type MMIO uintptr

var (
	I2C1 = MMIO(I2C1Base)
	I2C2 = MMIO(I2C2Base)
)

func (m MMIO) Load(r Reg) uint32 {
	return volatile.LoadUint32((*uint32)(unsafe.Pointer(uintptr(m) + uintptr(r))))
}

func (m MMIO) Store(r Reg, v uint32) {
	volatile.StoreUint32((*uint32)(unsafe.Pointer(uintptr(m)+uintptr(r))), v)
}
