package sim

import (
	"sync"

	"github.com/mklimuk/f1hal"
)

// Slave is a device model attached to the simulated bus.
type Slave interface {
	Address() f1hal.Address
	// Start is called when the slave acknowledges its address.
	Start(read bool)
	// Write delivers a byte from the master and reports whether it is acknowledged.
	Write(b byte) bool
	// Read returns the next byte for the master.
	Read() byte
	Stop()
}

// RegisterSlave models the common register-file device: the first byte
// written after addressing selects the register, further bytes are stored
// with auto-increment, and reads return registers from the pointer onwards.
type RegisterSlave struct {
	mx        sync.Mutex
	addr      f1hal.Address
	regs      [256]byte
	ptr       byte
	expectPtr bool
	writes    int
}

func NewRegisterSlave(addr f1hal.Address, regs map[uint8]uint8) *RegisterSlave {
	s := &RegisterSlave{addr: addr}
	for r, v := range regs {
		s.regs[r] = v
	}
	return s
}

func (s *RegisterSlave) Address() f1hal.Address { return s.addr }

func (s *RegisterSlave) Start(read bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if !read {
		s.expectPtr = true
	}
}

func (s *RegisterSlave) Write(b byte) bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.expectPtr {
		s.ptr = b
		s.expectPtr = false
		return true
	}
	s.regs[s.ptr] = b
	s.ptr++
	s.writes++
	return true
}

func (s *RegisterSlave) Read() byte {
	s.mx.Lock()
	defer s.mx.Unlock()
	v := s.regs[s.ptr]
	s.ptr++
	return v
}

func (s *RegisterSlave) Stop() {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.expectPtr = false
}

func (s *RegisterSlave) Reg(r uint8) byte {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.regs[r]
}

func (s *RegisterSlave) SetReg(r uint8, v byte) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.regs[r] = v
}

// Writes counts register bytes stored since creation.
func (s *RegisterSlave) Writes() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.writes
}
