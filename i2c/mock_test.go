package i2c

import (
	"github.com/stretchr/testify/mock"

	"github.com/mklimuk/f1hal"
)

type MockPeriph struct {
	mock.Mock
}

func (m *MockPeriph) Steal() Periph { return m }

func (m *MockPeriph) DisableAllInterrupts() { m.Called() }

func (m *MockPeriph) DisableDataInterrupt() { m.Called() }

func (m *MockPeriph) SendStart() { m.Called() }

func (m *MockPeriph) SendStop() { m.Called() }

func (m *MockPeriph) IsStopped() bool {
	return m.Called().Bool(0)
}

func (m *MockPeriph) PrepareWrite(addr f1hal.Address, subStep *uint8) Progress {
	return m.Called(addr).Get(0).(Progress)
}

func (m *MockPeriph) PrepareRead(addr f1hal.Address, total int, last bool, subStep *uint8) Progress {
	return m.Called(addr, total, last).Get(0).(Progress)
}

func (m *MockPeriph) WriteWith(next func() (byte, bool)) Progress {
	return m.Called().Get(0).(Progress)
}

func (m *MockPeriph) Receive(left int, last bool) (byte, bool) {
	args := m.Called(left, last)
	return args.Get(0).(byte), args.Bool(1)
}

func (m *MockPeriph) GetAndCleanError() (Error, bool) {
	args := m.Called()
	return args.Get(0).(Error), args.Bool(1)
}

func (m *MockPeriph) GetFlag(f Flag) bool {
	return m.Called(f).Bool(0)
}

func (m *MockPeriph) HandleError(e Error) { m.Called(e) }

func (m *MockPeriph) SoftReset() { m.Called() }
