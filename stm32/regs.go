// Package stm32 drives the I2C1/I2C2 blocks of STM32F1 microcontrollers
// (RM0008 section 26) for the interrupt-driven engine in package i2c.
package stm32

// Reg is a register offset inside one I2C block.
type Reg uint32

const (
	CR1   Reg = 0x00
	CR2   Reg = 0x04
	OAR1  Reg = 0x08
	OAR2  Reg = 0x0C
	DR    Reg = 0x10
	SR1   Reg = 0x14
	SR2   Reg = 0x18
	CCR   Reg = 0x1C
	TRISE Reg = 0x20
)

func (r Reg) String() string {
	switch r {
	case CR1:
		return "CR1"
	case CR2:
		return "CR2"
	case OAR1:
		return "OAR1"
	case OAR2:
		return "OAR2"
	case DR:
		return "DR"
	case SR1:
		return "SR1"
	case SR2:
		return "SR2"
	case CCR:
		return "CCR"
	case TRISE:
		return "TRISE"
	default:
		return "?"
	}
}

// CR1 bits
const (
	CR1_PE    = 1 << 0
	CR1_SMBUS = 1 << 1
	CR1_START = 1 << 8
	CR1_STOP  = 1 << 9
	CR1_ACK   = 1 << 10
	CR1_POS   = 1 << 11
	CR1_PEC   = 1 << 12
	CR1_SWRST = 1 << 15
)

// CR2 bits
const (
	CR2_FREQ_Msk = 0x3F
	CR2_ITERREN  = 1 << 8
	CR2_ITEVTEN  = 1 << 9
	CR2_ITBUFEN  = 1 << 10
)

// SR1 bits
const (
	SR1_SB       = 1 << 0
	SR1_ADDR     = 1 << 1
	SR1_BTF      = 1 << 2
	SR1_ADD10    = 1 << 3
	SR1_STOPF    = 1 << 4
	SR1_RXNE     = 1 << 6
	SR1_TXE      = 1 << 7
	SR1_BERR     = 1 << 8
	SR1_ARLO     = 1 << 9
	SR1_AF       = 1 << 10
	SR1_OVR      = 1 << 11
	SR1_PECERR   = 1 << 12
	SR1_TIMEOUT  = 1 << 14
	SR1_SMBALERT = 1 << 15

	SR1_Errors = SR1_BERR | SR1_ARLO | SR1_AF | SR1_OVR | SR1_PECERR | SR1_TIMEOUT | SR1_SMBALERT
)

// SR2 bits
const (
	SR2_MSL  = 1 << 0
	SR2_BUSY = 1 << 1
	SR2_TRA  = 1 << 2
)

// CCR bits
const (
	CCR_Msk  = 0xFFF
	CCR_DUTY = 1 << 14
	CCR_FS   = 1 << 15
)

// Base addresses on the APB1 bus.
const (
	I2C1Base = 0x40005400
	I2C2Base = 0x40005800
)

// Registers gives word access to one I2C block. Reads may have side effects
// (SR1 followed by SR2 clears ADDR, reading DR clears RXNE) exactly like the
// hardware.
type Registers interface {
	Load(r Reg) uint32
	Store(r Reg, v uint32)
}

// Stealer is implemented by register views that serialise thread access
// against interrupt handlers; Steal returns the view for interrupt context.
type Stealer interface {
	Steal() Registers
}
