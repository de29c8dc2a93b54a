package i2c

// CommandKind tags the entries passed from the issuer to the interrupt handler.
type CommandKind uint8

const (
	CmdSlaveAddr CommandKind = iota + 1
	CmdSlaveAddr10
	CmdWrite
	CmdWriteEnd
	CmdRead
	CmdReadBuf
)

func (k CommandKind) String() string {
	switch k {
	case CmdSlaveAddr:
		return "SlaveAddr"
	case CmdSlaveAddr10:
		return "SlaveAddr10"
	case CmdWrite:
		return "Write"
	case CmdWriteEnd:
		return "WriteEnd"
	case CmdRead:
		return "Read"
	case CmdReadBuf:
		return "ReadBuf"
	default:
		return "Invalid"
	}
}

// Command is one protocol step queued for the interrupt handler.
//
// Buf references the caller's memory directly. The issuer stays blocked until
// the handler reaches a terminal state, so the slice outlives every access.
type Command struct {
	Kind CommandKind
	Addr uint16
	Buf  []byte
	// Len is the total byte count of a read group.
	Len int
	// Last marks a read group that ends the transaction (STOP rather than
	// repeated START after its final byte).
	Last bool
}
