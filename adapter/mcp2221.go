// Package adapter drives USB-to-I2C bridges as f1hal transactors so the same
// device drivers and scripts run against real hardware from a host.
package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/f1hal"
	"github.com/mklimuk/f1hal/halctx"
	"github.com/mklimuk/f1hal/i2c"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

const (
	reportSize = 64
	// maxChunk is the payload that fits one HID report.
	maxChunk = 60
	// clock is the MCP2221 I2C engine reference.
	clock = 12_000_000
)

const (
	cmdStatus         = 0x10
	cmdGetData        = 0x40
	cmdWrite          = 0x90
	cmdRead           = 0x91
	cmdWriteRestart   = 0x92
	cmdReadRestart    = 0x93
	cmdWriteNoStop    = 0x94
	statusCancel      = 0x10
	statusSetSpeed    = 0x20
	statusBusy        = 0x01
	getDataEngineFail = 0x41
	slaveNackBit      = 0x40
	stateAddrNack     = 0x25
)

var ErrCommandUnsupported = errors.New("unsupported command")
var ErrCommandFailed = errors.New("command failed")

// Port is an open HID endpoint.
type Port interface {
	io.ReadWriteCloser
}

type MCP2221Status struct {
	I2CDataBufferCounter   int
	I2CSpeedDivider        int
	I2CTimeout             int
	CurrentAddress         string
	LastWriteRequestedSize uint16
	LastWriteSentSize      uint16
	ReadPending            int
	State                  byte
	SlaveNack              bool
}

// MCP2221 is a Microchip USB-to-I2C bridge.
type MCP2221 struct {
	mx           sync.Mutex
	port         Port
	request      []byte
	response     []byte
	responseWait time.Duration
}

var _ f1hal.Transactor = &MCP2221{}

type MCP2221Opt func(*MCP2221)

// WithResponseWait sets the pause between a request and reading its report.
func WithResponseWait(d time.Duration) MCP2221Opt {
	return func(m *MCP2221) {
		m.responseWait = d
	}
}

// Enumerate lists the attached bridges.
func Enumerate() []hid.DeviceInfo {
	return hid.Enumerate(VendorID, ProductID)
}

// OpenMCP2221 opens the index-th attached bridge.
func OpenMCP2221(index int, opts ...MCP2221Opt) (*MCP2221, error) {
	if !hid.Supported() {
		return nil, fmt.Errorf("HID is not supported on this platform")
	}
	devs := Enumerate()
	if len(devs) == 0 {
		return nil, fmt.Errorf("MCP2221 device not found")
	}
	if index < 0 || index >= len(devs) {
		return nil, fmt.Errorf("no device with id %d", index)
	}
	dev, err := devs[index].Open()
	if err != nil {
		return nil, fmt.Errorf("error opening device: %w", err)
	}
	return NewMCP2221(dev, opts...), nil
}

func NewMCP2221(port Port, opts ...MCP2221Opt) *MCP2221 {
	m := &MCP2221{
		port:         port,
		request:      make([]byte, reportSize),
		response:     make([]byte, reportSize),
		responseWait: 5 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (d *MCP2221) Close() error {
	return d.port.Close()
}

// Transaction supports what the bridge can express: a write, a read, or a
// write followed by a repeated-START read, each up to one report long.
func (d *MCP2221) Transaction(ctx context.Context, addr f1hal.Address, ops ...f1hal.Operation) error {
	if addr.TenBit {
		return fmt.Errorf("%w: 10-bit address %s", ErrCommandUnsupported, addr)
	}
	var w, r []byte
	for _, op := range ops {
		switch {
		case len(op.Buf) == 0:
			if op.Read {
				return i2c.ErrBuffer
			}
		case op.Read:
			r = append(r, op.Buf...)
		default:
			if r != nil {
				return fmt.Errorf("%w: write after read", ErrCommandUnsupported)
			}
			w = append(w, op.Buf...)
		}
	}
	if len(w) > maxChunk || len(r) > maxChunk {
		return fmt.Errorf("%w: segment longer than %d bytes", ErrCommandUnsupported, maxChunk)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	a := byte(addr.Value)
	if r == nil {
		return d.write(ctx, cmdWrite, a, w)
	}
	readCmd := byte(cmdRead)
	if len(w) > 0 {
		if err := d.write(ctx, cmdWriteNoStop, a, w); err != nil {
			return err
		}
		readCmd = cmdReadRestart
	}
	if err := d.read(ctx, readCmd, a, r); err != nil {
		return err
	}
	// scatter back into the caller's segments
	off := 0
	for _, op := range ops {
		if op.Read {
			off += copy(op.Buf, r[off:])
		}
	}
	return nil
}

func (d *MCP2221) write(ctx context.Context, cmd byte, address byte, buffer []byte) error {
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address << 1
	copy(d.request[4:], buffer)
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("write to %x failed: %w", address, err)
	}
	if d.response[1] == statusBusy {
		halctx.Logger(ctx).Debug("adapter busy")
		return i2c.ErrBusy
	}
	return d.checkAck(ctx)
}

func (d *MCP2221) read(ctx context.Context, cmd byte, address byte, buffer []byte) error {
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address<<1 + 1
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	if d.response[1] == statusBusy {
		return i2c.ErrBusy
	}
	d.resetBuffers()
	d.request[0] = cmdGetData
	err = d.send(ctx)
	if err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == getDataEngineFail {
		return i2c.ErrNackAddress
	}
	if d.response[3] == 127 || int(d.response[3]) != len(buffer) {
		return fmt.Errorf("invalid data size byte; expected %d, got %d", len(buffer), d.response[3])
	}
	copy(buffer, d.response[4:])
	return nil
}

// checkAck maps the slave ACK flag of the engine status to a NACK error.
func (d *MCP2221) checkAck(ctx context.Context) error {
	st, err := d.status(ctx, 0, 0)
	if err != nil {
		return err
	}
	if st.SlaveNack {
		_, _ = d.status(ctx, statusCancel, 0)
		if st.LastWriteSentSize == 0 {
			return i2c.ErrNackAddress
		}
		return i2c.ErrNackData
	}
	return nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.status(ctx, 0, 0)
}

// ReleaseBus cancels the current engine transfer, freeing a stuck bus.
func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.status(ctx, statusCancel, 0)
}

// SetSpeed programs the engine clock divider.
func (d *MCP2221) SetSpeed(ctx context.Context, hz int) error {
	if hz < 50_000 || hz > 400_000 {
		return fmt.Errorf("unsupported bus speed %d Hz", hz)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	st, err := d.status(ctx, statusSetSpeed, byte(clock/hz-3))
	if err != nil {
		return err
	}
	if d.response[3] != statusSetSpeed {
		return fmt.Errorf("%w: speed not accepted while a transfer is in progress (divider %d)", ErrCommandFailed, st.I2CSpeedDivider)
	}
	return nil
}

func (d *MCP2221) status(ctx context.Context, action, divider byte) (*MCP2221Status, error) {
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[2] = action
	if action == statusSetSpeed {
		d.request[3] = statusSetSpeed
		d.request[4] = divider
	}
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9: Lower byte (16-bit value) of the requested I2C transfer length
		10: Higher byte (16-bit value) of the requested I2C transfer length
		11:	Lower byte (16-bit value) of the already transferred (through I2C) number of bytes
		12:	Higher byte (16-bit value) of the already transferred (through I2C) number of bytes
		13:	Internal I2C data buffer counter
		14: Current I2C communication speed divider value
		15: Current I2C timeout value
		16:	Lower byte (16-bit value) of the I2C address being used
		8: I2C engine state
		17:	Higher byte (16-bit value) of the I2C address being used
		20: bit 6 set when the slave did not acknowledge
	*/
	status := &MCP2221Status{
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
		State:                buffer[8],
		SlaveNack:            buffer[8] == stateAddrNack || buffer[20]&slaveNackBit != 0,
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

func (d *MCP2221) send(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log := halctx.Logger(ctx)
	verbose := halctx.IsVerbose(ctx)
	if verbose {
		log.Debug("sending message to adapter", "report", hex.EncodeToString(d.request[:8]))
	}
	n, err := d.port.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short write: %d", n)
	}
	if d.responseWait > 0 {
		time.Sleep(d.responseWait)
	}
	n, err = d.port.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short read: %d", n)
	}
	if d.response[0] != d.request[0] {
		return fmt.Errorf("%w: response to %#02x for request %#02x", ErrCommandFailed, d.response[0], d.request[0])
	}
	if verbose {
		log.Debug("read message from adapter", "report", hex.EncodeToString(d.response[:8]))
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	clear(d.request)
	clear(d.response)
}
