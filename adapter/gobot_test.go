package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gobot "gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/f1hal"
	"github.com/mklimuk/f1hal/i2c"
	"github.com/mklimuk/f1hal/sim"
)

type fakeConn struct {
	gobot.Connection
	slave  *sim.RegisterSlave
	closed bool
}

func (c *fakeConn) Write(b []byte) (int, error) {
	c.slave.Start(false)
	for _, v := range b {
		c.slave.Write(v)
	}
	return len(b), nil
}

func (c *fakeConn) Read(b []byte) (int, error) {
	c.slave.Start(true)
	for i := range b {
		b[i] = c.slave.Read()
	}
	return len(b), nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type fakeConnector struct {
	gobot.Connector
	slaves map[int]*sim.RegisterSlave
	opened map[int]*fakeConn
	bus    int
}

func (f *fakeConnector) GetI2cConnection(address int, bus int) (gobot.Connection, error) {
	f.bus = bus
	s, ok := f.slaves[address]
	if !ok {
		return nil, errors.New("remote I/O error")
	}
	c := &fakeConn{slave: s}
	f.opened[address] = c
	return c, nil
}

func (f *fakeConnector) DefaultI2cBus() int { return 1 }

func TestGobotBus(t *testing.T) {
	slave := sim.NewRegisterSlave(f1hal.SevenBit(0x68), map[uint8]uint8{0x75: 0x68})
	conn := &fakeConnector{slaves: map[int]*sim.RegisterSlave{0x68: slave}, opened: map[int]*fakeConn{}}
	g := NewGobotBus(conn, -1)

	buf := make([]byte, 1)
	require.NoError(t, g.Transaction(context.Background(), f1hal.SevenBit(0x68), f1hal.Write([]byte{0x75}), f1hal.Read(buf)))
	assert.Equal(t, []byte{0x68}, buf)
	assert.Equal(t, 1, conn.bus)

	require.NoError(t, g.Transaction(context.Background(), f1hal.SevenBit(0x68), f1hal.Write([]byte{0x20, 0x01})))
	assert.Equal(t, byte(0x01), slave.Reg(0x20))
	assert.Len(t, conn.opened, 1)

	assert.NoError(t, g.Transaction(context.Background(), f1hal.SevenBit(0x68)))
	assert.Error(t, g.Transaction(context.Background(), f1hal.SevenBit(0x50)))
	assert.ErrorIs(t, g.Transaction(context.Background(), f1hal.SevenBit(0x68), f1hal.Read(nil)), i2c.ErrBuffer)
	assert.ErrorIs(t, g.Transaction(context.Background(), f1hal.TenBit(0x100)), ErrCommandUnsupported)

	require.NoError(t, g.Close())
	assert.True(t, conn.opened[0x68].closed)
}
