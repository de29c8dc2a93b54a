package adapter

import (
	"context"
	"fmt"
	"sync"

	gobot "gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/f1hal"
	"github.com/mklimuk/f1hal/i2c"
)

// GobotBus runs transactions over a gobot I2C connector, such as a single
// board computer adaptor. Gobot connections cannot hold the bus between
// segments, so each segment is its own bus transfer.
type GobotBus struct {
	mx    sync.Mutex
	conn  gobot.Connector
	bus   int
	conns map[uint16]gobot.Connection
}

var _ f1hal.Transactor = &GobotBus{}

// NewGobotBus uses bus number bus, or the connector's default when negative.
func NewGobotBus(conn gobot.Connector, bus int) *GobotBus {
	if bus < 0 {
		bus = conn.DefaultI2cBus()
	}
	return &GobotBus{conn: conn, bus: bus, conns: map[uint16]gobot.Connection{}}
}

func (g *GobotBus) connection(addr uint16) (gobot.Connection, error) {
	if c, ok := g.conns[addr]; ok {
		return c, nil
	}
	c, err := g.conn.GetI2cConnection(int(addr), g.bus)
	if err != nil {
		return nil, fmt.Errorf("could not open connection to %#02x on bus %d: %w", addr, g.bus, err)
	}
	g.conns[addr] = c
	return c, nil
}

func (g *GobotBus) Transaction(ctx context.Context, addr f1hal.Address, ops ...f1hal.Operation) error {
	if addr.TenBit {
		return fmt.Errorf("%w: 10-bit address %s", ErrCommandUnsupported, addr)
	}
	g.mx.Lock()
	defer g.mx.Unlock()
	c, err := g.connection(addr.Value)
	if err != nil {
		return err
	}
	empty := true
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(op.Buf) == 0 {
			if op.Read {
				return i2c.ErrBuffer
			}
			continue
		}
		empty = false
		if op.Read {
			_, err = c.Read(op.Buf)
		} else {
			_, err = c.Write(op.Buf)
		}
		if err != nil {
			return fmt.Errorf("transfer with %s failed: %w", addr, err)
		}
	}
	if empty {
		// probe
		_, err = c.Read(make([]byte, 1))
		if err != nil {
			return fmt.Errorf("%w: %v", i2c.ErrNackAddress, err)
		}
	}
	return nil
}

func (g *GobotBus) Close() error {
	g.mx.Lock()
	defer g.mx.Unlock()
	var first error
	for a, c := range g.conns {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
		delete(g.conns, a)
	}
	return first
}
