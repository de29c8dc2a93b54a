package i2c

import (
	"context"
	"fmt"
	"log/slog"

	periphi2c "periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/mklimuk/f1hal"
)

var _ f1hal.Transactor = &HostBus{}

// HostBus replays transactions on a Linux host I2C adapter through periph.io.
type HostBus struct {
	bus periphi2c.BusCloser
}

func NewHostBus(dev string) (*HostBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return &HostBus{bus: bus}, nil
}

func (b *HostBus) Transaction(ctx context.Context, addr f1hal.Address, ops ...f1hal.Operation) error {
	if addr.TenBit {
		return fmt.Errorf("10-bit address %s not supported by host adapter", addr)
	}
	ps := pairs(ops)
	if len(ps) == 0 {
		// host adapters reject empty messages; probe with a one byte read
		ps = []txPair{{reads: [][]byte{make([]byte, 1)}, n: 1}}
	}
	for _, p := range ps {
		if err := ctx.Err(); err != nil {
			return err
		}
		var r []byte
		if p.n > 0 {
			r = make([]byte, p.n)
		}
		err := b.bus.Tx(addr.Value, p.w, r)
		if err != nil {
			return fmt.Errorf("could not transfer to i2c device %s: %w", addr, err)
		}
		for _, dst := range p.reads {
			r = r[copy(dst, r):]
		}
	}
	return nil
}

func (b *HostBus) Close() error {
	return b.bus.Close()
}

type txPair struct {
	w     []byte
	reads [][]byte
	n     int
}

// pairs groups ops into (write, read) frames, each carried by one periph Tx
// with a repeated START between its halves.
func pairs(ops []f1hal.Operation) []txPair {
	var out []txPair
	var cur txPair
	flush := func() {
		if cur.w != nil || cur.n > 0 {
			out = append(out, cur)
		}
		cur = txPair{}
	}
	for _, op := range ops {
		if len(op.Buf) == 0 {
			continue
		}
		if op.Read {
			cur.reads = append(cur.reads, op.Buf)
			cur.n += len(op.Buf)
			continue
		}
		if cur.n > 0 {
			flush()
		}
		cur.w = append(cur.w, op.Buf...)
	}
	flush()
	return out
}
