// Package script replays I2C transactions described in YAML against any
// f1hal.Transactor.
package script

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/f1hal"
)

var ErrMismatch = errors.New("read data does not match expectation")

// Op is one segment: either Write bytes or Read a byte count.
type Op struct {
	Write []byte `yaml:"write,omitempty"`
	Read  int    `yaml:"read,omitempty"`
}

type Transaction struct {
	Name    string   `yaml:"name"`
	Address uint16   `yaml:"address"`
	TenBit  bool     `yaml:"ten_bit"`
	Ops     []Op     `yaml:"ops"`
	Expect  []byte   `yaml:"expect,omitempty"`
	Repeat  int      `yaml:"repeat,omitempty"`
	Delay   Duration `yaml:"delay,omitempty"`
}

// Duration accepts Go duration strings in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	v, err := time.ParseDuration(n.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", n.Value, err)
	}
	*d = Duration(v)
	return nil
}

type Script struct {
	Transactions []Transaction `yaml:"transactions"`
	// ContinueOnError keeps running after a failed transaction.
	ContinueOnError bool `yaml:"continue_on_error"`
}

func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read script: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Script, error) {
	var s Script
	err := yaml.Unmarshal(data, &s)
	if err != nil {
		return nil, fmt.Errorf("could not parse script: %w", err)
	}
	for i, t := range s.Transactions {
		for _, op := range t.Ops {
			if len(op.Write) > 0 && op.Read > 0 {
				return nil, fmt.Errorf("transaction %d (%s): an op either writes or reads", i, t.Name)
			}
		}
	}
	return &s, nil
}

func (t Transaction) address() f1hal.Address {
	if t.TenBit {
		return f1hal.TenBit(t.Address)
	}
	return f1hal.SevenBit(uint8(t.Address))
}

// Result is the outcome of one transaction run.
type Result struct {
	Name     string
	Address  f1hal.Address
	Read     []byte
	Err      error
	Duration time.Duration
}

func (r Result) Hex() string {
	return hex.EncodeToString(r.Read)
}

// Run executes every transaction in order, calling report after each. It
// stops at the first failure unless ContinueOnError is set, and returns the
// first error seen.
func (s *Script) Run(ctx context.Context, t f1hal.Transactor, report func(Result)) error {
	var first error
	for _, tx := range s.Transactions {
		n := tx.Repeat
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := tx.run(ctx, t)
			if report != nil {
				report(res)
			}
			if res.Err != nil {
				if first == nil {
					first = fmt.Errorf("%s: %w", tx.Name, res.Err)
				}
				if !s.ContinueOnError {
					return first
				}
			}
			if tx.Delay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(tx.Delay)):
				}
			}
		}
	}
	return first
}

func (tx Transaction) run(ctx context.Context, t f1hal.Transactor) Result {
	res := Result{Name: tx.Name, Address: tx.address()}
	ops := make([]f1hal.Operation, 0, len(tx.Ops))
	var reads [][]byte
	for _, op := range tx.Ops {
		if op.Read > 0 {
			buf := make([]byte, op.Read)
			reads = append(reads, buf)
			ops = append(ops, f1hal.Read(buf))
			continue
		}
		ops = append(ops, f1hal.Write(op.Write))
	}
	start := time.Now()
	res.Err = t.Transaction(ctx, res.Address, ops...)
	res.Duration = time.Since(start)
	if res.Err != nil {
		return res
	}
	for _, r := range reads {
		res.Read = append(res.Read, r...)
	}
	if tx.Expect != nil && hex.EncodeToString(tx.Expect) != res.Hex() {
		res.Err = fmt.Errorf("%w: got %s, want %x", ErrMismatch, res.Hex(), tx.Expect)
	}
	return res
}
