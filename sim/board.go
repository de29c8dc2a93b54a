package sim

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/f1hal"
	"github.com/mklimuk/f1hal/i2c"
	"github.com/mklimuk/f1hal/stm32"
)

// BoardConfig describes a simulated board: the I2C peripheral setup, the
// slaves on the bus and the faults to inject.
type BoardConfig struct {
	PClk1        uint32        `yaml:"pclk1"`
	Speed        string        `yaml:"speed"`
	FastDuty169  bool          `yaml:"fast_duty_16_9"`
	MaxOperation int           `yaml:"max_operation"`
	MinTimeout   time.Duration `yaml:"min_timeout"`
	BusyWait     time.Duration `yaml:"busy_wait"`
	Recovery     string        `yaml:"recovery"`
	RateLimit    float64       `yaml:"rate_limit"`
	Slaves       []SlaveConfig `yaml:"slaves"`
	Faults       Faults        `yaml:"faults"`
}

type SlaveConfig struct {
	Name      string          `yaml:"name"`
	Address   uint16          `yaml:"address"`
	TenBit    bool            `yaml:"ten_bit"`
	Registers map[uint8]uint8 `yaml:"registers"`
}

func (s SlaveConfig) address() f1hal.Address {
	if s.TenBit {
		return f1hal.TenBit(s.Address)
	}
	return f1hal.SevenBit(uint8(s.Address))
}

func DefaultBoardConfig() BoardConfig {
	return BoardConfig{
		PClk1:      36_000_000,
		Speed:      "100kHz",
		MinTimeout: 100 * time.Millisecond,
		BusyWait:   i2c.DefaultBusyWait,
		Recovery:   i2c.RecoverStop.String(),
	}
}

// LoadBoardConfig reads a YAML board description on top of the defaults.
func LoadBoardConfig(path string) (BoardConfig, error) {
	cfg := DefaultBoardConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read board file: %w", err)
	}
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("could not parse board file %s: %w", path, err)
	}
	return cfg, nil
}

// Board is a running simulation: peripheral model, engine and interrupt
// dispatcher.
type Board struct {
	Controller *Controller
	Periph     *stm32.Periph
	Bus        *i2c.Bus
	Shared     *i2c.SharedBus
	Slaves     map[f1hal.Address]*RegisterSlave

	cancel context.CancelFunc
	done   chan struct{}
}

// NewBoard builds and starts a simulated board. Extra options override the
// ones derived from cfg.
func NewBoard(cfg BoardConfig, opts ...i2c.Option) (*Board, error) {
	var speed physic.Frequency
	if cfg.Speed == "" {
		speed = i2c.DefaultSpeed
	} else if err := speed.Set(cfg.Speed); err != nil {
		return nil, fmt.Errorf("invalid bus speed %q: %w", cfg.Speed, err)
	}
	recovery, ok := i2c.ParseRecovery(cfg.Recovery)
	if cfg.Recovery != "" && !ok {
		return nil, fmt.Errorf("unknown recovery policy %q", cfg.Recovery)
	}
	duty := stm32.Duty2
	if cfg.FastDuty169 {
		duty = stm32.Duty169
	}

	ctrl := NewController()
	slaves := make(map[f1hal.Address]*RegisterSlave, len(cfg.Slaves))
	for _, sc := range cfg.Slaves {
		s := NewRegisterSlave(sc.address(), sc.Registers)
		ctrl.Attach(s)
		slaves[s.Address()] = s
	}
	ctrl.SetFaults(cfg.Faults)

	p := stm32.New(ctrl.Thread(), cfg.PClk1)
	err := p.Configure(speed, duty)
	if err != nil {
		return nil, fmt.Errorf("could not configure peripheral: %w", err)
	}

	base := []i2c.Option{i2c.WithSpeed(speed), i2c.WithRecovery(recovery)}
	if cfg.MaxOperation > 0 {
		base = append(base, i2c.WithMaxOperation(cfg.MaxOperation))
	}
	if cfg.MinTimeout > 0 {
		base = append(base, i2c.WithMinTimeout(cfg.MinTimeout))
	}
	if cfg.BusyWait > 0 {
		base = append(base, i2c.WithBusyWait(cfg.BusyWait))
	}
	bus, evt, errh := i2c.New(p, append(base, opts...)...)
	ctrl.Bind(evt.Handle, errh.Handle)

	var sopts []i2c.SharedBusOpt
	if cfg.RateLimit > 0 {
		sopts = append(sopts, i2c.WithRateLimit(cfg.RateLimit, 1))
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Board{
		Controller: ctrl,
		Periph:     p,
		Bus:        bus,
		Shared:     i2c.NewSharedBus(bus, sopts...),
		Slaves:     slaves,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go func() {
		defer close(b.done)
		ctrl.Run(ctx)
	}()
	return b, nil
}

// Close stops the interrupt dispatcher.
func (b *Board) Close() {
	b.cancel()
	<-b.done
}
