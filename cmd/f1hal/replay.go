package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/f1hal"
	"github.com/mklimuk/f1hal/adapter"
	"github.com/mklimuk/f1hal/cmd/f1hal/console"
	"github.com/mklimuk/f1hal/i2c"
	"github.com/mklimuk/f1hal/script"
)

var targetFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "target",
		Aliases: []string{"t"},
		Value:   "periph",
		Usage:   "periph, gobot or mcp2221",
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"d"},
		Usage:   "periph bus name, e.g. /dev/i2c-1; empty picks the first bus",
	},
	&cli.IntFlag{
		Name:  "bus",
		Value: -1,
		Usage: "gobot bus number; negative picks the adaptor default",
	},
	&cli.IntFlag{
		Name:  "index",
		Usage: "MCP2221 index when several are attached",
	},
}

type closer func() error

func openTarget(c *cli.Context) (f1hal.Transactor, closer, error) {
	switch c.String("target") {
	case "periph":
		b, err := i2c.NewHostBus(c.String("device"))
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	case "gobot":
		npi := nanopi.NewNeoAdaptor()
		err := npi.Connect()
		if err != nil {
			return nil, nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		g := adapter.NewGobotBus(npi, c.Int("bus"))
		return g, func() error {
			return errors.Join(g.Close(), npi.Finalize())
		}, nil
	case "mcp2221":
		m, err := adapter.OpenMCP2221(c.Int("index"))
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown target %q", c.String("target"))
}

var replayCmd = cli.Command{
	Name:  "replay",
	Usage: "replay a transaction script on real hardware",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:     "script",
			Aliases:  []string{"s"},
			Required: true,
		},
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "do not ask for confirmation",
		},
	}, targetFlags...),
	Action: func(c *cli.Context) error {
		s, err := script.Load(c.String("script"))
		if err != nil {
			return console.Exit(1, "script error: %s", console.Red(err))
		}
		if !c.Bool("yes") {
			ok, err := console.YesOrNo(fmt.Sprintf("replay %d transactions on %s?", len(s.Transactions), c.String("target")))
			if err != nil && !errors.Is(err, io.EOF) {
				return console.Exit(1, "prompt error: %s", console.Red(err))
			}
			if !ok {
				console.PInfof(console.PictoStop, "aborted")
				return nil
			}
		}
		t, closeFn, err := openTarget(c)
		if err != nil {
			return console.Exit(1, "target error: %s", console.Red(err))
		}
		defer func() {
			if err := closeFn(); err != nil {
				console.Warnf("could not close target: %s", err)
			}
		}()
		var rec recorder
		runErr := s.Run(c.Context, t, rec.report)
		if err := rec.flush(); err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		if runErr != nil {
			return console.Exit(2, "script failed: %s", console.Red(runErr))
		}
		console.PInfof(console.PictoFinish, "done")
		return nil
	},
}

var scanCmd = cli.Command{
	Name:  "scan",
	Usage: "probe every 7-bit address on a real bus",
	Flags: targetFlags,
	Action: func(c *cli.Context) error {
		t, closeFn, err := openTarget(c)
		if err != nil {
			return console.Exit(1, "target error: %s", console.Red(err))
		}
		defer func() { _ = closeFn() }()
		return scan(c, t)
	},
}

func scan(c *cli.Context, t f1hal.Transactor) error {
	found, err := i2c.Scan(c.Context, t)
	for _, a := range found {
		console.PInfof(console.PictoPin, "%s", console.Green(a))
	}
	if len(found) == 0 {
		console.PInfof(console.PictoGhost, "no device answered")
	}
	if err != nil {
		return console.Exit(1, "scan stopped: %s", console.Red(err))
	}
	return nil
}
