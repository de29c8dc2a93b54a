package main

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/f1hal/cmd/f1hal/console"
	"github.com/mklimuk/f1hal/halctx"
	"github.com/mklimuk/f1hal/i2c"
	"github.com/mklimuk/f1hal/script"
	"github.com/mklimuk/f1hal/sim"
)

var simCmd = cli.Command{
	Name:  "sim",
	Usage: "run the interrupt-driven engine against a simulated STM32F1 board",
	Subcommands: cli.Commands{
		&simRunCmd,
		&simScanCmd,
	},
}

var boardFlag = &cli.StringFlag{
	Name:    "board",
	Aliases: []string{"b"},
	Usage:   "board description (YAML); defaults to a bare 36MHz board",
}

func startBoard(c *cli.Context) (*sim.Board, error) {
	cfg := sim.DefaultBoardConfig()
	if path := c.String("board"); path != "" {
		var err error
		cfg, err = sim.LoadBoardConfig(path)
		if err != nil {
			return nil, console.Exit(1, "board error: %s", console.Red(err))
		}
	}
	b, err := sim.NewBoard(cfg, i2c.WithLogger(halctx.Logger(c.Context)))
	if err != nil {
		return nil, console.Exit(1, "could not start board: %s", console.Red(err))
	}
	return b, nil
}

var simRunCmd = cli.Command{
	Name:  "run",
	Usage: "run a transaction script",
	Flags: []cli.Flag{
		boardFlag,
		&cli.StringFlag{
			Name:     "script",
			Aliases:  []string{"s"},
			Required: true,
		},
	},
	Action: func(c *cli.Context) error {
		s, err := script.Load(c.String("script"))
		if err != nil {
			return console.Exit(1, "script error: %s", console.Red(err))
		}
		b, err := startBoard(c)
		if err != nil {
			return err
		}
		defer b.Close()
		var rec recorder
		runErr := s.Run(c.Context, b.Shared, rec.report)
		stats := b.Controller.Stats()
		halctx.Logger(c.Context).Debug("simulation finished",
			"starts", stats.Starts, "stops", stats.Stops, "soft_resets", stats.SoftResets, "nacks", stats.Nacks)
		if err := rec.flush(); err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		if runErr != nil {
			return console.Exit(2, "script failed: %s", console.Red(runErr))
		}
		return nil
	},
}

var simScanCmd = cli.Command{
	Name:  "scan",
	Usage: "probe every 7-bit address on the simulated bus",
	Flags: []cli.Flag{boardFlag},
	Action: func(c *cli.Context) error {
		b, err := startBoard(c)
		if err != nil {
			return err
		}
		defer b.Close()
		return scan(c, b.Shared)
	},
}
