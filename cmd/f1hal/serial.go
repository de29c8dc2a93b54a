package main

import (
	"bufio"
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.bug.st/serial"

	"github.com/mklimuk/f1hal/cmd/f1hal/console"
	"github.com/mklimuk/f1hal/halctx"
)

var serialConsoleCmd = cli.Command{
	Name:  "console",
	Usage: "stream the UART log of the example firmware",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Value:   "/dev/ttyUSB0",
		},
		&cli.IntFlag{
			Name:    "baud",
			Aliases: []string{"b"},
			Value:   115200,
		},
		&cli.BoolFlag{
			Name:  "list",
			Usage: "list serial ports and exit",
		},
	},
	Action: func(c *cli.Context) error {
		if c.Bool("list") {
			ports, err := serial.GetPortsList()
			if err != nil {
				return console.Exit(1, "could not list ports: %s", console.Red(err))
			}
			for _, p := range ports {
				console.PInfof(console.PictoPlug, "%s", p)
			}
			return nil
		}
		port, err := serial.Open(c.String("port"), &serial.Mode{BaudRate: c.Int("baud")})
		if err != nil {
			return console.Exit(1, "could not open %s: %s", c.String("port"), console.Red(err))
		}
		ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			_ = port.Close()
		}()
		halctx.Logger(ctx).Debug("streaming serial console", "port", c.String("port"), "baud", c.Int("baud"))
		err = stream(ctx, bufio.NewScanner(port))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		return nil
	},
}

func stream(ctx context.Context, sc *bufio.Scanner) error {
	for sc.Scan() {
		console.Printf("%s\n", sc.Text())
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serial read failed: %w", err)
	}
	return nil
}
