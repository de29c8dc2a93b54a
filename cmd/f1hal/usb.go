package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/karalabe/hid"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/f1hal/adapter"
	"github.com/mklimuk/f1hal/cmd/f1hal/console"
)

var usbCmd = cli.Command{
	Name:  "usb",
	Usage: "list USB HID devices and known I2C bridges",
	Subcommands: cli.Commands{
		&usbLsCmd,
		&usbDetectCmd,
	},
}

var usbLsCmd = cli.Command{
	Name: "ls",
	Action: func(c *cli.Context) error {
		devices := hid.Enumerate(0, 0)

		w := tabwriter.NewWriter(os.Stdout, 24, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "PATH\tSERIAL\tVENDOR\tPRODUCT ID\tMANUFACTURER\tPRODUCT\n")

		for _, dev := range devices {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%#x\t%#x\t%s\t%s\n",
				dev.Path, dev.Serial, dev.VendorID, dev.ProductID, dev.Manufacturer, dev.Product)
		}
		_ = w.Flush()
		return nil
	},
}

var usbDetectCmd = cli.Command{
	Name: "detect",
	Action: func(c *cli.Context) error {
		w := tabwriter.NewWriter(os.Stdout, 24, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "INDEX\tVENDOR\tPRODUCT\tDEVICE\tSERIAL\n")
		for i, dev := range adapter.Enumerate() {
			_, _ = fmt.Fprintf(w, "%d\t%#x\t%#x\t%s\t%s\n", i, dev.VendorID, dev.ProductID, "MCP2221", dev.Serial)
		}
		_ = w.Flush()
		return nil
	},
}

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "inspect or reset an MCP2221 bridge",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "index"},
	},
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
	},
}

func withMCP2221(c *cli.Context, fn func(*adapter.MCP2221) (*adapter.MCP2221Status, error)) error {
	a, err := adapter.OpenMCP2221(c.Int("index"))
	if err != nil {
		return console.Exit(1, "adapter error: %s", console.Red(err))
	}
	defer a.Close()
	status, err := fn(a)
	if err != nil {
		return console.Exit(1, "adapter communication error: %s", console.Red(err))
	}
	enc := yaml.NewEncoder(os.Stdout)
	defer enc.Close()
	err = enc.Encode(status)
	if err != nil {
		return console.Exit(1, "encoding error: %s", console.Red(err))
	}
	return nil
}

var mcp2221StatusCmd = cli.Command{
	Name: "status",
	Action: func(c *cli.Context) error {
		return withMCP2221(c, func(a *adapter.MCP2221) (*adapter.MCP2221Status, error) {
			return a.Status(c.Context)
		})
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel the current transfer and free the bus",
	Action: func(c *cli.Context) error {
		return withMCP2221(c, func(a *adapter.MCP2221) (*adapter.MCP2221Status, error) {
			return a.ReleaseBus(c.Context)
		})
	},
}
