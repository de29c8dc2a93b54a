package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

const firmwarePackage = "./cmd/firmware"

func FirmwareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "firmware",
		Short: "Build or flash the example bluepill firmware with TinyGo",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := cmd.Flags().GetString("target")
			if err != nil {
				return fmt.Errorf("could not get target flag: %w", err)
			}
			output, err := cmd.Flags().GetString("output")
			if err != nil {
				return fmt.Errorf("could not get output flag: %w", err)
			}
			flash, err := cmd.Flags().GetBool("flash")
			if err != nil {
				return fmt.Errorf("could not get flash flag: %w", err)
			}
			return tinygo(cmd.Context(), target, output, flash)
		},
	}
	cmd.Flags().String("target", "bluepill", "tinygo target")
	cmd.Flags().String("output", "dist/firmware.hex", "output image")
	cmd.Flags().Bool("flash", false, "flash the board instead of building an image")
	return cmd
}

func tinygo(ctx context.Context, target, output string, flash bool) error {
	if _, err := exec.LookPath("tinygo"); err != nil {
		slog.Error("tinygo not found in PATH, see https://tinygo.org/getting-started/install/")
		return fmt.Errorf("tinygo not installed: %w", err)
	}
	args := []string{"build", "-target", target, "-o", output, firmwarePackage}
	if flash {
		args = []string{"flash", "-target", target, firmwarePackage}
	}
	slog.Info("Running tinygo", "args", args)
	c := exec.CommandContext(ctx, "tinygo", args...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("tinygo %s failed: %w", args[0], err)
	}
	if !flash {
		slog.Info("Firmware built", "output", output)
	}
	return nil
}
