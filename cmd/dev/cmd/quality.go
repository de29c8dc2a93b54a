package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gophertribe/devtool/test"
	"github.com/magefile/mage/sh"
	"github.com/spf13/cobra"
)

// enginePackages share state with interrupt handlers and always run under
// the race detector.
var enginePackages = []string{"./ringbuf/...", "./osal/...", "./i2c/...", "./sim/..."}

func TestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run unit tests; engine packages run with the race detector",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := cmd.Flags().GetBool("all")
			if err != nil {
				return fmt.Errorf("could not get all flag: %w", err)
			}
			if all {
				err = test.Test()
				if err != nil {
					return fmt.Errorf("failed to run tests: %w", err)
				}
			}
			race := append([]string{"test", "-race", "-count=1"}, enginePackages...)
			err = sh.RunV("go", race...)
			if err != nil {
				return fmt.Errorf("race tests failed: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().Bool("all", true, "run the whole module before the race pass")
	return cmd
}

func LintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Run linting",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := test.Lint()
			if err != nil {
				return fmt.Errorf("failed to run linting: %w", err)
			}
			return nil
		},
	}
	return cmd
}

// IntegrationTestCmd replays every script under testdata/scripts through the
// CLI against the simulated board of the same name in testdata/boards.
func IntegrationTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integration-test",
		Short: "Replay the YAML script fixtures on simulated boards",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cmd.Flags().GetString("testdata")
			if err != nil {
				return fmt.Errorf("could not get testdata flag: %w", err)
			}
			scripts, err := filepath.Glob(filepath.Join(dir, "scripts", "*.yaml"))
			if err != nil {
				return fmt.Errorf("could not list scripts: %w", err)
			}
			if len(scripts) == 0 {
				return fmt.Errorf("no scripts found in %s", dir)
			}
			for _, script := range scripts {
				board := filepath.Join(dir, "boards", filepath.Base(script))
				slog.Info("replaying", "script", script, "board", board)
				err = sh.RunV("go", "run", "./cmd/f1hal", "sim", "run", "--board", board, "--script", script)
				if err != nil {
					return fmt.Errorf("script %s failed: %w", script, err)
				}
			}
			slog.Info("integration replay passed", "scripts", len(scripts))
			return nil
		},
	}
	cmd.Flags().String("testdata", "testdata", "directory holding boards/ and scripts/")
	return cmd
}
