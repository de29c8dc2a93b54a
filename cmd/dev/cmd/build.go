package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gophertribe/devtool/build"
)

const (
	cliOutput  = "dist/f1hal"
	cliPackage = "./cmd/f1hal"
	// cgo toolchain for the HID bridge adapter
	buildImage = "gophertribe/gobuild:1.25-bookworm"
)

type buildTarget struct {
	version string
	os      string
	arch    string
}

func (t buildTarget) native() bool {
	return t.os == runtime.GOOS && t.arch == runtime.GOARCH
}

func (t buildTarget) cli() error {
	err := build.GoBuild(cliOutput, cliPackage, build.GoBuildOpts{
		Version:       t.version,
		InjectVersion: true,
		ConfigPackage: "main",
		EnableCgo:     true,
		Arch:          t.arch,
		OS:            t.os,
	})
	if err != nil {
		return fmt.Errorf("could not build %s for %s/%s: %w", cliPackage, t.os, t.arch, err)
	}
	return nil
}

func BuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the f1hal cli and, optionally, the bluepill firmware",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := buildTarget{
				version: cmd.Flag("version").Value.String(),
				os:      cmd.Flag("os").Value.String(),
				arch:    cmd.Flag("arch").Value.String(),
			}
			crossOs := cmd.Flag("cross-os").Value.String()
			crossArch := cmd.Flag("cross-arch").Value.String()
			firmware, err := cmd.Flags().GetBool("firmware")
			if err != nil {
				return fmt.Errorf("could not get firmware flag: %w", err)
			}

			if t.native() {
				if crossOs != "" && crossArch != "" {
					t.os, t.arch = crossOs, crossArch
				}
				if err := t.cli(); err != nil {
					return err
				}
				if firmware {
					return tinygo(cmd.Context(), "bluepill", "dist/firmware.hex", false)
				}
				return nil
			}

			// foreign targets need a cgo toolchain, so build inside the container
			noCache, err := cmd.Flags().GetBool("no-cache")
			if err != nil {
				return fmt.Errorf("could not get no-cache flag: %w", err)
			}
			return build.Docker(cmd.Context(), fmt.Sprintf("./dev-%s-%s", t.os, t.arch), []string{"build", "--version", t.version, "--cross-os", crossOs, "--cross-arch", crossArch}, build.DockerBuildOpts{
				NoCache: noCache,
				Image:   buildImage,
			})
		},
	}
	cmd.Flags().Bool("no-cache", false, "do not use cache when building in docker")
	cmd.Flags().Bool("firmware", false, "also build the TinyGo firmware image")
	cmd.Flags().String("version", "latest", "version of the cli")
	cmd.Flags().String("os", runtime.GOOS, "os to build for")
	cmd.Flags().String("arch", runtime.GOARCH, "arch to build for")
	cmd.Flags().String("cross-os", "", "os to cross-compile for")
	cmd.Flags().String("cross-arch", "", "arch to cross-compile for")

	return cmd
}
