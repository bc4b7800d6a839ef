// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the sdrprov command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // set via -ldflags
var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	verbose bool
	cfgFile string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "sdrprov",
		Short: "Provision SDR tools on this machine",
		Long: TitleStyle.Render("sdrprov") + SubtitleStyle.Render(" - provision SDR tools on this machine") + `

Running sdrprov with no arguments performs a full provisioning pass:
OS packages through the detected package manager, prebuilt tool archives,
source builds for tools without a usable archive, and the Python
environment described by requirements.txt.

Individual failures are reported as warnings; the run continues.

` + SubtitleStyle.Render("Examples:") + `
  sdrprov             Provision everything
  sdrprov check       Report what is already installed
  sdrprov -v          Provision with debug logging`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProvision(cmd, opts)
		},
	}

	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.config/sdrprov/config.cue or config.toml)")

	root.AddCommand(newCheckCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the root command and exits with its status. It is called by
// main.main().
func Execute() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
