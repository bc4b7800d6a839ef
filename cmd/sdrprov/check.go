// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"
)

func newCheckCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report which tools are already installed",
		Long: `Inspect the host without changing it: detected package manager,
whether every tool's executables resolve, and whether a suitable Python
interpreter exists. Exits 0 even when something is missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return fatal(cmd, err, opts.verbose, "")
			}
			renderCheck(cmd.OutOrStdout(), a.orchestrator.Check(cmd.Context()))
			return nil
		},
	}
}
