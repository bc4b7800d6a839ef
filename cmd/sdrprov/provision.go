// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"
)

func runProvision(cmd *cobra.Command, opts *globalOptions) error {
	a, err := newApp(cmd.Context(), opts, cmd.ErrOrStderr())
	if err != nil {
		return fatal(cmd, err, opts.verbose, "")
	}

	a.logger.Info("starting provisioning", "run", a.orchestrator.RunID(), "install_root", a.cfg.InstallRoot)
	sum, err := a.orchestrator.Run(cmd.Context())
	if sum != nil {
		renderSummary(cmd.OutOrStdout(), sum, a.store.Location())
	}
	if err != nil {
		return fatal(cmd, err, opts.verbose || a.cfg.UI.Verbose, a.cfg.UI.ColorScheme.String())
	}
	return nil
}

// fatal prints err with its catalog entry and returns an exit status of 1.
func fatal(cmd *cobra.Command, err error, verbose bool, colorScheme string) error {
	renderFatal(cmd.ErrOrStderr(), err, verbose, colorScheme)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: 1, Err: err}
}
