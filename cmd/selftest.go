package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sitewatch/sitewatch/internal/logging"
	"github.com/sitewatch/sitewatch/internal/selftest"
)

// newSelftestCmd creates the 'selftest' subcommand, which validates the
// pipeline wiring against embedded fixtures without network access.
func newSelftestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Runs the pipeline against embedded fixtures",
		Long: `Executes the normalize/diff/persist/render pipeline against fixed
fixture documents in a temporary directory. Never fetches from the
network and never touches the real state file or output directory.
Exits zero when the pipeline completes, nonzero on any stage failure.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			harness := selftest.New(logging.L)
			if err := harness.Run(cmd.Context()); err != nil {
				return fmt.Errorf("selftest: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Selftest OK")
			return nil
		},
	}
	return cmd
}
