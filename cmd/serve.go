package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sitewatch/sitewatch/internal/logging"
	"github.com/sitewatch/sitewatch/internal/preview"
)

// newServeCmd creates the 'serve' subcommand, which serves the
// generated report site locally along with Prometheus metrics.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the generated report site locally",
		Long: `Serves report.output_dir over HTTP for local inspection, with
/metrics (Prometheus) and /healthz endpoints. This is an operational
convenience only; publishing the site is the job of the external
collaborator that commits the generated files.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server := preview.New(
				viper.GetString("server.listen"),
				viper.GetString("report.output_dir"),
				logging.L,
			)
			return server.Start(ctx)
		},
	}
	return cmd
}
