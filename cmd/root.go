package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/logging"
	"github.com/sitewatch/sitewatch/pkg/config"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitewatch",
		Short: "A single-page change monitor that renders a static report site.",
		Long: `sitewatch fetches one configured web page, detects whether its
normalized content changed since the previous run, persists the new
snapshot, and renders a static HTML report plus supporting site files.
All durable state lives in a single committed state file.`,
		SilenceUsage: true,
	}

	// Initialize Viper configuration.
	cobra.OnInitialize(func() {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		}
		config.InitConfig()
		// Rebuild the logger now that logging.development is known.
		logging.Init(viper.GetBool("logging.development"))
	})

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newSelftestCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	// Initialize the logger once at the very start.
	logging.Init(viper.GetBool("logging.development"))

	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}
