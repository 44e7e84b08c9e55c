// Package cmd defines and implements the CLI commands for the sitewatch executable.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/clock/system"
	"github.com/sitewatch/sitewatch/internal/hash/sha256"
	"github.com/sitewatch/sitewatch/internal/id/uuid"
	"github.com/sitewatch/sitewatch/internal/logging"
	"github.com/sitewatch/sitewatch/internal/normalize"
	"github.com/sitewatch/sitewatch/internal/report"
	"github.com/sitewatch/sitewatch/internal/snapshot"
	"github.com/sitewatch/sitewatch/internal/watch"
)

// newCheckCmd creates and configures the 'check' subcommand, which runs
// the real pipeline against the configured target.
func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Runs one change-detection pass against the configured target",
		Long: `Fetches the configured page, compares its normalized content against
the stored snapshot, persists the new snapshot, and regenerates the
static report site. A fetch failure is reported inside the rendered
site and exits zero; only configuration, state-write, and render
failures exit nonzero.`,
		RunE: runCheckCommand,
	}
	return cmd
}

func runCheckCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := watch.LoadConfig(viper.GetViper())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	engine, closeFetcher, err := buildEngine(cfg, logging.L)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeFetcher(cmd.Context()); cerr != nil {
			logging.L.Warn("Failed to close fetcher", zap.Error(cerr))
		}
	}()

	result, err := engine.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), statusLine(result))
	return nil
}

// buildEngine assembles the pipeline from configuration. The returned
// close function tears down the fetcher (a no-op for the fast path).
func buildEngine(cfg watch.Config, logger *zap.Logger) (*watch.Engine, func(context.Context) error, error) {
	fetcher, closeFetcher, err := buildFetcher(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init fetcher: %w", err)
	}

	normalizer, err := normalize.New(normalize.Options{
		StripPatterns:      cfg.StripPatterns,
		WhitespaceCollapse: cfg.WhitespaceCollapse,
		ExcludeSelectors:   cfg.ExcludeSelectors,
		MaxTextChars:       cfg.MaxTextChars,
	}, sha256.New())
	if err != nil {
		return nil, nil, fmt.Errorf("init normalizer: %w", err)
	}

	store, err := snapshot.NewFileStore(cfg.StatePath, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init snapshot store: %w", err)
	}

	renderer, err := report.New(report.Options{
		SiteTitle:        cfg.SiteTitle,
		BaseURL:          cfg.BaseURL,
		ExcerptChars:     cfg.ExcerptChars,
		DiffContextLines: cfg.DiffContextLines,
		MaxDiffLines:     cfg.MaxDiffLines,
	}, system.New(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init renderer: %w", err)
	}

	engine := watch.NewEngine(
		cfg,
		fetcher,
		normalizer,
		store,
		renderer,
		watch.NewExponentialRetryPolicy(cfg.RetryAttempts),
		system.New(),
		uuid.New(),
		logger,
	)
	return engine, closeFetcher, nil
}

func buildFetcher(cfg watch.Config, logger *zap.Logger) (watch.Fetcher, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if cfg.RenderJS {
		fetcher, err := watch.NewChromedpFetcher(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return fetcher, fetcher.Close, nil
	}
	fetcher, err := watch.NewCollyFetcher(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return fetcher, noop, nil
}

func statusLine(result watch.RunResult) string {
	switch result.Status {
	case watch.StatusFirstRun:
		return "Baseline captured (first run)"
	case watch.StatusUnchanged:
		return "No change detected"
	case watch.StatusChanged:
		return "Change detected"
	case watch.StatusFetchError:
		return fmt.Sprintf("Fetch failed: %s", result.ErrorDetail)
	default:
		return string(result.Status)
	}
}
