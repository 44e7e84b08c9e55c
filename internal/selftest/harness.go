// Package selftest runs the full pipeline against embedded fixture
// documents to validate wiring without touching the network or the real
// snapshot store.
package selftest

import (
	"context"
	"embed"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/clock/system"
	"github.com/sitewatch/sitewatch/internal/hash/sha256"
	"github.com/sitewatch/sitewatch/internal/id/uuid"
	"github.com/sitewatch/sitewatch/internal/normalize"
	"github.com/sitewatch/sitewatch/internal/report"
	"github.com/sitewatch/sitewatch/internal/snapshot"
	"github.com/sitewatch/sitewatch/internal/watch"
)

//go:embed fixtures/baseline.html fixtures/modified.html
var fixtures embed.FS

// fixtureURL stands in for the live target; .invalid is reserved and
// can never resolve, so a selftest can never reach the network by accident.
const fixtureURL = "https://selftest.invalid/page"

// Harness exercises Normalizer, Engine, SnapshotStore, and Renderer
// against fixed fixtures in throwaway temp directories.
type Harness struct {
	logger *zap.Logger
}

// New creates a selftest harness.
func New(logger *zap.Logger) *Harness {
	return &Harness{logger: logger}
}

// Run executes the fixture pipeline: baseline, baseline again, then a
// modified document. It returns an error if any stage fails or a run
// classifies differently than the fixture sequence implies.
func (h *Harness) Run(ctx context.Context) error {
	workDir, err := os.MkdirTemp("", "sitewatch-selftest-*")
	if err != nil {
		return fmt.Errorf("create selftest dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	cfg := fixtureConfig(workDir)
	normalizer, err := normalize.New(normalize.Options{
		StripPatterns:      cfg.StripPatterns,
		WhitespaceCollapse: cfg.WhitespaceCollapse,
		ExcludeSelectors:   cfg.ExcludeSelectors,
		MaxTextChars:       cfg.MaxTextChars,
	}, sha256.New())
	if err != nil {
		return fmt.Errorf("selftest normalizer: %w", err)
	}
	store, err := snapshot.NewFileStore(cfg.StatePath, h.logger)
	if err != nil {
		return fmt.Errorf("selftest store: %w", err)
	}
	renderer, err := report.New(report.Options{
		SiteTitle:        cfg.SiteTitle,
		ExcerptChars:     cfg.ExcerptChars,
		DiffContextLines: cfg.DiffContextLines,
		MaxDiffLines:     cfg.MaxDiffLines,
	}, system.New(), h.logger)
	if err != nil {
		return fmt.Errorf("selftest renderer: %w", err)
	}

	steps := []struct {
		fixture string
		want    watch.Status
	}{
		{"fixtures/baseline.html", watch.StatusFirstRun},
		{"fixtures/baseline.html", watch.StatusUnchanged},
		{"fixtures/modified.html", watch.StatusChanged},
	}

	for i, step := range steps {
		body, err := fixtures.ReadFile(step.fixture)
		if err != nil {
			return fmt.Errorf("read fixture %s: %w", step.fixture, err)
		}
		engine := watch.NewEngine(
			cfg,
			fixtureFetcher{body: body},
			normalizer,
			store,
			renderer,
			watch.NewExponentialRetryPolicy(1),
			system.New(),
			uuid.New(),
			h.logger,
		)
		result, err := engine.Run(ctx)
		if err != nil {
			return fmt.Errorf("selftest step %d: %w", i+1, err)
		}
		if result.Status != step.want {
			return fmt.Errorf("selftest step %d: classified %s, want %s", i+1, result.Status, step.want)
		}
		h.logger.Info("Selftest step passed",
			zap.Int("step", i+1), zap.String("status", string(result.Status)))
	}

	h.logger.Info("Selftest OK", zap.String("work_dir", workDir))
	return nil
}

func fixtureConfig(workDir string) watch.Config {
	return watch.Config{
		TargetURL:            fixtureURL,
		UserAgent:            "SiteWatch-Selftest/1.0",
		Timeout:              5 * time.Second,
		WhitespaceCollapse:   true,
		ExcludeSelectors:     []string{"script", "style", "noscript"},
		MaxTextChars:         20000,
		ExcerptChars:         500,
		MaxExcerptStoreChars: 5000,
		MaxPageBytes:         5 << 20,
		RetryAttempts:        1,
		SiteTitle:            "Site Change Monitor (selftest)",
		DiffContextLines:     3,
		MaxDiffLines:         220,
		OutputDir:            filepath.Join(workDir, "public"),
		StatePath:            filepath.Join(workDir, "data", "state.json"),
	}
}

// fixtureFetcher serves an embedded document instead of a live fetch.
type fixtureFetcher struct {
	body []byte
}

// Fetch returns the fixture as a successful HTML response.
func (f fixtureFetcher) Fetch(_ context.Context, rawURL string) (watch.Page, error) {
	return watch.Page{
		URL:        rawURL,
		FinalURL:   rawURL,
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:       append([]byte{}, f.body...),
	}, nil
}
