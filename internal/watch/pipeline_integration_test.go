package watch_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/clock/system"
	"github.com/sitewatch/sitewatch/internal/hash/sha256"
	"github.com/sitewatch/sitewatch/internal/id/uuid"
	"github.com/sitewatch/sitewatch/internal/normalize"
	"github.com/sitewatch/sitewatch/internal/report"
	"github.com/sitewatch/sitewatch/internal/snapshot"
	"github.com/sitewatch/sitewatch/internal/watch"
)

// stubFetcher serves a swappable in-memory body, or fails on demand.
type stubFetcher struct {
	body []byte
	fail error
}

func (f *stubFetcher) Fetch(_ context.Context, rawURL string) (watch.Page, error) {
	if f.fail != nil {
		return watch.Page{}, f.fail
	}
	return watch.Page{
		URL:        rawURL,
		FinalURL:   rawURL,
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:       append([]byte{}, f.body...),
	}, nil
}

func pipelineConfig(workDir string) watch.Config {
	return watch.Config{
		TargetURL:            "https://example.test/page",
		UserAgent:            "test-agent",
		Timeout:              5 * time.Second,
		WhitespaceCollapse:   true,
		ExcludeSelectors:     []string{"script", "style", "noscript"},
		MaxTextChars:         20000,
		ExcerptChars:         500,
		MaxExcerptStoreChars: 5000,
		MaxPageBytes:         1 << 20,
		RetryAttempts:        1,
		SiteTitle:            "Site Change Monitor",
		DiffContextLines:     3,
		MaxDiffLines:         220,
		OutputDir:            filepath.Join(workDir, "public"),
		StatePath:            filepath.Join(workDir, "data", "state.json"),
	}
}

func buildPipeline(t *testing.T, cfg watch.Config, fetcher watch.Fetcher) *watch.Engine {
	t.Helper()
	logger := zap.NewNop()

	normalizer, err := normalize.New(normalize.Options{
		WhitespaceCollapse: cfg.WhitespaceCollapse,
		ExcludeSelectors:   cfg.ExcludeSelectors,
		MaxTextChars:       cfg.MaxTextChars,
	}, sha256.New())
	require.NoError(t, err)

	store, err := snapshot.NewFileStore(cfg.StatePath, logger)
	require.NoError(t, err)

	renderer, err := report.New(report.Options{
		SiteTitle:        cfg.SiteTitle,
		ExcerptChars:     cfg.ExcerptChars,
		DiffContextLines: cfg.DiffContextLines,
		MaxDiffLines:     cfg.MaxDiffLines,
	}, system.New(), logger)
	require.NoError(t, err)

	return watch.NewEngine(
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
}

// TestPipelinePriceScenario walks the full first-run/unchanged/changed
// sequence through the real normalizer, store, and renderer.
func TestPipelinePriceScenario(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	cfg := pipelineConfig(workDir)
	fetcher := &stubFetcher{body: []byte("<html><body>Price: $10</body></html>")}
	ctx := context.Background()

	engine := buildPipeline(t, cfg, fetcher)
	run1, err := engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, watch.StatusFirstRun, run1.Status)
	h1 := run1.Current.ContentHash
	require.Len(t, h1, 64)

	run2, err := engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, watch.StatusUnchanged, run2.Status)
	require.Equal(t, h1, run2.Current.ContentHash)

	fetcher.body = []byte("<html><body>Price: $12</body></html>")
	run3, err := engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, watch.StatusChanged, run3.Status)
	require.NotEqual(t, h1, run3.Current.ContentHash)

	index, err := os.ReadFile(filepath.Join(cfg.OutputDir, "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(index), "$12")
}

// TestPipelineFetchFailureLeavesStateUntouched asserts error isolation:
// a failed fetch renders a FETCH_ERROR report and leaves the state file
// byte-for-byte identical.
func TestPipelineFetchFailureLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	cfg := pipelineConfig(workDir)
	fetcher := &stubFetcher{body: []byte("<html><body>Price: $10</body></html>")}
	ctx := context.Background()

	engine := buildPipeline(t, cfg, fetcher)
	run1, err := engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, watch.StatusFirstRun, run1.Status)

	before, err := os.ReadFile(cfg.StatePath)
	require.NoError(t, err)

	fetcher.fail = &watch.FetchError{URL: cfg.TargetURL, Cause: watch.CauseHTTPStatus, StatusCode: 503}
	run2, err := engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, watch.StatusFetchError, run2.Status)
	require.Equal(t, run1.Current.ContentHash, run2.Previous.ContentHash)

	after, err := os.ReadFile(cfg.StatePath)
	require.NoError(t, err)
	require.Equal(t, before, after, "state file must be untouched by a failed fetch")

	index, err := os.ReadFile(filepath.Join(cfg.OutputDir, "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(index), "Fetch failed")

	// Recovery: the next successful run compares against the preserved
	// snapshot, so a transient failure cannot mask a real change.
	fetcher.fail = nil
	fetcher.body = []byte("<html><body>Price: $14</body></html>")
	run3, err := engine.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, watch.StatusChanged, run3.Status)
}
