package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/watch"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

func testOptions() Options {
	return Options{
		SiteTitle:        "Site Change Monitor",
		ExcerptChars:     500,
		DiffContextLines: 3,
		MaxDiffLines:     220,
	}
}

func newTestRenderer(t *testing.T, opts Options) *Renderer {
	t.Helper()
	r, err := New(opts, fixedClock{t: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)}, zap.NewNop())
	require.NoError(t, err)
	return r
}

func changedResult() watch.RunResult {
	return watch.RunResult{
		RunID:  "run-1",
		Status: watch.StatusChanged,
		Target: watch.Target{URL: "https://example.test/page"},
		Previous: &watch.Snapshot{
			URL:               "https://example.test/page",
			ContentHash:       "h1",
			NormalizedExcerpt: "Price: $10",
		},
		Current: &watch.Snapshot{
			URL:               "https://example.test/page",
			ContentHash:       "h2",
			Title:             "Shop",
			NormalizedExcerpt: "Price: $12",
		},
	}
}

func TestRenderWritesFullArtifactSet(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	r := newTestRenderer(t, testOptions())

	written, err := r.Render(context.Background(), changedResult(), outDir)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(outDir, "index.html"),
		filepath.Join(outDir, "sitemap.xml"),
		filepath.Join(outDir, "robots.txt"),
		filepath.Join(outDir, "assets", "style.css"),
	}, written)
	for _, path := range written {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Greater(t, info.Size(), int64(0))
	}
}

func TestRenderDeterministicWithFixedClock(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t, testOptions())
	dirA := t.TempDir()
	dirB := t.TempDir()

	_, err := r.Render(context.Background(), changedResult(), dirA)
	require.NoError(t, err)
	_, err = r.Render(context.Background(), changedResult(), dirB)
	require.NoError(t, err)

	for _, name := range []string{"index.html", "sitemap.xml", "robots.txt", filepath.Join("assets", "style.css")} {
		a, err := os.ReadFile(filepath.Join(dirA, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(dirB, name))
		require.NoError(t, err)
		require.Equal(t, a, b, "artifact %s must be byte-identical", name)
	}
}

func TestRenderChangedIncludesDiff(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	r := newTestRenderer(t, testOptions())

	_, err := r.Render(context.Background(), changedResult(), outDir)
	require.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(outDir, "index.html"))
	require.NoError(t, err)
	html := string(index)
	require.Contains(t, html, "Change detected")
	require.Contains(t, html, "$12")
	// Each side of the diff ends up on its own line. html/template
	// escapes '+' as &#43; inside the <pre> block.
	require.Contains(t, html, "-Price: $10\n")
	require.Contains(t, html, "&#43;Price: $12\n")
	require.Contains(t, html, "h1")
	require.Contains(t, html, "h2")
}

func TestRenderUnchanged(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	r := newTestRenderer(t, testOptions())

	result := changedResult()
	result.Status = watch.StatusUnchanged
	result.Current.ContentHash = "h1"
	result.Current.NormalizedExcerpt = "Price: $10"

	_, err := r.Render(context.Background(), result, outDir)
	require.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(outDir, "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(index), "No change detected")
}

func TestRenderFirstRun(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	r := newTestRenderer(t, testOptions())

	result := changedResult()
	result.Status = watch.StatusFirstRun
	result.Previous = nil

	_, err := r.Render(context.Background(), result, outDir)
	require.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(outDir, "index.html"))
	require.NoError(t, err)
	html := string(index)
	require.Contains(t, html, "Baseline captured")
	require.Contains(t, html, "no previous snapshot yet")
}

func TestRenderFetchErrorStillProducesReport(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	r := newTestRenderer(t, testOptions())

	result := watch.RunResult{
		RunID:  "run-2",
		Status: watch.StatusFetchError,
		Target: watch.Target{URL: "https://example.test/page"},
		Previous: &watch.Snapshot{
			URL:               "https://example.test/page",
			ContentHash:       "h1",
			Title:             "Shop",
			NormalizedExcerpt: "Price: $10",
		},
		ErrorDetail: "fetch https://example.test/page: unexpected status 503",
	}

	_, err := r.Render(context.Background(), result, outDir)
	require.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(outDir, "index.html"))
	require.NoError(t, err)
	html := string(index)
	require.Contains(t, html, "Fetch failed")
	require.Contains(t, html, "unexpected status 503")
	// Last-known-good content is still shown.
	require.Contains(t, html, "Price: $10")
	require.Contains(t, html, "h1")
}

func TestRenderSitemapRelativeWithoutBaseURL(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	r := newTestRenderer(t, testOptions())

	_, err := r.Render(context.Background(), changedResult(), outDir)
	require.NoError(t, err)

	sitemap, err := os.ReadFile(filepath.Join(outDir, "sitemap.xml"))
	require.NoError(t, err)
	require.Contains(t, string(sitemap), "<loc>./index.html</loc>")

	robots, err := os.ReadFile(filepath.Join(outDir, "robots.txt"))
	require.NoError(t, err)
	require.Equal(t, "User-agent: *\nAllow: /\n", string(robots))
}

func TestRenderSitemapAbsoluteWithBaseURL(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.BaseURL = "https://monitor.example.test/"
	outDir := t.TempDir()
	r := newTestRenderer(t, opts)

	_, err := r.Render(context.Background(), changedResult(), outDir)
	require.NoError(t, err)

	sitemap, err := os.ReadFile(filepath.Join(outDir, "sitemap.xml"))
	require.NoError(t, err)
	require.Contains(t, string(sitemap), "<loc>https://monitor.example.test/index.html</loc>")

	robots, err := os.ReadFile(filepath.Join(outDir, "robots.txt"))
	require.NoError(t, err)
	require.Contains(t, string(robots), "Sitemap: https://monitor.example.test/sitemap.xml")
}

func TestUnifiedExcerptDiffSingleLineExcerpts(t *testing.T) {
	t.Parallel()

	// Collapsed excerpts carry no trailing newline; the old and new
	// sides must still land on separate diff lines.
	out := unifiedExcerptDiff("Price: $10", "Price: $12", 3, 0)
	require.Contains(t, out, "-Price: $10\n")
	require.Contains(t, out, "+Price: $12\n")
}

func TestUnifiedExcerptDiffTruncates(t *testing.T) {
	t.Parallel()

	prev := "a\nb\nc\nd\ne\nf\ng\n"
	cur := "a\nB\nc\nD\ne\nF\ng\n"
	out := unifiedExcerptDiff(prev, cur, 0, 4)
	require.Contains(t, out, "... (diff truncated)")
}
