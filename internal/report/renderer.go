// Package report renders the static site artifacts for a run result.
//
// Rendering is pure with respect to the RunResult: identical results
// produce byte-identical output, except the single labeled "generated
// at" field taken from the injected clock.
package report

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/watch"
)

//go:embed templates/index.html.tmpl
var templateFS embed.FS

//go:embed assets/style.css
var styleCSS []byte

// Options shapes the rendered site.
type Options struct {
	SiteTitle        string
	BaseURL          string
	ExcerptChars     int
	DiffContextLines int
	MaxDiffLines     int
}

// Renderer implements watch.Renderer, writing index.html, sitemap.xml,
// robots.txt, and the asset directory.
type Renderer struct {
	opts   Options
	clock  watch.Clock
	tmpl   *template.Template
	logger *zap.Logger
}

// New parses the embedded template and returns a Renderer.
func New(opts Options, clock watch.Clock, logger *zap.Logger) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/index.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &Renderer{
		opts:   opts,
		clock:  clock,
		tmpl:   tmpl,
		logger: logger,
	}, nil
}

// indexView is the template model for index.html.
type indexView struct {
	SiteTitle    string
	TargetURL    string
	StatusLabel  string
	BadgeClass   string
	GeneratedAt  string
	PageTitle    string
	PreviousHash string
	CurrentHash  string
	ErrorDetail  string
	Snippet      string
	SnippetLimit int
	Diff         string
}

// Render writes the full artifact set into outDir and returns the
// written paths. Every artifact is regenerated on each call.
func (r *Renderer) Render(ctx context.Context, result watch.RunResult, outDir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context canceled: %w", err)
	}
	assetsDir := filepath.Join(outDir, "assets")
	if err := os.MkdirAll(assetsDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", assetsDir, err)
	}

	index, err := r.renderIndex(result)
	if err != nil {
		return nil, err
	}

	artifacts := []struct {
		path string
		data []byte
	}{
		{filepath.Join(outDir, "index.html"), index},
		{filepath.Join(outDir, "sitemap.xml"), r.renderSitemap()},
		{filepath.Join(outDir, "robots.txt"), r.renderRobots()},
		{filepath.Join(assetsDir, "style.css"), styleCSS},
	}

	written := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		if err := os.WriteFile(a.path, a.data, 0o600); err != nil {
			return nil, fmt.Errorf("write %s: %w", a.path, err)
		}
		written = append(written, a.path)
	}
	r.logger.Debug("Report rendered", zap.String("dir", outDir), zap.Int("files", len(written)))
	return written, nil
}

func (r *Renderer) renderIndex(result watch.RunResult) ([]byte, error) {
	view := indexView{
		SiteTitle:    r.opts.SiteTitle,
		TargetURL:    result.Target.URL,
		GeneratedAt:  r.clock.Now().UTC().Format("2006-01-02T15:04:05Z"),
		SnippetLimit: r.opts.ExcerptChars,
		ErrorDetail:  result.ErrorDetail,
	}

	switch result.Status {
	case watch.StatusFirstRun:
		view.StatusLabel = "Baseline captured (first run)"
		view.BadgeClass = "ok"
		view.Diff = "(no previous snapshot yet — run once more to compare)"
	case watch.StatusUnchanged:
		view.StatusLabel = "No change detected"
		view.BadgeClass = "ok"
		view.Diff = "(content matched the previous run)"
	case watch.StatusChanged:
		view.StatusLabel = "Change detected"
		view.BadgeClass = "changed"
		view.Diff = unifiedExcerptDiff(
			excerptOf(result.Previous),
			excerptOf(result.Current),
			r.opts.DiffContextLines,
			r.opts.MaxDiffLines,
		)
	case watch.StatusFetchError:
		view.StatusLabel = "Fetch failed"
		view.BadgeClass = "error"
		view.Diff = "(no comparison possible this run)"
	default:
		return nil, fmt.Errorf("unknown run status %q", result.Status)
	}

	if result.Current != nil {
		view.PageTitle = result.Current.Title
		view.CurrentHash = result.Current.ContentHash
		view.Snippet = capRunes(result.Current.NormalizedExcerpt, r.opts.ExcerptChars)
	} else if result.Previous != nil {
		// Fetch error: show the last-known-good content for context.
		view.PageTitle = result.Previous.Title
		view.Snippet = capRunes(result.Previous.NormalizedExcerpt, r.opts.ExcerptChars)
	}
	if result.Previous != nil {
		view.PreviousHash = result.Previous.ContentHash
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("execute report template: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) renderSitemap() []byte {
	loc := "./index.html"
	if r.opts.BaseURL != "" {
		loc = strings.TrimRight(r.opts.BaseURL, "/") + "/index.html"
	}
	sitemap := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>%s</loc></url>
</urlset>
`, loc)
	return []byte(sitemap)
}

func (r *Renderer) renderRobots() []byte {
	var b strings.Builder
	b.WriteString("User-agent: *\nAllow: /\n")
	if r.opts.BaseURL != "" {
		fmt.Fprintf(&b, "Sitemap: %s/sitemap.xml\n", strings.TrimRight(r.opts.BaseURL, "/"))
	}
	return []byte(b.String())
}

func excerptOf(snap *watch.Snapshot) string {
	if snap == nil {
		return ""
	}
	return snap.NormalizedExcerpt
}

// capRunes bounds s at limit runes without splitting a character.
func capRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
