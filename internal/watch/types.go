// Package watch defines core types shared across the monitoring pipeline.
package watch

import (
	"net/http"
	"time"
)

// Status classifies the outcome of a single monitoring run.
type Status string

// Run outcomes rendered into the report.
const (
	StatusFirstRun   Status = "first_run"
	StatusUnchanged  Status = "unchanged"
	StatusChanged    Status = "changed"
	StatusFetchError Status = "fetch_error"
)

// Target is the single monitored URL for a run.
type Target struct {
	URL string `json:"url"`
}

// Snapshot is the persisted record of the target's last observed state.
// ContentHash is always computed over the full normalized text; the
// excerpt is a display/diff truncation and never feeds the hash.
type Snapshot struct {
	URL               string    `json:"url"`
	ContentHash       string    `json:"content_hash"`
	CapturedAt        time.Time `json:"captured_at"`
	Title             string    `json:"title,omitempty"`
	NormalizedExcerpt string    `json:"normalized_excerpt"`
	RawLength         int       `json:"raw_length"`
}

// Page is the raw result returned by a Fetcher implementation.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// ContentType returns the declared content type, if any.
func (p Page) ContentType() string {
	if p.Headers == nil {
		return ""
	}
	return p.Headers.Get("Content-Type")
}

// Document is the Normalizer's output: comparison-stable text plus its digest.
type Document struct {
	Title     string
	Text      string
	Digest    string
	RawLength int
}

// RunResult is the ephemeral outcome of one execution. It is never
// persisted directly; on success its content is folded into the new
// Snapshot, and its classification drives the rendered report.
type RunResult struct {
	RunID       string
	Status      Status
	Target      Target
	Previous    *Snapshot
	Current     *Snapshot
	ErrorDetail string
	StartedAt   time.Time
}

// Changed reports whether the run detected a content change.
func (r RunResult) Changed() bool {
	return r.Status == StatusChanged
}
