package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Engine runs one change-detection pass: load the prior snapshot, fetch
// and normalize the target, classify the result, persist the new
// snapshot, and render the report site.
type Engine struct {
	cfg        Config
	fetcher    Fetcher
	normalizer Normalizer
	store      SnapshotStore
	renderer   Renderer
	retry      RetryPolicy
	clock      Clock
	ids        IDGenerator
	logger     *zap.Logger
}

// NewEngine wires the pipeline components together.
func NewEngine(
	cfg Config,
	fetcher Fetcher,
	normalizer Normalizer,
	store SnapshotStore,
	renderer Renderer,
	retry RetryPolicy,
	clock Clock,
	ids IDGenerator,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		cfg:        cfg,
		fetcher:    fetcher,
		normalizer: normalizer,
		store:      store,
		renderer:   renderer,
		retry:      retry,
		clock:      clock,
		ids:        ids,
		logger:     logger,
	}
}

// Run executes a single monitoring pass. Fetch and decode failures are
// recovered into a FETCH_ERROR result with the report still rendered;
// store-write and render failures are returned as errors and abort the
// run. The prior snapshot is never modified on a failed fetch.
func (e *Engine) Run(ctx context.Context) (RunResult, error) {
	runID, err := e.ids.NewID()
	if err != nil {
		return RunResult{}, fmt.Errorf("generate run id: %w", err)
	}
	target := Target{URL: e.cfg.TargetURL}
	result := RunResult{
		RunID:     runID,
		Target:    target,
		StartedAt: e.clock.Now(),
	}

	previous, err := e.store.Load(ctx, target)
	switch {
	case errors.Is(err, ErrCorruptState):
		CorruptStateLoads.Inc()
		e.logger.Warn("State file is corrupt or incompatible; treating as no prior snapshot",
			zap.String("run_id", runID), zap.Error(err))
		previous = nil
	case err != nil:
		return RunResult{}, fmt.Errorf("load snapshot: %w", err)
	}
	result.Previous = previous

	doc, err := e.observe(ctx)
	if err != nil {
		if !IsRecoverable(err) {
			return RunResult{}, err
		}
		result.Status = StatusFetchError
		result.ErrorDetail = err.Error()
		e.logger.Warn("Fetch failed; prior snapshot preserved",
			zap.String("run_id", runID), zap.String("url", target.URL), zap.Error(err))
		return e.finish(ctx, result)
	}

	current := Snapshot{
		URL:               target.URL,
		ContentHash:       doc.Digest,
		CapturedAt:        e.clock.Now(),
		Title:             doc.Title,
		NormalizedExcerpt: truncateRunes(doc.Text, e.cfg.MaxExcerptStoreChars),
		RawLength:         doc.RawLength,
	}
	result.Current = &current

	switch {
	case previous == nil:
		result.Status = StatusFirstRun
	case previous.ContentHash == current.ContentHash:
		// Hash equality is the sole criterion; length or timestamp
		// differences never count as a change.
		result.Status = StatusUnchanged
	default:
		result.Status = StatusChanged
	}

	if err := e.store.Save(ctx, target, current); err != nil {
		return RunResult{}, fmt.Errorf("save snapshot: %w", err)
	}
	SnapshotWrites.Inc()

	return e.finish(ctx, result)
}

// observe fetches the target (with transient-failure retries) and
// normalizes the response. Normalization failures are not retried.
func (e *Engine) observe(ctx context.Context) (Document, error) {
	var page Page
	for attempt := 0; ; attempt++ {
		var err error
		page, err = e.fetcher.Fetch(ctx, e.cfg.TargetURL)
		if err == nil {
			break
		}
		if !e.retry.ShouldRetry(err, attempt+1) {
			return Document{}, err
		}
		FetchRetries.Inc()
		backoff := e.retry.Backoff(attempt)
		e.logger.Info("Retrying fetch after transient failure",
			zap.Int("attempt", attempt+1), zap.Duration("backoff", backoff), zap.Error(err))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return Document{}, ctx.Err()
		}
	}
	return e.normalizer.Normalize(page)
}

func (e *Engine) finish(ctx context.Context, result RunResult) (RunResult, error) {
	files, err := e.renderer.Render(ctx, result, e.cfg.OutputDir)
	if err != nil {
		return RunResult{}, fmt.Errorf("render report: %w", err)
	}
	RunsTotal.WithLabelValues(string(result.Status)).Inc()
	e.logger.Info("Run complete",
		zap.String("run_id", result.RunID),
		zap.String("status", string(result.Status)),
		zap.Strings("written", files),
	)
	return result, nil
}

// truncateRunes caps s at n runes without splitting a multi-byte character.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
