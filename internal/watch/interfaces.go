package watch

import (
	"context"
	"time"
)

// Fetcher retrieves the target page and returns the body plus transport
// metadata. Implementations must bound the request with a finite timeout.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Normalizer reduces a fetched page to comparison-stable text and its digest.
type Normalizer interface {
	Normalize(page Page) (Document, error)
}

// SnapshotStore persists the single prior snapshot. Load returns
// (nil, nil) for a legitimately absent snapshot and an error wrapping
// ErrCorruptState for an unusable state file. Save must be atomic with
// respect to Load.
type SnapshotStore interface {
	Load(ctx context.Context, target Target) (*Snapshot, error)
	Save(ctx context.Context, target Target, snap Snapshot) error
}

// Renderer writes the static report site for a run result and returns
// the paths it wrote.
type Renderer interface {
	Render(ctx context.Context, result RunResult, outDir string) ([]string, error)
}

// RetryPolicy decides whether a failed fetch attempt is worth repeating.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Hasher computes digests for change detection.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
