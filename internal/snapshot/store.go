// Package snapshot persists the single prior snapshot as a versioned
// JSON state file with atomic replace semantics.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/watch"
)

// SchemaVersion identifies the current state-file layout. Any other
// version loads as corrupt, which the engine treats as "no prior
// snapshot" (fail safe, never fail loud).
const SchemaVersion = 1

// stateFile is the on-disk envelope around the snapshot.
type stateFile struct {
	SchemaVersion int            `json:"schema_version"`
	Snapshot      watch.Snapshot `json:"snapshot"`
}

// FileStore implements watch.SnapshotStore on a local JSON file.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore returns a store backed by the given state-file path.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("state path is required")
	}
	return &FileStore{path: path, logger: logger}, nil
}

// Load reads the prior snapshot. A missing file returns (nil, nil). A
// file that exists but cannot be trusted returns an error wrapping
// watch.ErrCorruptState so callers can distinguish the two in logs. A
// snapshot recorded for a different target loads as absent.
func (s *FileStore) Load(ctx context.Context, target watch.Target) (*watch.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context canceled: %w", err)
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("No state file found; first run for target", zap.String("path", s.path))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file %s: %w", s.path, err)
	}

	var state stateFile
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: unmarshal %s: %v", watch.ErrCorruptState, s.path, err)
	}
	if state.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d in %s",
			watch.ErrCorruptState, state.SchemaVersion, s.path)
	}
	if state.Snapshot.ContentHash == "" {
		return nil, fmt.Errorf("%w: state file %s has no content hash", watch.ErrCorruptState, s.path)
	}
	if state.Snapshot.URL != target.URL {
		s.logger.Info("State file belongs to a different target; treating as absent",
			zap.String("stored_url", state.Snapshot.URL),
			zap.String("target_url", target.URL))
		return nil, nil
	}
	snap := state.Snapshot
	return &snap, nil
}

// Save atomically replaces the state file with the new snapshot. The
// write goes to a temp file in the same directory followed by a rename,
// so an interrupted save leaves either the old state or a file that
// fails to parse — never a spliced value.
func (s *FileStore) Save(ctx context.Context, target watch.Target, snap watch.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	if snap.URL != target.URL {
		return fmt.Errorf("snapshot url %q does not match target %q", snap.URL, target.URL)
	}

	payload, err := json.MarshalIndent(stateFile{
		SchemaVersion: SchemaVersion,
		Snapshot:      snap,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	payload = append(payload, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create state dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state file %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp state file %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace state file %s: %w", s.path, err)
	}
	return nil
}
