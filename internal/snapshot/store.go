package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Load reads and validates a snapshot from path.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}

	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}

	return &snap, nil
}

// LoadPrevious returns the previous canonical snapshot from dir, or nil when
// none is usable. Missing, unreadable, or corrupt prior snapshots all mean
// "no previous state" - a deliberate policy so a damaged file degrades to
// first-run behavior instead of failing the pipeline.
func LoadPrevious(dir string, logger *slog.Logger) *Snapshot {
	path := filepath.Join(dir, CanonicalFileName)

	snap, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("No previous snapshot found, treating as first run",
				slog.String("path", path))
		} else {
			logger.Warn("Previous snapshot unusable, treating as first run",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}

		return nil
	}

	return snap
}
