package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to path with rename-commit semantics: the
// content goes to a temporary sibling first and is renamed into place only
// after a complete write. A reader never observes a partial file, regardless
// of process interruption.
//
// The temporary file is created in the target's directory so the rename
// stays on one filesystem.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}

	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)

		return fmt.Errorf("write %s: %w", tmpPath, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("close %s: %w", tmpPath, err)
	}

	// CreateTemp uses 0600; published artifacts should be world-readable.
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("rename %s to %s: %w", tmpPath, path, err)
	}

	return nil
}
