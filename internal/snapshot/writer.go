package snapshot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Artifact file names under the output directory.
const (
	// CanonicalFileName is the pretty-printed snapshot consumed by the
	// display layer.
	CanonicalFileName = "roadmap-data.json"

	// CompactFileName is the minified copy for low-bandwidth consumers.
	CompactFileName = "roadmap-data.min.json"

	backupPrefix = "roadmap-data-"
	backupSuffix = ".json"
)

// Backup retention bounds.
const (
	DefaultBackupRetention = 10
	MinBackupRetention     = 1
	MaxBackupRetention     = 100
)

// Config holds snapshot writer settings.
type Config struct {
	// OutputDir is the directory holding all pipeline artifacts.
	OutputDir string

	// BackupRetention is how many timestamped backups survive pruning.
	BackupRetention int
}

// Writer persists snapshots as three artifacts per run: the canonical pretty
// snapshot, an immutable timestamped backup, and a minified compact copy.
// Every individual file write is atomic.
type Writer struct {
	cfg    Config
	logger *slog.Logger

	// now is stubbed in tests to control backup timestamps.
	now func() time.Time
}

// NewWriter creates a snapshot writer. A retention outside [1,100] is
// clamped, zero falls back to the default.
func NewWriter(cfg Config, logger *slog.Logger) *Writer {
	if cfg.BackupRetention == 0 {
		cfg.BackupRetention = DefaultBackupRetention
	}

	if cfg.BackupRetention < MinBackupRetention {
		cfg.BackupRetention = MinBackupRetention
	}

	if cfg.BackupRetention > MaxBackupRetention {
		cfg.BackupRetention = MaxBackupRetention
	}

	return &Writer{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Save writes all three artifacts and prunes old backups.
//
// Ordering: canonical first, then the backup, then the compact copy. Each
// write commits via rename, so a failure part-way leaves every already
// written artifact whole and every unwritten artifact untouched. Backup
// pruning failures are warnings, never run failures.
func (w *Writer) Save(snap *Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(w.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", w.cfg.OutputDir, err)
	}

	pretty, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	compact, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal compact snapshot: %w", err)
	}

	canonicalPath := filepath.Join(w.cfg.OutputDir, CanonicalFileName)
	if err := WriteFileAtomic(canonicalPath, pretty); err != nil {
		return fmt.Errorf("write canonical snapshot: %w", err)
	}

	backupName := backupPrefix + backupTimestamp(w.now()) + backupSuffix
	backupPath := filepath.Join(w.cfg.OutputDir, backupName)

	if err := WriteFileAtomic(backupPath, pretty); err != nil {
		return fmt.Errorf("write backup %s: %w", backupName, err)
	}

	compactPath := filepath.Join(w.cfg.OutputDir, CompactFileName)
	if err := WriteFileAtomic(compactPath, compact); err != nil {
		return fmt.Errorf("write compact snapshot: %w", err)
	}

	w.logger.Info("Snapshot saved",
		slog.Int("items", len(snap.Items)),
		slog.String("canonical", canonicalPath),
		slog.String("backup", backupName),
		slog.Int("pretty_bytes", len(pretty)),
		slog.Int("compact_bytes", len(compact)),
	)

	w.pruneBackups()

	return nil
}

// pruneBackups deletes all but the most recent BackupRetention timestamped
// backups, ordered by modification time. Best-effort: failures are logged
// and never fail the run.
func (w *Writer) pruneBackups() {
	entries, err := os.ReadDir(w.cfg.OutputDir)
	if err != nil {
		w.logger.Warn("Backup pruning skipped: cannot list output directory",
			slog.String("dir", w.cfg.OutputDir),
			slog.String("error", err.Error()),
		)

		return
	}

	type backup struct {
		name    string
		modTime time.Time
	}

	backups := make([]backup, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !isBackupName(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			w.logger.Warn("Backup pruning: cannot stat file",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()),
			)

			continue
		}

		backups = append(backups, backup{name: entry.Name(), modTime: info.ModTime()})
	}

	if len(backups) <= w.cfg.BackupRetention {
		return
	}

	// Most recent first; everything past the retention limit goes.
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].modTime.After(backups[j].modTime)
	})

	for _, old := range backups[w.cfg.BackupRetention:] {
		path := filepath.Join(w.cfg.OutputDir, old.name)

		if err := os.Remove(path); err != nil {
			w.logger.Warn("Backup pruning: cannot remove old backup",
				slog.String("file", old.name),
				slog.String("error", err.Error()),
			)

			continue
		}

		w.logger.Debug("Pruned old backup", slog.String("file", old.name))
	}
}

// isBackupName reports whether a file name matches the timestamped backup
// convention. The canonical and compact artifacts do not match the prefix.
func isBackupName(name string) bool {
	return strings.HasPrefix(name, backupPrefix) && strings.HasSuffix(name, backupSuffix)
}

// backupTimestamp renders t in ISO form with ":" and "." replaced so the
// result is safe in file names on every platform.
func backupTimestamp(t time.Time) string {
	iso := t.UTC().Format("2006-01-02T15:04:05.000Z")

	replacer := strings.NewReplacer(":", "-", ".", "-")

	return replacer.Replace(iso)
}
