package health

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roadwatch-io/roadwatch/internal/snapshot"
)

// Reporter persists the health artifact and the update report.
//
// The health artifact is a single-writer read-modify-write resource: the
// reporter reads the prior artifact, merges the new observation, and commits
// atomically. Concurrent pipeline runs against one output directory are
// unsupported; atomic rename keeps concurrent readers safe.
type Reporter struct {
	dir             string
	apiURL          string
	backupRetention int
	logger          *slog.Logger

	// now is stubbed in tests.
	now func() time.Time
}

// Observation is one run's health outcome.
type Observation struct {
	// Status is StatusOK or StatusDegraded.
	Status string

	// SourceStatus is SourceSuccess or SourceFailed.
	SourceStatus string

	// ItemCount is the number of items persisted; nil when the run never
	// fetched successfully.
	ItemCount *int

	// DurationMS is the run duration; nil when not measured.
	DurationMS *int64

	// ErrorMessage is the terminal failure, empty on success.
	ErrorMessage string
}

// NewReporter creates a health reporter writing into dir.
func NewReporter(dir, apiURL string, backupRetention int, logger *slog.Logger) *Reporter {
	return &Reporter{
		dir:             dir,
		apiURL:          apiURL,
		backupRetention: backupRetention,
		logger:          logger,
		now:             time.Now,
	}
}

// Record merges obs with the prior artifact and writes the result atomically.
//
// LastSuccessfulUpdate advances to now only when obs.Status is StatusOK;
// otherwise the prior value is carried forward (nil if none ever existed).
// A missing or corrupt prior artifact is treated as empty prior state,
// non-fatally.
func (r *Reporter) Record(obs Observation) error {
	now := r.now().UTC()

	lastSuccess := r.priorLastSuccess()
	if obs.Status == StatusOK {
		lastSuccess = &now
	}

	artifact := Artifact{
		Timestamp:            now,
		Status:               obs.Status,
		LastSuccessfulUpdate: lastSuccess,
		Source: Source{
			APIURL: r.apiURL,
			Status: obs.SourceStatus,
		},
		Metrics: Metrics{
			ItemCount:       obs.ItemCount,
			DurationMS:      obs.DurationMS,
			BackupRetention: r.backupRetention,
		},
	}

	if obs.ErrorMessage != "" {
		artifact.Error = &ErrorInfo{Message: obs.ErrorMessage}
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal health artifact: %w", err)
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", r.dir, err)
	}

	path := filepath.Join(r.dir, ArtifactFileName)
	if err := snapshot.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("write health artifact: %w", err)
	}

	r.logger.Debug("Health artifact written",
		slog.String("status", artifact.Status),
		slog.String("source_status", artifact.Source.Status),
	)

	return nil
}

// WriteReport writes the scheduling/report artifact.
func (r *Reporter) WriteReport(success bool, version string, updateInterval time.Duration) error {
	now := r.now().UTC()

	report := Report{
		Timestamp:  now,
		Success:    success,
		APIURL:     r.apiURL,
		DataPath:   filepath.Join(r.dir, snapshot.CanonicalFileName),
		NextUpdate: now.Add(updateInterval),
		Version:    version,
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal update report: %w", err)
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", r.dir, err)
	}

	path := filepath.Join(r.dir, ReportFileName)
	if err := snapshot.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("write update report: %w", err)
	}

	return nil
}

// priorLastSuccess reads LastSuccessfulUpdate from the existing artifact.
// Missing or corrupt artifacts mean no prior state.
func (r *Reporter) priorLastSuccess() *time.Time {
	data, err := os.ReadFile(filepath.Join(r.dir, ArtifactFileName))
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Warn("Prior health artifact unreadable, starting from empty state",
				slog.String("error", err.Error()))
		}

		return nil
	}

	var prior Artifact
	if err := json.Unmarshal(data, &prior); err != nil {
		r.logger.Warn("Prior health artifact corrupt, starting from empty state",
			slog.String("error", err.Error()))

		return nil
	}

	return prior.LastSuccessfulUpdate
}
