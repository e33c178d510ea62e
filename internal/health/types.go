// Package health persists and checks the pipeline's operational status
// artifacts. The health artifact is the compact status file distinct from
// the full snapshot, used for freshness and liveness checks by automation
// that never runs the pipeline itself.
package health

import "time"

// Artifact file names under the output directory.
const (
	ArtifactFileName = "health-status.json"
	ReportFileName   = "update-report.json"
)

// Health status values.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// Source status values.
const (
	SourceSuccess = "success"
	SourceFailed  = "failed"
)

type (
	// Artifact is the persisted operational status. It survives across
	// failed runs: LastSuccessfulUpdate only advances on success and is
	// carried forward unchanged on failure, never reset once set.
	Artifact struct {
		Timestamp            time.Time  `json:"timestamp"`
		Status               string     `json:"status"`
		LastSuccessfulUpdate *time.Time `json:"lastSuccessfulUpdate"`
		Source               Source     `json:"source"`
		Metrics              Metrics    `json:"metrics"`
		Error                *ErrorInfo `json:"error,omitempty"`
	}

	// Source describes the upstream feed and the outcome of reaching it.
	Source struct {
		APIURL string `json:"apiUrl"`
		Status string `json:"status"`
	}

	// Metrics carries run measurements. ItemCount and DurationMS are absent
	// on runs that never fetched successfully.
	Metrics struct {
		ItemCount       *int   `json:"itemCount,omitempty"`
		DurationMS      *int64 `json:"durationMs,omitempty"`
		BackupRetention int    `json:"backupRetention"`
	}

	// ErrorInfo carries the terminal failure message of a degraded run.
	ErrorInfo struct {
		Message string `json:"message"`
	}

	// Report is the scheduling/report artifact. Purely informational; no
	// invariants beyond well-formed timestamps.
	Report struct {
		Timestamp  time.Time `json:"timestamp"`
		Success    bool      `json:"success"`
		APIURL     string    `json:"apiUrl"`
		DataPath   string    `json:"dataPath"`
		NextUpdate time.Time `json:"nextUpdate"`
		Version    string    `json:"version"`
	}
)
