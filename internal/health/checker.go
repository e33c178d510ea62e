package health

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultMaxAge is the staleness threshold for the last successful update.
const DefaultMaxAge = 8 * time.Hour

// CheckResult is the outcome of an independent health check. OK is the
// boolean AND of "no errors"; warnings never fail the check.
type CheckResult struct {
	OK       bool     `json:"ok"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Summary  string   `json:"summary"`
}

// checkDoc is a loose view of the persisted artifact so that individually
// malformed fields degrade to per-field findings instead of failing the
// whole read.
type checkDoc struct {
	Timestamp            *string `json:"timestamp"`
	Status               string  `json:"status"`
	LastSuccessfulUpdate *string `json:"lastSuccessfulUpdate"`
	Source               struct {
		APIURL string `json:"apiUrl"`
		Status string `json:"status"`
	} `json:"source"`
	Metrics struct {
		ItemCount *int `json:"itemCount"`
	} `json:"metrics"`
}

// Check reads the persisted health artifact from dir and asserts freshness
// without re-running the pipeline. No side effects.
//
// Errors (fail the check): artifact missing or unreadable; status not "ok";
// source status not "success"; item count missing or non-positive; last
// successful update missing, unparseable, or older than maxAge.
//
// Warnings (reported, non-fatal): missing/invalid timestamp; missing
// companion report file.
func Check(dir string, maxAge time.Duration) CheckResult {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	result := CheckResult{Errors: []string{}, Warnings: []string{}}

	path := filepath.Join(dir, ArtifactFileName)

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("health artifact unreadable: %v", err))

		return finish(result, nil)
	}

	var doc checkDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("health artifact corrupt: %v", err))

		return finish(result, nil)
	}

	if doc.Status != StatusOK {
		result.Errors = append(result.Errors, fmt.Sprintf("status is %q, want %q", doc.Status, StatusOK))
	}

	if doc.Source.Status != SourceSuccess {
		result.Errors = append(result.Errors, fmt.Sprintf("source status is %q, want %q", doc.Source.Status, SourceSuccess))
	}

	if doc.Metrics.ItemCount == nil {
		result.Errors = append(result.Errors, "metrics.itemCount is missing")
	} else if *doc.Metrics.ItemCount <= 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("metrics.itemCount is %d, want > 0", *doc.Metrics.ItemCount))
	}

	var lastSuccess *time.Time

	switch {
	case doc.LastSuccessfulUpdate == nil:
		result.Errors = append(result.Errors, "lastSuccessfulUpdate is missing")
	default:
		parsed, err := time.Parse(time.RFC3339, *doc.LastSuccessfulUpdate)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("lastSuccessfulUpdate unparseable: %v", err))
		} else {
			lastSuccess = &parsed

			if age := time.Since(parsed); age > maxAge {
				result.Errors = append(result.Errors,
					fmt.Sprintf("last successful update is %s old, threshold %s", age.Round(time.Minute), maxAge))
			}
		}
	}

	if doc.Timestamp == nil {
		result.Warnings = append(result.Warnings, "timestamp is missing")
	} else if _, err := time.Parse(time.RFC3339, *doc.Timestamp); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("timestamp unparseable: %v", err))
	}

	if _, err := os.Stat(filepath.Join(dir, ReportFileName)); err != nil {
		result.Warnings = append(result.Warnings, "update report is missing")
	}

	return finish(result, lastSuccess)
}

// finish derives OK and the one-line summary.
func finish(result CheckResult, lastSuccess *time.Time) CheckResult {
	result.OK = len(result.Errors) == 0

	switch {
	case result.OK && lastSuccess != nil:
		result.Summary = fmt.Sprintf("healthy, last successful update %s ago",
			time.Since(*lastSuccess).Round(time.Minute))
	case result.OK:
		result.Summary = "healthy"
	default:
		result.Summary = fmt.Sprintf("unhealthy: %d error(s), %d warning(s)",
			len(result.Errors), len(result.Warnings))
	}

	return result
}
