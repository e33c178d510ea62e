package health

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func readArtifact(t *testing.T, dir string) Artifact {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, ArtifactFileName))
	require.NoError(t, err)

	var artifact Artifact
	require.NoError(t, json.Unmarshal(data, &artifact))

	return artifact
}

func TestRecord_SuccessfulRun(t *testing.T) {
	dir := t.TempDir()
	reporter := NewReporter(dir, "https://example.com/api", 10, testLogger())

	now := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	reporter.now = func() time.Time { return now }

	err := reporter.Record(Observation{
		Status:       StatusOK,
		SourceStatus: SourceSuccess,
		ItemCount:    intPtr(450),
		DurationMS:   int64Ptr(2300),
	})
	require.NoError(t, err)

	artifact := readArtifact(t, dir)
	assert.Equal(t, StatusOK, artifact.Status)
	assert.Equal(t, SourceSuccess, artifact.Source.Status)
	assert.Equal(t, "https://example.com/api", artifact.Source.APIURL)
	require.NotNil(t, artifact.LastSuccessfulUpdate)
	assert.True(t, artifact.LastSuccessfulUpdate.Equal(now))
	require.NotNil(t, artifact.Metrics.ItemCount)
	assert.Equal(t, 450, *artifact.Metrics.ItemCount)
	assert.Equal(t, 10, artifact.Metrics.BackupRetention)
	assert.Nil(t, artifact.Error)
}

func TestRecord_FailureCarriesForwardLastSuccess(t *testing.T) {
	dir := t.TempDir()
	reporter := NewReporter(dir, "https://example.com/api", 10, testLogger())

	goodTime := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	reporter.now = func() time.Time { return goodTime }

	require.NoError(t, reporter.Record(Observation{
		Status:       StatusOK,
		SourceStatus: SourceSuccess,
		ItemCount:    intPtr(450),
	}))

	// A later failed run must not move lastSuccessfulUpdate.
	badTime := goodTime.Add(2 * time.Hour)
	reporter.now = func() time.Time { return badTime }

	require.NoError(t, reporter.Record(Observation{
		Status:       StatusDegraded,
		SourceStatus: SourceFailed,
		ErrorMessage: "all 4 fetch attempts failed: unexpected HTTP status 502",
	}))

	artifact := readArtifact(t, dir)
	assert.Equal(t, StatusDegraded, artifact.Status)
	assert.True(t, artifact.Timestamp.Equal(badTime))
	require.NotNil(t, artifact.LastSuccessfulUpdate)
	assert.True(t, artifact.LastSuccessfulUpdate.Equal(goodTime), "lastSuccessfulUpdate must carry forward")
	require.NotNil(t, artifact.Error)
	assert.Contains(t, artifact.Error.Message, "502")
}

func TestRecord_FailureWithNoPriorSuccess(t *testing.T) {
	dir := t.TempDir()
	reporter := NewReporter(dir, "https://example.com/api", 10, testLogger())

	require.NoError(t, reporter.Record(Observation{
		Status:       StatusDegraded,
		SourceStatus: SourceFailed,
		ErrorMessage: "request timed out after 30s",
	}))

	artifact := readArtifact(t, dir)
	assert.Nil(t, artifact.LastSuccessfulUpdate)
	assert.Nil(t, artifact.Metrics.ItemCount)
}

func TestRecord_CorruptPriorArtifactIsNonFatal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ArtifactFileName), []byte(`{{{`), 0o644))

	reporter := NewReporter(dir, "https://example.com/api", 10, testLogger())
	require.NoError(t, reporter.Record(Observation{
		Status:       StatusOK,
		SourceStatus: SourceSuccess,
		ItemCount:    intPtr(1),
	}))

	artifact := readArtifact(t, dir)
	assert.NotNil(t, artifact.LastSuccessfulUpdate)
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	reporter := NewReporter(dir, "https://example.com/api", 10, testLogger())

	now := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	reporter.now = func() time.Time { return now }

	require.NoError(t, reporter.WriteReport(true, "1.2.0", 6*time.Hour))

	data, err := os.ReadFile(filepath.Join(dir, ReportFileName))
	require.NoError(t, err)

	var report Report
	require.NoError(t, json.Unmarshal(data, &report))

	assert.True(t, report.Success)
	assert.Equal(t, "1.2.0", report.Version)
	assert.True(t, report.NextUpdate.Equal(now.Add(6*time.Hour)))
	assert.Contains(t, report.DataPath, "roadmap-data.json")
}
