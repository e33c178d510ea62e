package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadwatch-io/roadwatch/internal/health"
	"github.com/roadwatch-io/roadwatch/internal/roadmap"
	"github.com/roadwatch-io/roadwatch/internal/snapshot"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(apiURL, outputDir string) *Config {
	return &Config{
		APIURL:          apiURL,
		OutputDir:       outputDir,
		LogLevel:        slog.LevelInfo,
		FetchTimeout:    5 * time.Second,
		RetryCount:      0,
		BackupRetention: 5,
		MaxAge:          8 * time.Hour,
		UpdateInterval:  6 * time.Hour,
	}
}

func payloadServer(payload *atomic.Value) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(payload.Load().(string)))
	}))
}

func TestRun_Success(t *testing.T) {
	var payload atomic.Value
	payload.Store(`[
		{"id": 1, "title": "Feature A", "description": "A.", "status": "In development"},
		{"id": 2, "title": "Feature B", "description": "B.", "status": "Launched"}
	]`)

	server := payloadServer(&payload)
	defer server.Close()

	dir := t.TempDir()
	runner := New(testConfig(server.URL, dir), "1.0.0-test", testLogger())

	summary := runner.Run(context.Background())

	assert.True(t, summary.Success)
	assert.Empty(t, summary.Error)
	require.NotNil(t, summary.ItemCount)
	assert.Equal(t, 2, *summary.ItemCount)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, StateDone, runner.State())

	// All artifacts present.
	assert.FileExists(t, filepath.Join(dir, snapshot.CanonicalFileName))
	assert.FileExists(t, filepath.Join(dir, snapshot.CompactFileName))
	assert.FileExists(t, filepath.Join(dir, health.ArtifactFileName))
	assert.FileExists(t, filepath.Join(dir, health.ReportFileName))

	snap, err := snapshot.Load(filepath.Join(dir, snapshot.CanonicalFileName))
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Metadata.TotalItems)
	assert.Equal(t, server.URL, snap.Metadata.APISource)
	assert.Equal(t, "1.0.0-test", snap.Metadata.Version)

	// First run: everything unchanged by policy.
	for _, item := range snap.Items {
		assert.Equal(t, roadmap.ChangeTypeUnchanged, item.ChangeType)
	}

	check := health.Check(dir, 8*time.Hour)
	assert.True(t, check.OK, "errors: %v", check.Errors)
}

func TestRun_SecondRunDetectsChanges(t *testing.T) {
	var payload atomic.Value
	payload.Store(`[{"id": 1, "title": "Original", "description": "D.", "status": "In development"}]`)

	server := payloadServer(&payload)
	defer server.Close()

	dir := t.TempDir()
	cfg := testConfig(server.URL, dir)

	require.True(t, New(cfg, "1.0.0-test", testLogger()).Run(context.Background()).Success)

	payload.Store(`[
		{"id": 1, "title": "Renamed", "description": "D.", "status": "In development"},
		{"id": 2, "title": "Added", "description": "E.", "status": "In development"}
	]`)

	require.True(t, New(cfg, "1.0.0-test", testLogger()).Run(context.Background()).Success)

	snap, err := snapshot.Load(filepath.Join(dir, snapshot.CanonicalFileName))
	require.NoError(t, err)
	require.Len(t, snap.Items, 2)

	assert.Equal(t, roadmap.ChangeTypeChanged, snap.Items[0].ChangeType)
	assert.Equal(t, []string{"title"}, snap.Items[0].ChangedFields)
	assert.Equal(t, roadmap.ChangeTypeNew, snap.Items[1].ChangeType)
}

func TestRun_FetchFailureWritesDegradedHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	dir := t.TempDir()
	runner := New(testConfig(server.URL, dir), "1.0.0-test", testLogger())

	summary := runner.Run(context.Background())

	assert.False(t, summary.Success)
	assert.Contains(t, summary.Error, "502")
	assert.Nil(t, summary.ItemCount)
	assert.Equal(t, StateFailed, runner.State())

	// The degraded health artifact still gets written.
	data, err := os.ReadFile(filepath.Join(dir, health.ArtifactFileName))
	require.NoError(t, err)

	var artifact health.Artifact
	require.NoError(t, json.Unmarshal(data, &artifact))
	assert.Equal(t, health.StatusDegraded, artifact.Status)
	assert.Equal(t, health.SourceFailed, artifact.Source.Status)
	assert.Nil(t, artifact.LastSuccessfulUpdate)
	require.NotNil(t, artifact.Error)

	// No snapshot appears from a failed run.
	assert.NoFileExists(t, filepath.Join(dir, snapshot.CanonicalFileName))
}

func TestRun_FailureAfterSuccessCarriesForwardLastGood(t *testing.T) {
	var payload atomic.Value
	payload.Store(`[{"id": 1, "title": "T", "description": "D.", "status": "Launched"}]`)

	server := payloadServer(&payload)
	defer server.Close()

	dir := t.TempDir()
	cfg := testConfig(server.URL, dir)

	require.True(t, New(cfg, "1.0.0-test", testLogger()).Run(context.Background()).Success)

	data, err := os.ReadFile(filepath.Join(dir, health.ArtifactFileName))
	require.NoError(t, err)

	var good health.Artifact
	require.NoError(t, json.Unmarshal(data, &good))
	require.NotNil(t, good.LastSuccessfulUpdate)

	// Upstream breaks; the run fails but the last-good timestamp survives.
	payload.Store(`not json at all`)

	summary := New(cfg, "1.0.0-test", testLogger()).Run(context.Background())
	assert.False(t, summary.Success)

	data, err = os.ReadFile(filepath.Join(dir, health.ArtifactFileName))
	require.NoError(t, err)

	var degraded health.Artifact
	require.NoError(t, json.Unmarshal(data, &degraded))
	assert.Equal(t, health.StatusDegraded, degraded.Status)
	require.NotNil(t, degraded.LastSuccessfulUpdate)
	assert.True(t, degraded.LastSuccessfulUpdate.Equal(*good.LastSuccessfulUpdate))

	// The previous snapshot stays in place untouched.
	snap, err := snapshot.Load(filepath.Join(dir, snapshot.CanonicalFileName))
	require.NoError(t, err)
	assert.Len(t, snap.Items, 1)
}

func TestRun_ShapeFailureIsNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		_, _ = w.Write([]byte(`{"wrapped": true}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL, t.TempDir())
	cfg.RetryCount = 5

	summary := New(cfg, "1.0.0-test", testLogger()).Run(context.Background())

	assert.False(t, summary.Success)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestRun_BackupsAccumulateAndPrune(t *testing.T) {
	var payload atomic.Value
	payload.Store(`[{"id": 1, "title": "T", "description": "D.", "status": "Launched"}]`)

	server := payloadServer(&payload)
	defer server.Close()

	dir := t.TempDir()
	cfg := testConfig(server.URL, dir)
	cfg.BackupRetention = 2

	for range 4 {
		require.True(t, New(cfg, "1.0.0-test", testLogger()).Run(context.Background()).Success)
		time.Sleep(5 * time.Millisecond)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	backups := 0

	for _, entry := range entries {
		name := entry.Name()
		if name != snapshot.CanonicalFileName && name != snapshot.CompactFileName &&
			name != health.ArtifactFileName && name != health.ReportFileName {
			backups++
		}
	}

	assert.Equal(t, 2, backups)
}
