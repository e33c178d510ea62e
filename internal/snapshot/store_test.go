package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadwatch-io/roadwatch/internal/roadmap"
)

func TestLoad_Roundtrip(t *testing.T) {
	dir := t.TempDir()
	writer := NewWriter(Config{OutputDir: dir}, testLogger())

	original := testSnapshot(t, 2)
	original.Items[0].ChangeType = roadmap.ChangeTypeChanged
	original.Items[0].ChangedFields = []string{"title"}
	require.NoError(t, writer.Save(original))

	loaded, err := Load(filepath.Join(dir, CanonicalFileName))
	require.NoError(t, err)

	assert.Equal(t, original.Metadata.TotalItems, loaded.Metadata.TotalItems)
	assert.Equal(t, original.Items[0].ID, loaded.Items[0].ID)
	assert.Equal(t, roadmap.ChangeTypeChanged, loaded.Items[0].ChangeType)
	assert.Equal(t, []string{"title"}, loaded.Items[0].ChangedFields)
	assert.Equal(t, original.Statistics.TotalItems, loaded.Statistics.TotalItems)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), CanonicalFileName))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), CanonicalFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"metadata": {`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ItemCountMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), CanonicalFileName)
	content := `{"metadata": {"totalItems": 5, "apiSource": "x", "version": "1"}, "items": [], "statistics": {"totalItems": 0}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrItemCountMismatch)
}

func TestLoadPrevious(t *testing.T) {
	dir := t.TempDir()

	// First run: nothing there.
	assert.Nil(t, LoadPrevious(dir, testLogger()))

	// Corrupt snapshot degrades to first-run behavior.
	path := filepath.Join(dir, CanonicalFileName)
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	assert.Nil(t, LoadPrevious(dir, testLogger()))

	// A valid snapshot loads.
	writer := NewWriter(Config{OutputDir: dir}, testLogger())
	require.NoError(t, writer.Save(testSnapshot(t, 3)))

	previous := LoadPrevious(dir, testLogger())
	require.NotNil(t, previous)
	assert.Len(t, previous.Items, 3)
}
