package feed

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadwatch-io/roadwatch/internal/diff"
	"github.com/roadwatch-io/roadwatch/internal/roadmap"
)

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.False(t, Config{Topic: "roadmap-changes"}.Enabled())
	assert.True(t, Config{Brokers: []string{"broker-1:9092"}}.Enabled())
}

func TestChangeMessages_OnlyChangesPublished(t *testing.T) {
	now := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)

	result := diff.Result{
		Items: []roadmap.Item{
			{ID: "1", Title: "Same", Status: "Launched", ChangeType: roadmap.ChangeTypeUnchanged, ChangedFields: []string{}},
			{ID: "2", Title: "Renamed", Status: "Rolling out", ChangeType: roadmap.ChangeTypeChanged, ChangedFields: []string{"title", "status"}},
			{ID: "3", Title: "Fresh", Status: "In development", ChangeType: roadmap.ChangeTypeNew, ChangedFields: []string{}},
		},
		Removed: []roadmap.Item{
			{ID: "4", Title: "Gone", Status: "Cancelled", ChangeType: roadmap.ChangeTypeRemoved, ChangedFields: []string{}},
		},
		Changed:   1,
		New:       1,
		Unchanged: 1,
	}

	messages, err := changeMessages("run-123", now, result)
	require.NoError(t, err)
	require.Len(t, messages, 3)

	// Keyed by item ID for per-item ordering.
	assert.Equal(t, []byte("2"), messages[0].Key)
	assert.Equal(t, []byte("3"), messages[1].Key)
	assert.Equal(t, []byte("4"), messages[2].Key)

	var event changeEvent
	require.NoError(t, json.Unmarshal(messages[0].Value, &event))
	assert.Equal(t, roadmap.ChangeTypeChanged, event.ChangeType)
	assert.Equal(t, []string{"title", "status"}, event.ChangedFields)
	assert.Equal(t, "run-123", event.RunID)
	assert.True(t, event.Timestamp.Equal(now))

	require.NoError(t, json.Unmarshal(messages[2].Value, &event))
	assert.Equal(t, roadmap.ChangeTypeRemoved, event.ChangeType)
}

func TestChangeMessages_NothingToPublish(t *testing.T) {
	result := diff.Result{
		Items: []roadmap.Item{
			{ID: "1", ChangeType: roadmap.ChangeTypeUnchanged, ChangedFields: []string{}},
		},
		Unchanged: 1,
	}

	messages, err := changeMessages("run-123", time.Now(), result)
	require.NoError(t, err)
	assert.Empty(t, messages)
}
