// Package snapshot persists the processed roadmap dataset as atomic file
// artifacts with bounded backup history.
package snapshot

import (
	"errors"
	"fmt"
	"time"

	"github.com/roadwatch-io/roadwatch/internal/roadmap"
	"github.com/roadwatch-io/roadwatch/internal/stats"
)

// ErrItemCountMismatch is returned when metadata.totalItems disagrees with
// the item count. The invariant is enforced on both save and load.
var ErrItemCountMismatch = errors.New("metadata.totalItems does not match items length")

type (
	// Snapshot is one full persisted dataset plus metadata and aggregated
	// statistics.
	Snapshot struct {
		Metadata   Metadata         `json:"metadata"`
		Items      []roadmap.Item   `json:"items"`
		Statistics stats.Statistics `json:"statistics"`
	}

	// Metadata describes when and from where a snapshot was produced.
	Metadata struct {
		LastUpdated time.Time `json:"lastUpdated"`
		TotalItems  int       `json:"totalItems"`
		APISource   string    `json:"apiSource"`
		Version     string    `json:"version"`
	}
)

// New builds a snapshot for the given items. Metadata.TotalItems is derived
// from the item count, never supplied by the caller.
func New(items []roadmap.Item, statistics stats.Statistics, apiSource, version string, now time.Time) *Snapshot {
	return &Snapshot{
		Metadata: Metadata{
			LastUpdated: now.UTC(),
			TotalItems:  len(items),
			APISource:   apiSource,
			Version:     version,
		},
		Items:      items,
		Statistics: statistics,
	}
}

// Validate checks the snapshot's internal consistency.
func (s *Snapshot) Validate() error {
	if s.Metadata.TotalItems != len(s.Items) {
		return fmt.Errorf("%w: metadata says %d, items hold %d",
			ErrItemCountMismatch, s.Metadata.TotalItems, len(s.Items))
	}

	return nil
}
