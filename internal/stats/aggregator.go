// Package stats reduces a roadmap item set into grouped counts.
package stats

import (
	"fmt"
	"time"

	"github.com/roadwatch-io/roadwatch/internal/roadmap"
)

// statusUnknown is the bucket label for items without a status value.
const statusUnknown = "Unknown"

// disclosureDateLayouts are the accepted disclosure-date forms, tried in
// order. Anything else is excluded from the quarter grouping.
var disclosureDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"January 2006",
}

// Statistics holds counts grouped by status, product tag, platform tag, and
// calendar quarter of the disclosure date.
type Statistics struct {
	TotalItems int            `json:"totalItems"`
	ByStatus   map[string]int `json:"byStatus"`
	ByProduct  map[string]int `json:"byProduct"`
	ByPlatform map[string]int `json:"byPlatform"`
	ByQuarter  map[string]int `json:"byQuarter"`
}

// Aggregate reduces items into Statistics in a single pass. Pure: no item is
// mutated and no external state is read.
//
// Bucket rules:
//   - Unset status counts under "Unknown".
//   - Absent tag arrays contribute nothing (not an error).
//   - Items without a parseable disclosure date are silently excluded from
//     ByQuarter.
func Aggregate(items []roadmap.Item) Statistics {
	stats := Statistics{
		TotalItems: len(items),
		ByStatus:   make(map[string]int),
		ByProduct:  make(map[string]int),
		ByPlatform: make(map[string]int),
		ByQuarter:  make(map[string]int),
	}

	for i := range items {
		item := &items[i]

		status := item.Status
		if status == "" {
			status = statusUnknown
		}

		stats.ByStatus[status]++

		if item.Tags != nil {
			for _, tag := range item.Tags.Products {
				stats.ByProduct[tag.TagName]++
			}

			for _, tag := range item.Tags.Platforms {
				stats.ByPlatform[tag.TagName]++
			}
		}

		if quarter, ok := quarterOf(item.PublicDisclosureAvailabilityDate); ok {
			stats.ByQuarter[quarter]++
		}
	}

	return stats
}

// quarterOf formats a disclosure date as "<year> Q<1-4>".
func quarterOf(date string) (string, bool) {
	if date == "" {
		return "", false
	}

	for _, layout := range disclosureDateLayouts {
		parsed, err := time.Parse(layout, date)
		if err != nil {
			continue
		}

		quarter := (int(parsed.Month())-1)/3 + 1

		return fmt.Sprintf("%d Q%d", parsed.Year(), quarter), true
	}

	return "", false
}
