// Package diff classifies fetched roadmap items against the previous snapshot.
package diff

import (
	"github.com/roadwatch-io/roadwatch/internal/roadmap"
	"github.com/roadwatch-io/roadwatch/internal/snapshot"
)

// comparedField pairs a reported field name with its textual extractor.
// Missing fields read as empty text, so missing-to-present transitions (and
// the reverse) count as changes.
type comparedField struct {
	name    string
	extract func(*roadmap.Item) string
}

// comparedFields are diffed in this order; ChangedFields preserves it.
var comparedFields = []comparedField{
	{"title", func(i *roadmap.Item) string { return i.Title }},
	{"description", func(i *roadmap.Item) string { return i.Description }},
	{"status", func(i *roadmap.Item) string { return i.Status }},
	{"publicDisclosureAvailabilityDate", func(i *roadmap.Item) string { return i.PublicDisclosureAvailabilityDate }},
	{"tagsContainer", func(i *roadmap.Item) string { return i.TagsJSON() }},
}

// Result holds the annotated item set plus per-class counts.
type Result struct {
	// Items are the fetched items, annotated with ChangeType/ChangedFields.
	Items []roadmap.Item

	// Removed holds items present only in the previous snapshot, annotated
	// ChangeTypeRemoved. Reported for operators and the change feed; never
	// inserted into the new snapshot.
	Removed []roadmap.Item

	New       int
	Changed   int
	Unchanged int
}

// Detect annotates items relative to the previous snapshot.
//
// First-run policy: with no previous snapshot (nil - missing, unreadable, or
// corrupt), every item is marked unchanged. "New" is reserved for genuinely
// novel items relative to a real prior state, so a first import is never
// flagged wholesale.
//
// Identity is by ID only; content comparison is per-field textual over
// title, description, status, disclosure date, and the serialized tag
// container.
func Detect(items []roadmap.Item, previous *snapshot.Snapshot) Result {
	result := Result{Items: items}

	if previous == nil {
		for i := range items {
			items[i].ChangeType = roadmap.ChangeTypeUnchanged
			items[i].ChangedFields = []string{}
		}

		result.Unchanged = len(items)

		return result
	}

	previousByID := make(map[roadmap.ItemID]*roadmap.Item, len(previous.Items))
	for i := range previous.Items {
		previousByID[previous.Items[i].ID] = &previous.Items[i]
	}

	seen := make(map[roadmap.ItemID]struct{}, len(items))

	for i := range items {
		item := &items[i]
		seen[item.ID] = struct{}{}

		prev, ok := previousByID[item.ID]
		if !ok {
			item.ChangeType = roadmap.ChangeTypeNew
			item.ChangedFields = []string{}
			result.New++

			continue
		}

		changed := []string{}

		for _, field := range comparedFields {
			if field.extract(prev) != field.extract(item) {
				changed = append(changed, field.name)
			}
		}

		item.ChangedFields = changed

		if len(changed) > 0 {
			item.ChangeType = roadmap.ChangeTypeChanged
			result.Changed++
		} else {
			item.ChangeType = roadmap.ChangeTypeUnchanged
			result.Unchanged++
		}
	}

	// Items that vanished since the previous snapshot, in prior order.
	for i := range previous.Items {
		if _, ok := seen[previous.Items[i].ID]; ok {
			continue
		}

		removed := previous.Items[i]
		removed.ChangeType = roadmap.ChangeTypeRemoved
		removed.ChangedFields = []string{}

		result.Removed = append(result.Removed, removed)
	}

	return result
}
