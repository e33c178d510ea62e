// Package roadmap provides the typed roadmap item domain model and shape validation.
package roadmap

import (
	"encoding/json"
	"fmt"
)

type (
	// Item represents a single roadmap entry as published by the upstream feed - Domain Model.
	//
	// Items are immutable as fetched. The pipeline annotates them additively with
	// ChangeType and ChangedFields after diffing against the previous snapshot;
	// upstream fields are never rewritten.
	//
	// Construct trusted Items only through DecodeItems, which enforces the
	// required-key contract before any field is read downstream.
	Item struct {
		// ID uniquely identifies the item. Upstream may publish it as a JSON
		// number or string; both normalize to the same ItemID.
		ID ItemID `json:"id"`

		// Title is the short feature name. Required, non-empty in practice.
		Title string `json:"title"`

		// Description is the long-form feature description.
		Description string `json:"description"`

		// Status is an open-ended vocabulary, e.g. "In development",
		// "Rolling out", "Launched".
		Status string `json:"status"`

		// PublicDisclosureAvailabilityDate is date-like text ("2025-03-01",
		// "March 2025", RFC 3339). Optional; empty means undisclosed.
		PublicDisclosureAvailabilityDate string `json:"publicDisclosureAvailabilityDate,omitempty"`

		// Tags groups product, platform, and release-phase labels. Optional.
		Tags *TagsContainer `json:"tagsContainer,omitempty"`

		// ChangeType is the per-run change classification. Set by the change
		// detector, never by upstream.
		ChangeType ChangeType `json:"_changeType"`

		// ChangedFields lists which compared fields differ from the previous
		// snapshot. Empty unless ChangeType is ChangeTypeChanged.
		ChangedFields []string `json:"_changedFields"`
	}

	// ItemID is a string-normalized item identifier.
	ItemID string

	// TagsContainer groups the labelled tag dimensions carried by an item.
	TagsContainer struct {
		Products     []Tag `json:"products"`
		Platforms    []Tag `json:"platforms"`
		ReleasePhase []Tag `json:"releasePhase"`
	}

	// Tag is a single labelled tag.
	Tag struct {
		TagName string `json:"tagName"`
	}

	// ChangeType classifies an item relative to the previous snapshot.
	ChangeType string
)

// Change classifications assigned by the change detector.
const (
	ChangeTypeNew       ChangeType = "new"
	ChangeTypeChanged   ChangeType = "changed"
	ChangeTypeUnchanged ChangeType = "unchanged"

	// ChangeTypeRemoved marks items present only in the previous snapshot.
	// Removed items are reported, never re-inserted into the new snapshot.
	ChangeTypeRemoved ChangeType = "removed"
)

// IsValid reports whether c is a known change classification.
func (c ChangeType) IsValid() bool {
	switch c {
	case ChangeTypeNew, ChangeTypeChanged, ChangeTypeUnchanged, ChangeTypeRemoved:
		return true
	}

	return false
}

// UnmarshalJSON accepts both string and numeric identifiers.
// The upstream feed has shipped both over time.
func (id *ItemID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ItemID(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*id = ItemID(n.String())

		return nil
	}

	return fmt.Errorf("id must be a string or number, got %s", string(data))
}

// TagsJSON returns the canonical serialized form of the item's tag container,
// or the empty string when no tags are present. Change detection compares tag
// containers by this text.
func (i *Item) TagsJSON() string {
	if i.Tags == nil {
		return ""
	}

	data, err := json.Marshal(i.Tags)
	if err != nil {
		// TagsContainer contains only strings and slices; marshal cannot fail.
		return ""
	}

	return string(data)
}
