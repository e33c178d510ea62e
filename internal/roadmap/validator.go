package roadmap

import (
	"encoding/json"
	"fmt"
)

// requiredKeys are the keys every roadmap record must carry before it is
// trusted downstream. Presence only; value types are checked by decode.
var requiredKeys = []string{"id", "title", "description", "status"}

// ShapeError reports a structural validation failure in a fetched payload.
// Shape failures are fatal for the run and never retried: a malformed payload
// will not become well-formed by asking again.
type ShapeError struct {
	// Index is the position of the first offending record, or -1 when the
	// payload as a whole is not a JSON array.
	Index int

	// Reason describes what failed.
	Reason string
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid payload shape: %s", e.Reason)
	}

	return fmt.Sprintf("invalid record at index %d: %s", e.Index, e.Reason)
}

// IsRecord reports whether a decoded JSON object carries all required keys.
// Presence only - the open-ended upstream vocabulary is not type-checked here.
func IsRecord(fields map[string]json.RawMessage) bool {
	for _, key := range requiredKeys {
		if _, ok := fields[key]; !ok {
			return false
		}
	}

	return true
}

// DecodeItems validates the shape of a fetched payload and decodes it into
// typed Items. This is the only constructor of trusted Items: downstream
// components receive already-validated values and never re-check shape.
//
// Validation rules:
//   - The payload must be a JSON array (not an object, scalar, or null).
//   - Every element must be an object carrying id, title, description, status.
//   - The first offending element's index is named in the returned *ShapeError.
//
// The input must already be syntactically valid JSON; the fetcher classifies
// syntax failures separately as parse errors.
func DecodeItems(data []byte) ([]Item, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, &ShapeError{Index: -1, Reason: "payload is not a JSON array"}
	}

	items := make([]Item, 0, len(elements))

	for i, element := range elements {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(element, &fields); err != nil {
			return nil, &ShapeError{Index: i, Reason: "record is not a JSON object"}
		}

		for _, key := range requiredKeys {
			if _, ok := fields[key]; !ok {
				return nil, &ShapeError{Index: i, Reason: fmt.Sprintf("missing required key %q", key)}
			}
		}

		var item Item
		if err := json.Unmarshal(element, &item); err != nil {
			return nil, &ShapeError{Index: i, Reason: err.Error()}
		}

		items = append(items, item)
	}

	return items, nil
}
