package grocery

import (
	"encoding/json"
	"fmt"
	"math"
)

// DecodeActionRecords decodes the extraction input contract: a JSON array of
// {item, quantity, action?, measurement?} objects. Records are validated
// structurally here; unknown action strings survive decoding so the
// reconciler can report and skip them individually.
func DecodeActionRecords(data []byte) ([]ActionRecord, error) {
	var records []ActionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode action records: %w", err)
	}

	for i, r := range records {
		if r.Item == "" {
			return nil, fmt.Errorf("action record %d: item is required", i)
		}
		if math.IsNaN(r.Quantity) || r.Quantity < 0 {
			return nil, fmt.Errorf("action record %d: quantity must be a non-negative number", i)
		}
	}

	return records, nil
}

// ValidItem reports whether a single item satisfies the structural contract
// used by the evaluator's schema check: non-empty name, numeric non-NaN
// quantity, and a known action when one is present.
func ValidItem(item GroceryItem) bool {
	if item.Name == "" {
		return false
	}
	if math.IsNaN(item.Quantity) {
		return false
	}
	if item.Action != "" && !KnownAction(item.Action) {
		return false
	}
	return true
}

// ValidList reports whether every item in the snapshot is well formed.
func ValidList(items []GroceryItem) bool {
	for _, item := range items {
		if !ValidItem(item) {
			return false
		}
	}
	return true
}
