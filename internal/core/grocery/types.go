package grocery

import (
	"strings"
)

// Action values accepted on an ActionRecord. Anything else is an unknown
// action and the record is skipped during reconciliation.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionModify = "modify"
)

// Measurement is produced by the external measurement parser and carried
// opaquely through the list. It is replaced wholesale when a new one arrives
// on an add or modify record, never merged.
type Measurement struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Type  string  `json:"type,omitempty"` // weight, volume or count
}

// GroceryItem is a single entry on a list snapshot. Name stays in the
// original input language. Within a snapshot, names are unique under
// case-insensitive comparison; the reconciler enforces this on every mutation.
type GroceryItem struct {
	Name        string       `json:"item"`
	Quantity    float64      `json:"quantity"`
	Measurement *Measurement `json:"measurement,omitempty"`
	Action      string       `json:"action,omitempty"`
}

// ActionRecord is the unit of change extracted from one user utterance.
// A batch of records (one extraction response) is applied to a list as an
// atomic ordered sequence.
type ActionRecord struct {
	Item        string       `json:"item"`
	Quantity    float64      `json:"quantity"`
	Action      string       `json:"action,omitempty"`
	Measurement *Measurement `json:"measurement,omitempty"`
}

// NormalizedAction returns the record's action with the input contract's
// default applied: a missing action means add.
func (r ActionRecord) NormalizedAction() string {
	if r.Action == "" {
		return ActionAdd
	}
	return r.Action
}

// KnownAction reports whether the action is one of add, remove or modify.
func KnownAction(action string) bool {
	switch action {
	case ActionAdd, ActionRemove, ActionModify:
		return true
	}
	return false
}

// SameName is the list-level equality used everywhere in reconciliation:
// case-insensitive literal comparison, never semantic.
func SameName(a, b string) bool {
	return strings.EqualFold(a, b)
}

// FindItem returns the index of the first item whose name matches under
// case-insensitive comparison, or -1.
func FindItem(items []GroceryItem, name string) int {
	for i, item := range items {
		if SameName(item.Name, name) {
			return i
		}
	}
	return -1
}

// CloneList returns a deep copy of a snapshot so callers holding the input
// never observe mutations.
func CloneList(items []GroceryItem) []GroceryItem {
	out := make([]GroceryItem, len(items))
	copy(out, items)
	for i := range out {
		if out[i].Measurement != nil {
			m := *out[i].Measurement
			out[i].Measurement = &m
		}
	}
	return out
}
