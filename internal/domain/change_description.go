package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FieldChange records one field-level difference between two entity
// versions. Old and new values are JSON-encoded so arbitrary shapes survive
// the trip through storage and the wire.
type FieldChange struct {
	Name     string `json:"name"`
	OldValue string `json:"oldValue,omitempty"`
	NewValue string `json:"newValue,omitempty"`
}

// ChangeDescription describes the field-level differences between an entity
// version and its predecessor. Immutable once produced; version views consume
// it read-only.
type ChangeDescription struct {
	FieldsAdded     []FieldChange `json:"fieldsAdded"`
	FieldsUpdated   []FieldChange `json:"fieldsUpdated"`
	FieldsDeleted   []FieldChange `json:"fieldsDeleted"`
	PreviousVersion int64         `json:"previousVersion"`
}

// IsEmpty reports whether no field changed.
func (cd ChangeDescription) IsEmpty() bool {
	return len(cd.FieldsAdded) == 0 && len(cd.FieldsUpdated) == 0 && len(cd.FieldsDeleted) == 0
}

// ComputeChangeDescription flattens the old and new entity documents into
// dotted field paths and classifies every path as added, updated or deleted.
// A field name appears in at most one category.
func ComputeChangeDescription(oldDoc, newDoc map[string]any, previousVersion int64) (ChangeDescription, error) {
	oldFlat := map[string]string{}
	if len(oldDoc) > 0 {
		if err := flattenDocument("", oldDoc, oldFlat); err != nil {
			return ChangeDescription{}, fmt.Errorf("failed to flatten old document: %w", err)
		}
	}

	newFlat := map[string]string{}
	if len(newDoc) > 0 {
		if err := flattenDocument("", newDoc, newFlat); err != nil {
			return ChangeDescription{}, fmt.Errorf("failed to flatten new document: %w", err)
		}
	}

	cd := ChangeDescription{
		FieldsAdded:     []FieldChange{},
		FieldsUpdated:   []FieldChange{},
		FieldsDeleted:   []FieldChange{},
		PreviousVersion: previousVersion,
	}

	for _, name := range sortedKeys(newFlat) {
		newValue := newFlat[name]
		oldValue, existed := oldFlat[name]
		switch {
		case !existed:
			cd.FieldsAdded = append(cd.FieldsAdded, FieldChange{Name: name, NewValue: newValue})
		case oldValue != newValue:
			cd.FieldsUpdated = append(cd.FieldsUpdated, FieldChange{Name: name, OldValue: oldValue, NewValue: newValue})
		}
	}

	for _, name := range sortedKeys(oldFlat) {
		if _, kept := newFlat[name]; !kept {
			cd.FieldsDeleted = append(cd.FieldsDeleted, FieldChange{Name: name, OldValue: oldFlat[name]})
		}
	}

	return cd, nil
}

func sortedKeys(flat map[string]string) []string {
	keys := make([]string, 0, len(flat))
	for key := range flat {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func flattenDocument(prefix string, value any, acc map[string]string) error {
	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 0 {
			if prefix != "" {
				acc[prefix] = "{}"
			}
			return nil
		}
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			nextPrefix := key
			if prefix != "" {
				nextPrefix = prefix + "." + key
			}
			if err := flattenDocument(nextPrefix, typed[key], acc); err != nil {
				return err
			}
		}
	case []any:
		if len(typed) == 0 {
			if prefix != "" {
				acc[prefix] = "[]"
			}
			return nil
		}
		for idx, item := range typed {
			nextPrefix := fmt.Sprintf("%s[%d]", prefix, idx)
			if prefix == "" {
				nextPrefix = fmt.Sprintf("[%d]", idx)
			}
			if err := flattenDocument(nextPrefix, item, acc); err != nil {
				return err
			}
		}
	case nil:
		if prefix != "" {
			acc[prefix] = "null"
		}
	default:
		if prefix == "" {
			return fmt.Errorf("field name missing for value %v", typed)
		}
		encoded, err := json.Marshal(typed)
		if err != nil {
			acc[prefix] = fmt.Sprintf("%v", typed)
		} else {
			acc[prefix] = string(encoded)
		}
	}

	return nil
}
