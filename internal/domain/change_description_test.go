package domain

import (
	"testing"
)

func TestComputeChangeDescriptionClassifiesFields(t *testing.T) {
	oldDoc := map[string]any{
		"description": "orders fact table",
		"owner":       "alice",
		"metadata":    map[string]any{"tier": "bronze"},
	}
	newDoc := map[string]any{
		"description": "orders fact table, partitioned daily",
		"owner":       "alice",
		"metadata":    map[string]any{"tier": "gold"},
		"tags":        []any{"PII.Sensitive"},
	}

	cd, err := ComputeChangeDescription(oldDoc, newDoc, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cd.PreviousVersion != 3 {
		t.Errorf("expected previous version 3, got %d", cd.PreviousVersion)
	}

	if len(cd.FieldsAdded) != 1 || cd.FieldsAdded[0].Name != "tags[0]" {
		t.Fatalf("expected tags[0] added, got %+v", cd.FieldsAdded)
	}
	if cd.FieldsAdded[0].NewValue != `"PII.Sensitive"` {
		t.Errorf("added value must be JSON-encoded, got %q", cd.FieldsAdded[0].NewValue)
	}

	updatedNames := map[string]bool{}
	for _, change := range cd.FieldsUpdated {
		updatedNames[change.Name] = true
	}
	if !updatedNames["description"] || !updatedNames["metadata.tier"] {
		t.Errorf("expected description and metadata.tier updated, got %+v", cd.FieldsUpdated)
	}
	if updatedNames["owner"] {
		t.Errorf("owner did not change but was reported updated")
	}

	if len(cd.FieldsDeleted) != 0 {
		t.Errorf("expected no deletions, got %+v", cd.FieldsDeleted)
	}
}

func TestComputeChangeDescriptionDeletions(t *testing.T) {
	oldDoc := map[string]any{"retention": map[string]any{"days": float64(30)}}

	cd, err := ComputeChangeDescription(oldDoc, nil, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cd.FieldsDeleted) != 1 || cd.FieldsDeleted[0].Name != "retention.days" {
		t.Fatalf("expected retention.days deleted, got %+v", cd.FieldsDeleted)
	}
	if cd.FieldsDeleted[0].OldValue != "30" {
		t.Errorf("unexpected old value %q", cd.FieldsDeleted[0].OldValue)
	}
}

func TestComputeChangeDescriptionNoChanges(t *testing.T) {
	doc := map[string]any{"name": "orders", "nested": map[string]any{"a": true}}

	cd, err := ComputeChangeDescription(doc, doc, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cd.IsEmpty() {
		t.Fatalf("expected empty change description, got %+v", cd)
	}
}

func TestComputeChangeDescriptionEmptyContainers(t *testing.T) {
	oldDoc := map[string]any{"tags": []any{}}
	newDoc := map[string]any{"tags": []any{"Tier.Tier1"}}

	cd, err := ComputeChangeDescription(oldDoc, newDoc, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The empty-array placeholder goes away and the element arrives.
	if len(cd.FieldsDeleted) != 1 || cd.FieldsDeleted[0].Name != "tags" {
		t.Errorf("expected tags placeholder deleted, got %+v", cd.FieldsDeleted)
	}
	if len(cd.FieldsAdded) != 1 || cd.FieldsAdded[0].Name != "tags[0]" {
		t.Errorf("expected tags[0] added, got %+v", cd.FieldsAdded)
	}
}
