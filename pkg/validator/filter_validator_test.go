package validator

import (
	"encoding/json"
	"strings"
	"testing"
)

func validate(t *testing.T, doc string) ValidationResult {
	t.Helper()
	return NewFilterValidator().ValidateDocument(json.RawMessage(doc))
}

func TestValidateDocumentAcceptsWellFormedFilters(t *testing.T) {
	docs := []string{
		`{"term": {"owner": "alice"}}`,
		`{"term": {"deleted": false}}`,
		`{"bool": {"must": [{"term": {"owner": "alice"}}]}}`,
		`{"bool": {"should": [{"term": {"service": "warehouse"}}, {"term": {"service": "lake"}}], "must_not": [{"term": {"deleted": true}}]}}`,
	}
	for _, doc := range docs {
		if result := validate(t, doc); !result.IsValid {
			t.Errorf("expected %s to validate, got %+v", doc, result.Errors)
		}
	}
}

func TestValidateDocumentRejectsMalformedJSON(t *testing.T) {
	result := validate(t, `{"term": `)
	if result.IsValid {
		t.Fatalf("expected truncated JSON to fail")
	}
	if len(result.Errors) != 1 || result.Errors[0].Path != "$" {
		t.Errorf("unexpected errors %+v", result.Errors)
	}
}

func TestValidateDocumentRejectsUnknownClauses(t *testing.T) {
	result := validate(t, `{"wildcard": {"name": "ord*"}}`)
	if result.IsValid {
		t.Fatalf("expected unknown clause to fail")
	}
	if !strings.Contains(result.Errors[0].Message, "unknown filter clause") {
		t.Errorf("unexpected message %q", result.Errors[0].Message)
	}
}

func TestValidateDocumentRejectsBadTermClauses(t *testing.T) {
	cases := map[string]string{
		"non-object term":  `{"term": "owner"}`,
		"multi-field term": `{"term": {"owner": "alice", "service": "warehouse"}}`,
		"non-scalar value": `{"term": {"owner": {"name": "alice"}}}`,
	}
	for name, doc := range cases {
		if result := validate(t, doc); result.IsValid {
			t.Errorf("%s: expected validation failure for %s", name, doc)
		}
	}
}

func TestValidateDocumentRejectsEmptyBoolClauses(t *testing.T) {
	cases := map[string]string{
		"empty bool":         `{"bool": {}}`,
		"empty clause array": `{"bool": {"must": []}}`,
		"unknown bool key":   `{"bool": {"filter": [{"term": {"owner": "alice"}}]}}`,
	}
	for name, doc := range cases {
		if result := validate(t, doc); result.IsValid {
			t.Errorf("%s: expected validation failure for %s", name, doc)
		}
	}
}

func TestValidateDocumentReportsNestedPaths(t *testing.T) {
	result := validate(t, `{"bool": {"must": [{"term": {"": "x"}}]}}`)
	if result.IsValid {
		t.Fatalf("expected empty field name to fail")
	}
	if !strings.HasPrefix(result.Errors[0].Path, "$.bool.must[0]") {
		t.Errorf("error path must locate the offending node, got %q", result.Errors[0].Path)
	}
}

func TestValidateDocumentRejectsExcessiveNesting(t *testing.T) {
	doc := `{"term": {"owner": "alice"}}`
	for i := 0; i < 25; i++ {
		doc = `{"bool": {"must": [` + doc + `]}}`
	}
	result := validate(t, doc)
	if result.IsValid {
		t.Fatalf("expected deep nesting to fail")
	}
	found := false
	for _, err := range result.Errors {
		if strings.Contains(err.Message, "nesting exceeds") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a nesting-depth error, got %+v", result.Errors)
	}
}
