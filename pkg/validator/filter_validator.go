// Package validator checks externally authored filter documents before they
// are merged into a search query. The advanced-search builder in the UI is
// free-form, so the document shape is validated at the API boundary instead
// of being trusted.
package validator

import (
	"encoding/json"
	"fmt"
)

// Nesting deeper than this is rejected outright; the visual query builder
// never produces documents anywhere near it.
const maxFilterDepth = 20

// ValidationError represents a validation error
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	IsValid bool              `json:"is_valid"`
	Errors  []ValidationError `json:"errors"`
}

// FilterValidator validates advanced-search filter documents.
type FilterValidator struct{}

// NewFilterValidator creates a new filter validator
func NewFilterValidator() *FilterValidator {
	return &FilterValidator{}
}

// ValidateDocument parses and validates a raw filter document. Every node
// must be either a term leaf or a bool branch; bool clause arrays must be
// non-empty so the backend never sees a vacuous constraint.
func (fv *FilterValidator) ValidateDocument(raw json.RawMessage) ValidationResult {
	result := ValidationResult{IsValid: true, Errors: []ValidationError{}}

	var node map[string]any
	if err := json.Unmarshal(raw, &node); err != nil {
		result.IsValid = false
		result.Errors = append(result.Errors, ValidationError{
			Path:    "$",
			Message: fmt.Sprintf("filter document is not a JSON object: %v", err),
		})
		return result
	}

	fv.validateNode(node, "$", 0, &result)
	return result
}

func (fv *FilterValidator) validateNode(node map[string]any, path string, depth int, result *ValidationResult) {
	if depth > maxFilterDepth {
		fv.fail(result, path, fmt.Sprintf("filter nesting exceeds %d levels", maxFilterDepth))
		return
	}

	if len(node) == 0 {
		fv.fail(result, path, "filter node is empty")
		return
	}

	for key, value := range node {
		switch key {
		case "term":
			fv.validateTerm(value, path+".term", result)
		case "bool":
			fv.validateBool(value, path+".bool", depth, result)
		default:
			fv.fail(result, path, fmt.Sprintf("unknown filter clause %q", key))
		}
	}
}

func (fv *FilterValidator) validateTerm(value any, path string, result *ValidationResult) {
	term, ok := value.(map[string]any)
	if !ok {
		fv.fail(result, path, "term clause must be an object")
		return
	}
	if len(term) != 1 {
		fv.fail(result, path, fmt.Sprintf("term clause must name exactly one field, got %d", len(term)))
		return
	}
	for field, fieldValue := range term {
		if field == "" {
			fv.fail(result, path, "term field name must not be empty")
		}
		switch fieldValue.(type) {
		case string, float64, bool:
		default:
			fv.fail(result, path+"."+field, "term value must be a scalar")
		}
	}
}

func (fv *FilterValidator) validateBool(value any, path string, depth int, result *ValidationResult) {
	clauses, ok := value.(map[string]any)
	if !ok {
		fv.fail(result, path, "bool clause must be an object")
		return
	}
	if len(clauses) == 0 {
		fv.fail(result, path, "bool clause is empty")
		return
	}

	for name, clause := range clauses {
		clausePath := path + "." + name
		switch name {
		case "must", "should", "must_not":
			children, ok := clause.([]any)
			if !ok {
				fv.fail(result, clausePath, "clause must be an array")
				continue
			}
			if len(children) == 0 {
				fv.fail(result, clausePath, "clause array must not be empty")
				continue
			}
			for idx, child := range children {
				childNode, ok := child.(map[string]any)
				if !ok {
					fv.fail(result, fmt.Sprintf("%s[%d]", clausePath, idx), "filter node must be an object")
					continue
				}
				fv.validateNode(childNode, fmt.Sprintf("%s[%d]", clausePath, idx), depth+1, result)
			}
		default:
			fv.fail(result, path, fmt.Sprintf("unknown bool clause %q", name))
		}
	}
}

func (fv *FilterValidator) fail(result *ValidationResult, path, message string) {
	result.IsValid = false
	result.Errors = append(result.Errors, ValidationError{Path: path, Message: message})
}
