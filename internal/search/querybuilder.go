// Package search builds boolean filter documents from quick-filter
// selections and forwards them to the external search backend.
package search

import (
	"github.com/metacat-io/metacat/internal/domain"
)

// BuildQueryFilter translates quick-filter selections into the nested boolean
// document the search backend consumes. Each field with selected values
// becomes a should (OR) group of term leaves; all fields are combined with
// must (AND). Fields with no selected values are omitted entirely.
//
// Returns nil when nothing is selected: sending no filter means "no
// constraint", which is not the same as constraining to nothing.
func BuildQueryFilter(fields []domain.FilterField) *domain.SearchQuery {
	must := make([]domain.FilterNode, 0, len(fields))

	for _, field := range fields {
		if len(field.SelectedValues) == 0 {
			continue
		}

		// A single selected value still produces a one-element should
		// group, keeping the document shape uniform.
		should := make([]domain.FilterNode, 0, len(field.SelectedValues))
		for _, value := range field.SelectedValues {
			should = append(should, domain.FilterNode{
				Term: map[string]string{field.Key: value.Key},
			})
		}

		must = append(must, domain.FilterNode{
			Bool: &domain.BoolClause{Should: should},
		})
	}

	if len(must) == 0 {
		return nil
	}

	return &domain.SearchQuery{
		Query: domain.FilterNode{
			Bool: &domain.BoolClause{Must: must},
		},
	}
}

// MergeAdvancedFilter ANDs an independently authored advanced-search document
// with the quick-filter query. The advanced document is appended as an opaque
// sibling of the quick-filter must clauses; its internal should/must_not
// structure is never flattened or rewritten.
//
// The inputs are not mutated; the result shares no clause slices with them.
func MergeAdvancedFilter(quick *domain.SearchQuery, advanced *domain.FilterNode) *domain.SearchQuery {
	if advanced == nil {
		return quick
	}

	if quick == nil || quick.Query.Bool == nil {
		return &domain.SearchQuery{
			Query: domain.FilterNode{
				Bool: &domain.BoolClause{Must: []domain.FilterNode{*advanced}},
			},
		}
	}

	merged := make([]domain.FilterNode, 0, len(quick.Query.Bool.Must)+1)
	merged = append(merged, quick.Query.Bool.Must...)
	merged = append(merged, *advanced)

	return &domain.SearchQuery{
		Query: domain.FilterNode{
			Bool: &domain.BoolClause{
				Must:    merged,
				Should:  quick.Query.Bool.Should,
				MustNot: quick.Query.Bool.MustNot,
			},
		},
	}
}
