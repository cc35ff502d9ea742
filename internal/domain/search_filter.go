package domain

import "encoding/json"

// FilterValue is one selected option for a quick filter, as picked in the UI.
type FilterValue struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// FilterField is a quick-filter selection: an indexed document field plus the
// values chosen for it. Selected values are treated as a set.
type FilterField struct {
	Key            string        `json:"key"` // dotted path into the indexed document
	SelectedValues []FilterValue `json:"values"`
}

// BoolClause holds the boolean combinators of a filter node. Empty slices are
// never serialized; an absent clause means "no constraint".
type BoolClause struct {
	Must    []FilterNode `json:"must,omitempty"`
	Should  []FilterNode `json:"should,omitempty"`
	MustNot []FilterNode `json:"must_not,omitempty"`
}

// FilterNode is one node of the recursive boolean filter tree consumed by the
// search backend: either a term leaf, a bool branch, or an opaque pre-built
// document carried through untouched.
type FilterNode struct {
	Term map[string]string `json:"term,omitempty"`
	Bool *BoolClause       `json:"bool,omitempty"`

	raw json.RawMessage
}

// OpaqueNode wraps an externally authored filter document (the advanced
// search query) so it can sit inside a must array without its internal
// structure being reinterpreted.
func OpaqueNode(raw json.RawMessage) FilterNode {
	return FilterNode{raw: raw}
}

// MarshalJSON emits opaque nodes verbatim.
func (n FilterNode) MarshalJSON() ([]byte, error) {
	if len(n.raw) > 0 {
		return n.raw, nil
	}
	type plain FilterNode
	return json.Marshal(plain(n))
}

// SearchQuery is the request body fragment sent to the search backend.
type SearchQuery struct {
	Query FilterNode `json:"query"`
}
