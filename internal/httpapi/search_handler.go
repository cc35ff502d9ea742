// Package httpapi exposes the catalog over plain JSON endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/metacat-io/metacat/internal/auth"
	"github.com/metacat-io/metacat/internal/domain"
	"github.com/metacat-io/metacat/internal/middleware"
	"github.com/metacat-io/metacat/internal/search"
	"github.com/metacat-io/metacat/pkg/validator"
)

// Searcher is the slice of the search client the handler needs.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (search.Response, error)
}

// SearchHandler serves quick-filter and advanced search requests.
type SearchHandler struct {
	searcher  Searcher
	checker   *auth.Checker
	validator *validator.FilterValidator
}

// NewSearchHandler wraps the search client with a POST endpoint.
func NewSearchHandler(searcher Searcher, checker *auth.Checker) http.Handler {
	return &SearchHandler{
		searcher:  searcher,
		checker:   checker,
		validator: validator.NewFilterValidator(),
	}
}

type searchPayload struct {
	Filters    []domain.FilterField `json:"filters"`
	Advanced   json.RawMessage      `json:"advanced,omitempty"`
	From       int                  `json:"from"`
	Size       int                  `json:"size"`
	SortField  string               `json:"sortField"`
	SortOrder  string               `json:"sortOrder"`
	EntityType string               `json:"entityType"`
	Hydrate    bool                 `json:"hydrate"`
}

type searchResult struct {
	Total    int64           `json:"total"`
	Hits     []search.Hit    `json:"hits"`
	Entities []domain.Entity `json:"entities,omitempty"`
}

func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var payload searchPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	if err := auth.EnforceCapability(r.Context(), h.checker, auth.OpView, payload.EntityType); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	if payload.Size <= 0 {
		payload.Size = 10
	}

	query := search.BuildQueryFilter(payload.Filters)

	if len(payload.Advanced) > 0 {
		if result := h.validator.ValidateDocument(payload.Advanced); !result.IsValid {
			writeJSON(w, http.StatusBadRequest, result)
			return
		}
		advanced := domain.OpaqueNode(payload.Advanced)
		query = search.MergeAdvancedFilter(query, &advanced)
	}

	req := search.Request{Query: query, From: payload.From, Size: payload.Size}
	if payload.SortField != "" {
		req.Sort = &domain.EntitySort{
			Field:     domain.EntitySortField(payload.SortField),
			Direction: domain.SortDirection(payload.SortOrder),
		}
	}

	resp, err := h.searcher.Search(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	result := searchResult{Total: resp.Total, Hits: resp.Hits}

	if payload.Hydrate {
		if loader := middleware.EntityLoaderFromContext(r.Context()); loader != nil {
			ids := make([]string, 0, len(resp.Hits))
			for _, hit := range resp.Hits {
				ids = append(ids, hit.ID)
			}
			entities, err := loader.LoadMany(r.Context(), ids)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			result.Entities = entities
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
