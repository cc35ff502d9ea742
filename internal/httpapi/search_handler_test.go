package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/metacat-io/metacat/internal/auth"
	"github.com/metacat-io/metacat/internal/search"
)

type fakeSearcher struct {
	lastRequest search.Request
	response    search.Response
}

func (f *fakeSearcher) Search(_ context.Context, req search.Request) (search.Response, error) {
	f.lastRequest = req
	return f.response, nil
}

func newTestChecker(t *testing.T) *auth.Checker {
	t.Helper()
	checker, err := auth.NewChecker(auth.NewRoleCapabilityResolver(), 8)
	if err != nil {
		t.Fatalf("failed to create checker: %v", err)
	}
	return checker
}

func postSearch(t *testing.T, handler http.Handler, principal *auth.Principal, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(body))
	if principal != nil {
		req = req.WithContext(auth.ContextWithPrincipal(req.Context(), *principal))
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func TestSearchHandlerBuildsFilterFromSelections(t *testing.T) {
	searcher := &fakeSearcher{
		response: search.Response{Total: 1, Hits: []search.Hit{{ID: "abc", EntityType: "table"}}},
	}
	handler := NewSearchHandler(searcher, newTestChecker(t))
	principal := &auth.Principal{Name: "alice", Roles: []string{"DataConsumer"}}

	body := `{
		"filters": [
			{"key": "owner", "values": [{"key": "alice", "label": "Alice"}]},
			{"key": "tags.tagFQN", "values": [{"key": "PII.Sensitive", "label": "Sensitive"}]}
		],
		"from": 10,
		"size": 25
	}`

	recorder := postSearch(t, handler, principal, body)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	if searcher.lastRequest.Query == nil {
		t.Fatalf("expected a filter query to reach the searcher")
	}
	if got := len(searcher.lastRequest.Query.Query.Bool.Must); got != 2 {
		t.Errorf("expected 2 must clauses, got %d", got)
	}
	if searcher.lastRequest.From != 10 || searcher.lastRequest.Size != 25 {
		t.Errorf("pagination not forwarded: %+v", searcher.lastRequest)
	}

	var result searchResult
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if result.Total != 1 || len(result.Hits) != 1 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestSearchHandlerDefaultsSizeAndAllowsEmptyFilters(t *testing.T) {
	searcher := &fakeSearcher{}
	handler := NewSearchHandler(searcher, newTestChecker(t))
	principal := &auth.Principal{Name: "alice", Roles: []string{"DataConsumer"}}

	recorder := postSearch(t, handler, principal, `{}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if searcher.lastRequest.Query != nil {
		t.Errorf("no selections must produce no query, got %+v", searcher.lastRequest.Query)
	}
	if searcher.lastRequest.Size != 10 {
		t.Errorf("expected default size 10, got %d", searcher.lastRequest.Size)
	}
}

func TestSearchHandlerMergesAdvancedDocument(t *testing.T) {
	searcher := &fakeSearcher{}
	handler := NewSearchHandler(searcher, newTestChecker(t))
	principal := &auth.Principal{Name: "alice", Roles: []string{"DataConsumer"}}

	body := `{
		"filters": [{"key": "owner", "values": [{"key": "alice", "label": "Alice"}]}],
		"advanced": {"bool": {"must_not": [{"term": {"deleted": true}}]}}
	}`

	recorder := postSearch(t, handler, principal, body)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if searcher.lastRequest.Query == nil {
		t.Fatalf("expected a merged query")
	}
	if got := len(searcher.lastRequest.Query.Query.Bool.Must); got != 2 {
		t.Errorf("expected quick clause plus advanced document, got %d must clauses", got)
	}
}

func TestSearchHandlerRejectsInvalidAdvancedDocument(t *testing.T) {
	searcher := &fakeSearcher{}
	handler := NewSearchHandler(searcher, newTestChecker(t))
	principal := &auth.Principal{Name: "alice", Roles: []string{"DataConsumer"}}

	body := `{"advanced": {"wildcard": {"name": "ord*"}}}`

	recorder := postSearch(t, handler, principal, body)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported clause, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "unknown filter clause") {
		t.Errorf("expected validation errors in the body, got %s", recorder.Body.String())
	}
}

func TestSearchHandlerRequiresPrincipal(t *testing.T) {
	handler := NewSearchHandler(&fakeSearcher{}, newTestChecker(t))

	recorder := postSearch(t, handler, nil, `{}`)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without a principal, got %d", recorder.Code)
	}
}

func TestSearchHandlerRejectsNonPost(t *testing.T) {
	handler := NewSearchHandler(&fakeSearcher{}, newTestChecker(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
}
