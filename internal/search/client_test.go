package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/metacat-io/metacat/internal/domain"
)

func TestClientSearchSendsFilterDocument(t *testing.T) {
	var captured struct {
		Query json.RawMessage     `json:"query"`
		From  int                 `json:"from"`
		Size  int                 `json:"size"`
		Sort  []map[string]string `json:"sort"`
	}

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/search" {
			t.Errorf("expected /search, got %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"hits":{"total":{"value":0},"hits":[]}}`))
	}))
	defer backend.Close()

	client := NewClient(backend.URL)
	query := BuildQueryFilter([]domain.FilterField{
		{Key: "owner", SelectedValues: []domain.FilterValue{{Key: "alice", Label: "Alice"}}},
	})

	_, err := client.Search(context.Background(), Request{
		Query: query,
		From:  20,
		Size:  10,
		Sort:  &domain.EntitySort{Field: domain.EntitySortFieldName, Direction: domain.SortDirectionDesc},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.From != 20 || captured.Size != 10 {
		t.Errorf("pagination not forwarded: from=%d size=%d", captured.From, captured.Size)
	}
	if len(captured.Sort) != 1 || captured.Sort[0]["name"] != "desc" {
		t.Errorf("unexpected sort payload %v", captured.Sort)
	}

	var filter struct {
		Bool struct {
			Must []json.RawMessage `json:"must"`
		} `json:"bool"`
	}
	if err := json.Unmarshal(captured.Query, &filter); err != nil {
		t.Fatalf("query is not a bool document: %v", err)
	}
	if len(filter.Bool.Must) != 1 {
		t.Errorf("expected one must clause, got %d", len(filter.Bool.Must))
	}
}

func TestClientSearchDecodesBackendEnvelope(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"hits": {
				"total": {"value": 42},
				"hits": [
					{
						"_id": "11111111-1111-1111-1111-111111111111",
						"_score": 2.5,
						"_source": {
							"entityType": "table",
							"fullyQualifiedName": "warehouse.sales.orders",
							"name": "orders"
						}
					}
				]
			}
		}`))
	}))
	defer backend.Close()

	client := NewClient(backend.URL)
	resp, err := client.Search(context.Background(), Request{Size: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Total != 42 {
		t.Errorf("expected total 42, got %d", resp.Total)
	}
	if len(resp.Hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(resp.Hits))
	}

	hit := resp.Hits[0]
	if hit.ID != "11111111-1111-1111-1111-111111111111" {
		t.Errorf("unexpected hit id %q", hit.ID)
	}
	if hit.EntityType != "table" || hit.FQN != "warehouse.sales.orders" {
		t.Errorf("source fields not extracted: %+v", hit)
	}
	if hit.Score != 2.5 {
		t.Errorf("unexpected score %v", hit.Score)
	}
}

func TestClientSearchOmitsQueryWhenNil(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if _, present := body["query"]; present {
			t.Errorf("nil query must be omitted from the body, got %v", body)
		}
		w.Write([]byte(`{"hits":{"total":{"value":0},"hits":[]}}`))
	}))
	defer backend.Close()

	client := NewClient(backend.URL)
	if _, err := client.Search(context.Background(), Request{Size: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientSearchSurfacesBackendErrors(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index unavailable", http.StatusServiceUnavailable)
	}))
	defer backend.Close()

	client := NewClient(backend.URL)
	if _, err := client.Search(context.Background(), Request{}); err == nil {
		t.Fatalf("expected an error for a 503 response")
	}
}
