package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/metacat-io/metacat/internal/domain"
)

// Request carries one search invocation against the backend index.
type Request struct {
	Query *domain.SearchQuery
	From  int
	Size  int
	Sort  *domain.EntitySort
}

// Hit is one matched document returned by the backend.
type Hit struct {
	ID         string          `json:"id"`
	EntityType string          `json:"entityType"`
	FQN        string          `json:"fullyQualifiedName"`
	Score      float64         `json:"score"`
	Source     json.RawMessage `json:"source"`
}

// Response is the decoded backend answer.
type Response struct {
	Total int64 `json:"total"`
	Hits  []Hit `json:"hits"`
}

// Client posts filter documents to the external search backend. It owns only
// the JSON body shape; endpoint, auth and availability belong to the backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption customizes the search client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient creates a search client for the given backend base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type searchBody struct {
	Query *domain.FilterNode  `json:"query,omitempty"`
	From  int                 `json:"from"`
	Size  int                 `json:"size"`
	Sort  []map[string]string `json:"sort,omitempty"`
}

type backendEnvelope struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string          `json:"_id"`
			Score  float64         `json:"_score"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search executes the request and decodes the hit list. A nil request query
// sends no filter at all, matching every document.
func (c *Client) Search(ctx context.Context, req Request) (Response, error) {
	body := searchBody{From: req.From, Size: req.Size}
	if req.Query != nil {
		body.Query = &req.Query.Query
	}
	if req.Sort != nil && req.Sort.Field != "" {
		direction := string(req.Sort.Direction)
		if direction == "" {
			direction = string(domain.SortDirectionAsc)
		}
		body.Sort = []map[string]string{{string(req.Sort.Field): direction}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to encode search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("failed to build search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("search backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Response{}, fmt.Errorf("search backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var envelope backendEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return Response{}, fmt.Errorf("failed to decode search response: %w", err)
	}

	out := Response{Total: envelope.Hits.Total.Value, Hits: make([]Hit, 0, len(envelope.Hits.Hits))}
	for _, raw := range envelope.Hits.Hits {
		hit := Hit{ID: raw.ID, Score: raw.Score, Source: raw.Source}

		var source struct {
			EntityType string `json:"entityType"`
			FQN        string `json:"fullyQualifiedName"`
		}
		if err := json.Unmarshal(raw.Source, &source); err == nil {
			hit.EntityType = source.EntityType
			hit.FQN = source.FQN
		}

		out.Hits = append(out.Hits, hit)
	}

	return out, nil
}
