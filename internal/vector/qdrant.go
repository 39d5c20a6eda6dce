// Package vector maintains the Qdrant article index and serves filtered
// similarity searches over it.
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	requestTimeout = 30 * time.Second
	upsertTimeout  = 120 * time.Second
)

// QdrantClient is an HTTP client for the Qdrant REST API, scoped to one
// collection.
type QdrantClient struct {
	baseURL    string
	collection string
	httpClient *http.Client
}

// NewQdrantClient creates a client for the given Qdrant base URL and
// collection name.
func NewQdrantClient(baseURL, collection string) *QdrantClient {
	return &QdrantClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: upsertTimeout},
	}
}

// Payload is the metadata stored with each indexed article.
type Payload struct {
	ID      int64   `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Link    string  `json:"link"`
	Source  string  `json:"source"`
	Lean    string  `json:"lean"`
	DateTS  *int64  `json:"date_ts"`
	Date    *string `json:"date"`
}

// Point is one vector with its payload, keyed by the article id.
type Point struct {
	ID      int64     `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// Hit is one search result.
type Hit struct {
	ID      int64   `json:"id"`
	Score   float64 `json:"score"`
	Payload Payload `json:"payload"`
}

// Filter is the subset of Qdrant filter syntax this service uses: a must
// range on date_ts plus should matches on lean.
type Filter struct {
	Must   []Condition `json:"must,omitempty"`
	Should []Condition `json:"should,omitempty"`
}

// Condition is a single field condition.
type Condition struct {
	Key   string      `json:"key"`
	Range *RangeSpec  `json:"range,omitempty"`
	Match *MatchValue `json:"match,omitempty"`
}

// RangeSpec is an inclusive numeric range.
type RangeSpec struct {
	GTE int64 `json:"gte"`
	LTE int64 `json:"lte"`
}

// MatchValue matches a payload field exactly.
type MatchValue struct {
	Value string `json:"value"`
}

// envelope is the standard Qdrant response wrapper.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

func (c *QdrantClient) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("qdrant: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("qdrant: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("qdrant: %s %s: status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if result == nil {
		return nil
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("qdrant: decode response: %w", err)
	}
	if err := json.Unmarshal(env.Result, result); err != nil {
		return fmt.Errorf("qdrant: decode result: %w", err)
	}
	return nil
}

var errNotFound = fmt.Errorf("qdrant: not found")

// collectionInfo is the subset of collection metadata the indexer needs.
type collectionInfo struct {
	PointsCount int64 `json:"points_count"`
	Config      struct {
		Params struct {
			Vectors struct {
				Size int `json:"size"`
			} `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

// Info returns the collection's vector dimension and point count. A missing
// collection yields (0, 0, nil).
func (c *QdrantClient) Info(ctx context.Context) (dim int, points int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var info collectionInfo
	err = c.do(ctx, http.MethodGet, "/collections/"+c.collection, nil, &info)
	if err == errNotFound {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return info.Config.Params.Vectors.Size, info.PointsCount, nil
}

// CreateCollection creates the collection with cosine distance.
func (c *QdrantClient) CreateCollection(ctx context.Context, dim int) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	return c.do(ctx, http.MethodPut, "/collections/"+c.collection, body, nil)
}

// DeleteCollection removes the collection. Deleting a missing collection is
// not an error.
func (c *QdrantClient) DeleteCollection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	err := c.do(ctx, http.MethodDelete, "/collections/"+c.collection, nil, nil)
	if err == errNotFound {
		return nil
	}
	return err
}

// EnsureCollection makes sure the collection exists with the given vector
// dimension, recreating it when the dimension changed.
func (c *QdrantClient) EnsureCollection(ctx context.Context, dim int) error {
	cur, _, err := c.Info(ctx)
	if err != nil {
		return err
	}
	if cur == dim {
		return nil
	}
	if cur != 0 {
		if err := c.DeleteCollection(ctx); err != nil {
			return err
		}
	}
	return c.CreateCollection(ctx, dim)
}

// Upsert writes a batch of points, waiting for the write to be applied.
func (c *QdrantClient) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	return c.do(ctx, http.MethodPut, "/collections/"+c.collection+"/points?wait=true", body, nil)
}

// searchRequest is the JSON body for POST /collections/{c}/points/search.
type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	Filter      *Filter   `json:"filter,omitempty"`
	WithPayload bool      `json:"with_payload"`
}

// Search runs a similarity search with an optional filter.
func (c *QdrantClient) Search(ctx context.Context, vector []float32, limit int, filter *Filter) ([]Hit, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req := searchRequest{
		Vector:      vector,
		Limit:       limit,
		Filter:      filter,
		WithPayload: true,
	}
	var hits []Hit
	if err := c.do(ctx, http.MethodPost, "/collections/"+c.collection+"/points/search", req, &hits); err != nil {
		if err == errNotFound {
			return nil, nil
		}
		return nil, err
	}
	return hits, nil
}

// Count returns the exact number of points in the collection.
func (c *QdrantClient) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var result struct {
		Count int64 `json:"count"`
	}
	err := c.do(ctx, http.MethodPost, "/collections/"+c.collection+"/points/count",
		map[string]any{"exact": true}, &result)
	if err == errNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return result.Count, nil
}
