// Package nli scores the stance between two article summaries using a
// natural-language-inference model served by a sidecar process.
package nli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const inferTimeout = 30 * time.Second

// Result is one inference: the winning label and the class probabilities in
// [entailment, neutral, contradiction] order.
type Result struct {
	Label string    `json:"label"`
	Probs []float64 `json:"probs"`
}

// Neutral is the fallback result used when a pair cannot be scored. The
// probabilities sum to 1, with the remainder on the neutral class.
func Neutral() Result {
	return Result{Label: "neutral", Probs: []float64{0.33, 0.34, 0.33}}
}

// Client is an HTTP client for the NLI inference sidecar. Calls are
// serialized through a mutex since the sidecar runs single model inference.
type Client struct {
	baseURL      string
	maxPairChars int
	httpClient   *http.Client
	mu           sync.Mutex
}

// NewClient creates a Client. maxPairChars bounds the combined length of a
// premise/hypothesis pair sent to the model.
func NewClient(baseURL string, maxPairChars int) *Client {
	if maxPairChars <= 0 {
		maxPairChars = 1200
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		maxPairChars: maxPairChars,
		httpClient:   &http.Client{Timeout: inferTimeout},
	}
}

// inferRequest is the JSON body sent to POST /nli.
type inferRequest struct {
	Premise    string `json:"premise"`
	Hypothesis string `json:"hypothesis"`
}

// Infer scores the premise/hypothesis pair. Empty input short-circuits to
// the neutral result without a network call, matching the model server's own
// behavior.
func (c *Client) Infer(ctx context.Context, premise, hypothesis string) (Result, error) {
	premise = strings.TrimSpace(premise)
	hypothesis = strings.TrimSpace(hypothesis)
	if premise == "" || hypothesis == "" {
		return Neutral(), nil
	}
	premise, hypothesis = truncatePair(premise, hypothesis, c.maxPairChars)

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, inferTimeout)
	defer cancel()

	body, err := json.Marshal(inferRequest{Premise: premise, Hypothesis: hypothesis})
	if err != nil {
		return Result{}, fmt.Errorf("nli: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/nli", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("nli: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("nli: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Result{}, fmt.Errorf("nli: status %d: %s", resp.StatusCode, string(respBody))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("nli: decode response: %w", err)
	}
	if len(result.Probs) != 3 {
		return Result{}, fmt.Errorf("nli: malformed probs (len=%d)", len(result.Probs))
	}
	return result, nil
}

// Warmup sends a trivial pair so the sidecar loads its model before the
// first real request. Failures are logged, not returned; the first real call
// just pays the load cost instead.
func (c *Client) Warmup(ctx context.Context) {
	start := time.Now()
	if _, err := c.Infer(ctx, "모델 예열 문장입니다.", "모델을 예열한다."); err != nil {
		slog.Warn("nli: warmup failed", "error", err)
		return
	}
	slog.Info("nli: model warmed up", "took", time.Since(start).Round(time.Millisecond))
}

// truncatePair trims the pair to a combined character budget, cutting the
// longer side first so both texts keep signal.
func truncatePair(premise, hypothesis string, budget int) (string, string) {
	p := []rune(premise)
	h := []rune(hypothesis)
	for len(p)+len(h) > budget {
		over := len(p) + len(h) - budget
		if len(p) >= len(h) {
			cut := over
			if cut > len(p)-len(h) {
				cut = len(p) - len(h)
				if cut == 0 {
					cut = (over + 1) / 2
				}
			}
			p = p[:len(p)-cut]
		} else {
			cut := over
			if cut > len(h)-len(p) {
				cut = len(h) - len(p)
				if cut == 0 {
					cut = (over + 1) / 2
				}
			}
			h = h[:len(h)-cut]
		}
	}
	return string(p), string(h)
}
