// Package ai provides the client for the optional Ollama summarization
// backend.
package ai

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

const generateTimeout = 60 * time.Second

// OllamaClient is an HTTP client for the Ollama API.
type OllamaClient struct {
	baseURL       string
	instructModel string
	httpClient    *http.Client
}

// NewClient creates a new OllamaClient configured with the given base URL and
// model name.
func NewClient(baseURL, instructModel string) *OllamaClient {
	return &OllamaClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		instructModel: instructModel,
		httpClient: &http.Client{
			Timeout: generateTimeout,
		},
	}
}

// generateRequest is the JSON body sent to POST /api/generate.
type generateRequest struct {
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// generateResponse is a single JSON object in the Ollama streaming response.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Summarize asks the LLM to produce a 2-3 sentence summary of the given text.
func (c *OllamaClient) Summarize(ctx context.Context, text string) (string, error) {
	systemPrompt := `You are a news summarizer. Your ONLY job is to output a 2-3 sentence summary.

RULES:
- Write the summary in the SAME language as the article
- Be factual and concise
- Output ONLY the summary text, nothing else
- Do NOT explain what you are doing
- Do NOT say "I cannot" or "there is no information"
- Do NOT add commentary, disclaimers, or meta-text
- If the text is short, summarize what is there`

	summary, err := c.generate(ctx, systemPrompt, text)
	if err != nil {
		return "", err
	}

	summary = cleanAIResponse(summary)
	if summary == "" {
		return "", fmt.Errorf("ollama summarize: produced empty or invalid summary")
	}
	return summary, nil
}

// generate performs a POST to /api/generate and concatenates the streamed
// response into a single string.
func (c *OllamaClient) generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	reqBody := generateRequest{
		Model:  c.instructModel,
		System: systemPrompt,
		Prompt: userPrompt,
		Stream: true,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("ollama generate: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama generate: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ollama generate: status %d: %s", resp.StatusCode, string(respBody))
	}

	// Ollama streams JSON objects, one per line. Concatenate the "response"
	// fields to build the full response.
	var sb strings.Builder
	decoder := json.NewDecoder(resp.Body)
	for decoder.More() {
		var chunk generateResponse
		if err := decoder.Decode(&chunk); err != nil {
			// If we already have some content, return what we have.
			if sb.Len() > 0 {
				break
			}
			return "", fmt.Errorf("ollama generate: decode chunk: %w", err)
		}
		sb.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}

	result := strings.TrimSpace(sb.String())
	if result == "" {
		return "", fmt.Errorf("ollama generate: empty response")
	}

	return result, nil
}

// garbagePatterns are substrings that indicate the AI returned commentary
// instead of the requested summary. Case-insensitive check.
var garbagePatterns = []string{
	"i cannot",
	"i don't have",
	"there is no information",
	"none of the provided",
	"i can suggest",
	"however",
	"please provide",
	"no information about",
	"based on the context",
	"요약할 수 없",
	"정보가 없습니다",
}

// cleanAIResponse strips garbage AI commentary from a response. Returns empty
// string if the response is entirely garbage.
func cleanAIResponse(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	lower := strings.ToLower(s)
	for _, pattern := range garbagePatterns {
		if strings.Contains(lower, pattern) {
			return ""
		}
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}
