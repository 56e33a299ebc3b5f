// Package llm implements the preference summarizer against an
// OpenAI-compatible chat completions API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Kvkthecreator/yarnnnn-sub006/internal/config"
)

const systemPrompt = "You summarize how a human supervisor edits AI-written drafts. " +
	"Given raw edit observations, reply with at most five short preference statements, " +
	"one per line, most confident first. No numbering, no commentary."

type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a summarizer client from configuration. Returns nil when
// unconfigured; callers fall back to the heuristic extractor.
func NewClient(cfg *config.SummarizerConfig) *Client {
	if cfg == nil || cfg.APIURL == "" || cfg.Model == "" {
		return nil
	}
	return &Client{
		endpoint: cfg.APIURL,
		model:    cfg.Model,
		apiKey:   cfg.APIToken,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// SummarizePreferences posts the raw edit observations and parses the reply
// into one statement per line.
func (c *Client) SummarizePreferences(ctx context.Context, observations []string) ([]string, error) {
	if c == nil {
		return nil, fmt.Errorf("summarizer client is nil")
	}
	if len(observations) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": strings.Join(observations, "\n")},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal summarizer payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("summarize preferences: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("summarizer error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode summarizer response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("summarizer returned no choices")
	}

	var statements []string
	for _, line := range strings.Split(parsed.Choices[0].Message.Content, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line != "" {
			statements = append(statements, line)
		}
	}
	return statements, nil
}
