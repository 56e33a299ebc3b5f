// Package generate talks to the external content-production service. The
// core never produces drafts itself; it requests a run and hears back via
// the generation callback.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Kvkthecreator/yarnnnn-sub006/internal/config"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/model"
)

type Client struct {
	config     *config.GeneratorConfig
	httpClient *http.Client
}

// RunRequest asks the generator to produce one draft for a deliverable.
// VersionID travels as the correlation id and comes back in the callback.
type RunRequest struct {
	VersionID     string            `json:"version_id"`
	DeliverableID string            `json:"deliverable_id"`
	Title         string            `json:"title"`
	Type          string            `json:"type"`
	Destination   model.Destination `json:"destination"`
	Sources       []model.Source    `json:"sources"`
	Callback      string            `json:"callback,omitempty"`
}

// RunResponse is the generator's acknowledgment of a run request.
type RunResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Data    struct {
		RunID string `json:"run_id"`
	} `json:"data"`
}

func NewClient(cfg *config.GeneratorConfig) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Enabled reports whether a generator endpoint is configured. Without one,
// runs are created and wait for drafts delivered through the callback by
// whatever process the operator wired up out of band.
func (c *Client) Enabled() bool {
	return c.config != nil && c.config.APIURL != ""
}

// StartRun submits a generation request for the given version.
func (c *Client) StartRun(ctx context.Context, deliverable *model.Deliverable, versionID string) (*RunResponse, error) {
	reqBody := RunRequest{
		VersionID:     versionID,
		DeliverableID: deliverable.ID,
		Title:         deliverable.Title,
		Type:          deliverable.Type,
		Destination:   deliverable.Destination,
		Sources:       deliverable.Sources,
		Callback:      c.config.CallbackURL,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.APIURL+"/runs", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.config.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result RunResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w, body: %s", err, string(body))
	}

	if result.Code != 0 {
		return nil, fmt.Errorf("generator error: %s", result.Message)
	}

	return &result, nil
}
