// Package client is a typed HTTP client for the supervision API. It holds
// no durable state: everything it returns is a projection of server truth
// that the session layer caches and reconciles.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Kvkthecreator/yarnnnn-sub006/internal/model"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetToken installs the bearer token for subsequent calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

type LoginResult struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	Username  string `json:"username"`
	Tenant    string `json:"tenant"`
}

// Login authenticates and installs the returned token on the client.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, &ValidationError{Field: "credentials", Reason: "username and password are required"}
	}

	var result LoginResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &result)
	if err != nil {
		return nil, err
	}

	c.token = result.Token
	return &result, nil
}

// CreateDeliverableRequest mirrors the server's create payload.
type CreateDeliverableRequest struct {
	Title       string            `json:"title"`
	Type        string            `json:"type"`
	Destination model.Destination `json:"destination"`
	Sources     []model.Source    `json:"sources"`
	Schedule    model.Schedule    `json:"schedule"`
}

// UpdateDeliverableRequest is a partial patch; nil fields are untouched.
type UpdateDeliverableRequest struct {
	Title       *string            `json:"title,omitempty"`
	Destination *model.Destination `json:"destination,omitempty"`
	Sources     *[]model.Source    `json:"sources,omitempty"`
	Schedule    *model.Schedule    `json:"schedule,omitempty"`
}

// DeliverableDetail is the full read model for one deliverable.
type DeliverableDetail struct {
	Deliverable *model.Deliverable     `json:"deliverable"`
	Versions    []model.Version        `json:"versions"`
	Feedback    *model.FeedbackSummary `json:"feedback_summary,omitempty"`
}

func (c *Client) ListDeliverables(ctx context.Context, statusFilter string) ([]model.Deliverable, error) {
	path := "/api/deliverables"
	if statusFilter != "" {
		path += "?status=" + statusFilter
	}

	var result struct {
		Deliverables []model.Deliverable `json:"deliverables"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Deliverables, nil
}

func (c *Client) GetDeliverable(ctx context.Context, id string) (*DeliverableDetail, error) {
	var detail DeliverableDetail
	if err := c.do(ctx, http.MethodGet, "/api/deliverables/"+id, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *Client) CreateDeliverable(ctx context.Context, req CreateDeliverableRequest) (*model.Deliverable, error) {
	if req.Title == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}

	var d model.Deliverable
	if err := c.do(ctx, http.MethodPost, "/api/deliverables", req, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) UpdateDeliverable(ctx context.Context, id string, patch UpdateDeliverableRequest) (*model.Deliverable, error) {
	var d model.Deliverable
	if err := c.do(ctx, http.MethodPatch, "/api/deliverables/"+id, patch, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// RunResult is the acknowledgment of an out-of-band run.
type RunResult struct {
	Success   bool   `json:"success"`
	VersionID string `json:"version_id"`
	Status    string `json:"status"`
}

func (c *Client) Run(ctx context.Context, id string) (*RunResult, error) {
	var result RunResult
	if err := c.do(ctx, http.MethodPost, "/api/deliverables/"+id+"/run", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Pause(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/deliverables/"+id+"/pause", nil, nil)
}

func (c *Client) Resume(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/deliverables/"+id+"/resume", nil, nil)
}

func (c *Client) Archive(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/deliverables/"+id+"/archive", nil, nil)
}

// FetchAttention satisfies the queue's Fetcher interface.
func (c *Client) FetchAttention(ctx context.Context) ([]model.AttentionItem, error) {
	var result struct {
		Items []model.AttentionItem `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/attention", nil, &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

func (c *Client) Claim(ctx context.Context, deliverableID, versionID string) (*model.Version, error) {
	var v model.Version
	path := "/api/deliverables/" + deliverableID + "/versions/" + versionID + "/claim"
	if err := c.do(ctx, http.MethodPost, path, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Approve commits an approval. finalContent nil approves the draft as-is.
func (c *Client) Approve(ctx context.Context, deliverableID, versionID string, finalContent *string) (*model.Version, error) {
	body := map[string]interface{}{}
	if finalContent != nil {
		body["final_content"] = *finalContent
	}

	var v model.Version
	path := "/api/deliverables/" + deliverableID + "/versions/" + versionID + "/approve"
	if err := c.do(ctx, http.MethodPost, path, body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Reject commits a rejection. Empty notes never reach the wire.
func (c *Client) Reject(ctx context.Context, deliverableID, versionID, feedbackNotes string) (*model.Version, error) {
	if strings.TrimSpace(feedbackNotes) == "" {
		return nil, &ValidationError{Field: "feedback_notes", Reason: "rejection requires feedback notes"}
	}

	var v model.Version
	path := "/api/deliverables/" + deliverableID + "/versions/" + versionID + "/reject"
	err := c.do(ctx, http.MethodPost, path, map[string]string{"feedback_notes": feedbackNotes}, &v)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// do runs one request and maps the response onto the error taxonomy:
// 400 validation, 404 not found, 409 conflict, 5xx and network failures
// transport.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: method + " " + path, Err: err}
	}

	switch {
	case resp.StatusCode >= 500:
		return &TransportError{Op: method + " " + path, Err: fmt.Errorf("server error: %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusConflict:
		return &ConflictError{Message: serverMessage(respBody)}
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Resource: "resource"}
	case resp.StatusCode == http.StatusBadRequest:
		return &ValidationError{Field: "request", Reason: serverMessage(respBody)}
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("unauthorized: %s", serverMessage(respBody))
	case resp.StatusCode >= 300:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, serverMessage(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func serverMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}
