package generate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Kvkthecreator/yarnnnn-sub006/internal/config"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/model"
)

func testDeliverable() *model.Deliverable {
	return &model.Deliverable{
		ID:    "d1",
		Title: "Weekly status report",
		Type:  "status_report",
		Destination: model.Destination{
			Platform: "slack",
			Target:   "#leadership",
			Format:   "markdown",
		},
		Sources: []model.Source{
			{Platform: "github", Scope: model.ScopeDelta, FallbackDays: 7, MaxItems: 50},
		},
	}
}

func TestClientStartRun(t *testing.T) {
	var received RunRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/runs" || r.Method != "POST" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Error("Expected bearer token on run request")
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0,
			"msg":  "ok",
			"data": map[string]string{"run_id": "run-42"},
		})
	}))
	defer server.Close()

	client := NewClient(&config.GeneratorConfig{
		APIURL:      server.URL,
		APIToken:    "test-token",
		CallbackURL: "http://localhost:8080/api/generation/callback",
	})

	resp, err := client.StartRun(context.Background(), testDeliverable(), "v1")
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if resp.Data.RunID != "run-42" {
		t.Errorf("Expected run_id run-42, got %s", resp.Data.RunID)
	}

	if received.VersionID != "v1" {
		t.Errorf("Expected version correlation id v1, got %s", received.VersionID)
	}
	if received.DeliverableID != "d1" {
		t.Errorf("Expected deliverable id d1, got %s", received.DeliverableID)
	}
	if received.Callback != "http://localhost:8080/api/generation/callback" {
		t.Errorf("Expected callback URL forwarded, got %s", received.Callback)
	}
	if len(received.Sources) != 1 {
		t.Errorf("Expected 1 source, got %d", len(received.Sources))
	}
}

func TestClientStartRunGeneratorError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 2,
			"msg":  "quota exceeded",
		})
	}))
	defer server.Close()

	client := NewClient(&config.GeneratorConfig{APIURL: server.URL})

	if _, err := client.StartRun(context.Background(), testDeliverable(), "v1"); err == nil {
		t.Error("Expected error for non-zero generator code")
	}
}

func TestClientEnabled(t *testing.T) {
	if NewClient(&config.GeneratorConfig{}).Enabled() {
		t.Error("Expected client disabled without an API URL")
	}
	if !NewClient(&config.GeneratorConfig{APIURL: "http://generator"}).Enabled() {
		t.Error("Expected client enabled with an API URL")
	}
	if NewClient(nil).Enabled() {
		t.Error("Expected client disabled with nil config")
	}
}
