package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/netwatch/internal/models"
)

func TestClient_ListAlertsQuery(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode([]models.Alert{{ID: "a1", DeviceID: "r1", Status: models.AlertStatusOpen}})
	}))
	defer server.Close()

	c := NewClient(server.URL + "/api/v1")
	alerts, err := c.ListAlerts(models.AlertFilter{Status: models.AlertStatusOpen, DeviceID: "r1"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if gotPath != "/api/v1/alerts" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotQuery != "device=r1&status=open" {
		t.Errorf("unexpected query: %s", gotQuery)
	}
	if len(alerts) != 1 || alerts[0].ID != "a1" {
		t.Errorf("unexpected alerts: %+v", alerts)
	}
}

func TestClient_AcknowledgeSendsActor(t *testing.T) {
	var body map[string]string
	var method, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		json.NewDecoder(r.Body).Decode(&body)
		now := time.Now()
		json.NewEncoder(w).Encode(models.Alert{
			ID:             "a1",
			Status:         models.AlertStatusAcknowledged,
			AcknowledgedBy: body["actor"],
			AcknowledgedAt: &now,
		})
	}))
	defer server.Close()

	a, err := NewClient(server.URL+"/api/v1").AcknowledgeAlert("a1", "alice")
	if err != nil {
		t.Fatalf("acknowledge failed: %v", err)
	}
	if method != http.MethodPut || path != "/api/v1/alerts/a1/acknowledge" {
		t.Errorf("unexpected request: %s %s", method, path)
	}
	if body["actor"] != "alice" || a.AcknowledgedBy != "alice" {
		t.Errorf("actor was not sent: %v, %+v", body, a)
	}
}

func TestClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"alert a1 cannot move from resolved to resolved"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL+"/api/v1").ResolveAlert("a1", "bob")
	if err == nil || !strings.Contains(err.Error(), "cannot move from resolved") {
		t.Errorf("expected the API error message, got %v", err)
	}
}

func TestClient_StatusWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL + "/api/v1").RunCycle()
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("expected the status code in the error, got %v", err)
	}
}

func TestClient_ListRulesEnabledFilter(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	enabled := false
	if _, err := NewClient(server.URL+"/api/v1").ListRules(&enabled); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if gotQuery != "enabled=false" {
		t.Errorf("unexpected query: %s", gotQuery)
	}
}
