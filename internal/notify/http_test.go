package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/slack-go/slack"

	"github.com/netwatch/internal/config"
)

func TestSMSNotifier(t *testing.T) {
	var got smsRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	n := NewSMSNotifier(config.SMSConfig{
		GatewayURL: server.URL,
		APIKey:     "secret",
		Recipients: map[string][]string{"field-technician": {"+15550100"}},
	})

	msg := Message{Target: "field-technician", Channel: ChannelSMS, Text: strings.Repeat("x", 200), Alert: testAlert()}
	if err := n.Notify(context.Background(), msg); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	if auth != "Bearer secret" {
		t.Errorf("unexpected authorization header: %q", auth)
	}
	if len(got.To) != 1 || got.To[0] != "+15550100" {
		t.Errorf("unexpected recipients: %v", got.To)
	}
	if len(got.Message) != maxSMSLength || !strings.HasSuffix(got.Message, "...") {
		t.Errorf("expected message truncated to %d chars, got %d", maxSMSLength, len(got.Message))
	}
}

func TestSMSNotifier_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewSMSNotifier(config.SMSConfig{
		GatewayURL: server.URL,
		Recipients: map[string][]string{"field-technician": {"+15550100"}},
	})

	if err := n.Notify(context.Background(), Message{Target: "field-technician", Text: "hi"}); err == nil {
		t.Error("expected an error for a 502 response")
	}
	if err := n.Notify(context.Background(), Message{Target: "noc-team", Text: "hi"}); err == nil {
		t.Error("expected an error for a target without phone numbers")
	}
}

func TestWebhookNotifier(t *testing.T) {
	var got Message
	var token string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = r.Header.Get("X-Token")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(config.WebhookConfig{URL: server.URL, Headers: map[string]string{"X-Token": "abc"}})
	msg := Message{Target: "noc-team", Channel: ChannelWebhook, Text: FormatMessage(testAlert()), Alert: testAlert()}
	if err := n.Notify(context.Background(), msg); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	if token != "abc" {
		t.Errorf("expected custom header, got %q", token)
	}
	if got.Text != msg.Text || got.Alert.ID != "alert-1" || got.Alert.DeviceID != "router-7" {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewWebhookNotifier(config.WebhookConfig{URL: server.URL})
	if err := n.Notify(context.Background(), Message{Alert: testAlert()}); err == nil {
		t.Error("expected an error for a 500 response")
	}
}

func TestSlackNotifier(t *testing.T) {
	var channel, attachments string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		channel = r.FormValue("channel")
		attachments = r.FormValue("attachments")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true, "channel": "C123", "ts": "1700000000.000100"}`))
	}))
	defer server.Close()

	n := &SlackNotifier{
		client:  slack.New("xoxb-test", slack.OptionAPIURL(server.URL+"/")),
		channel: "#noc",
	}

	msg := Message{Target: "noc-team", Channel: ChannelSlack, Text: FormatMessage(testAlert()), Alert: testAlert()}
	if err := n.Notify(context.Background(), msg); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if channel != "#noc" {
		t.Errorf("expected channel #noc, got %q", channel)
	}
	if !strings.Contains(attachments, "router-7/cpuUsage") {
		t.Errorf("expected attachment to name the device, got %s", attachments)
	}
}
