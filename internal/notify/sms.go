package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/netwatch/internal/config"
)

// maxSMSLength is the longest text sent in a single SMS.
const maxSMSLength = 160

type smsRequest struct {
	To      []string `json:"to"`
	Message string   `json:"message"`
}

// SMSNotifier posts messages to an HTTP SMS gateway.
type SMSNotifier struct {
	gatewayURL string
	apiKey     string
	recipients map[string][]string
	client     *http.Client
}

func NewSMSNotifier(cfg config.SMSConfig) *SMSNotifier {
	return &SMSNotifier{
		gatewayURL: cfg.GatewayURL,
		apiKey:     cfg.APIKey,
		recipients: cfg.Recipients,
		client:     &http.Client{},
	}
}

func (s *SMSNotifier) Notify(ctx context.Context, msg Message) error {
	to := s.recipients[msg.Target]
	if len(to) == 0 {
		return fmt.Errorf("no phone numbers configured for target %s", msg.Target)
	}
	if s.gatewayURL == "" {
		return errors.New("sms gateway url is not configured")
	}

	text := msg.Text
	if len(text) > maxSMSLength {
		text = text[:maxSMSLength-3] + "..."
	}

	payload, err := json.Marshal(smsRequest{To: to, Message: text})
	if err != nil {
		return fmt.Errorf("failed to marshal sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status code: %d", resp.StatusCode)
	}
	return nil
}
