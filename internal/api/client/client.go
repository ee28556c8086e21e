package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/netwatch/internal/models"
)

// Client talks to the netwatch HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080/api/v1"
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type CycleResult struct {
	Alerts []models.Alert `json:"alerts"`
	Count  int            `json:"count"`
}

func (c *Client) ListAlerts(filter models.AlertFilter) ([]models.Alert, error) {
	query := url.Values{}
	if filter.Status != "" {
		query.Set("status", string(filter.Status))
	}
	if filter.Severity != "" {
		query.Set("severity", string(filter.Severity))
	}
	if filter.DeviceID != "" {
		query.Set("device", filter.DeviceID)
	}
	if filter.ProviderID != "" {
		query.Set("provider", filter.ProviderID)
	}

	var alerts []models.Alert
	if err := c.do(http.MethodGet, "/alerts", query, nil, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (c *Client) GetAlert(alertID string) (*models.Alert, error) {
	var a models.Alert
	if err := c.do(http.MethodGet, "/alerts/"+url.PathEscape(alertID), nil, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) AlertSummary() (*models.AlertSummary, error) {
	var summary models.AlertSummary
	if err := c.do(http.MethodGet, "/alerts/summary", nil, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *Client) AcknowledgeAlert(alertID, actor string) (*models.Alert, error) {
	var a models.Alert
	body := map[string]string{"actor": actor}
	if err := c.do(http.MethodPut, "/alerts/"+url.PathEscape(alertID)+"/acknowledge", nil, body, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) ResolveAlert(alertID, actor string) (*models.Alert, error) {
	var a models.Alert
	body := map[string]string{"actor": actor}
	if err := c.do(http.MethodPut, "/alerts/"+url.PathEscape(alertID)+"/resolve", nil, body, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) RunCycle() (*CycleResult, error) {
	var result CycleResult
	if err := c.do(http.MethodPost, "/cycles", nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListRules(enabled *bool) ([]models.AlertRule, error) {
	query := url.Values{}
	if enabled != nil {
		query.Set("enabled", strconv.FormatBool(*enabled))
	}

	var rules []models.AlertRule
	if err := c.do(http.MethodGet, "/rules", query, nil, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (c *Client) GetRule(id uint) (*models.AlertRule, error) {
	var rule models.AlertRule
	if err := c.do(http.MethodGet, fmt.Sprintf("/rules/%d", id), nil, nil, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (c *Client) CreateRule(rule *models.AlertRule) error {
	return c.do(http.MethodPost, "/rules", nil, rule, rule)
}

func (c *Client) UpdateRule(rule *models.AlertRule) error {
	return c.do(http.MethodPut, fmt.Sprintf("/rules/%d", rule.ID), nil, rule, rule)
}

func (c *Client) DeleteRule(id uint) error {
	return c.do(http.MethodDelete, fmt.Sprintf("/rules/%d", id), nil, nil, nil)
}

func (c *Client) EnableRule(id uint) error {
	return c.do(http.MethodPut, fmt.Sprintf("/rules/%d/enable", id), nil, nil, nil)
}

func (c *Client) DisableRule(id uint) error {
	return c.do(http.MethodPut, fmt.Sprintf("/rules/%d/disable", id), nil, nil, nil)
}

func (c *Client) ValidateRule(rule *models.AlertRule) error {
	return c.do(http.MethodPost, "/rules/validate", nil, rule, nil)
}

func (c *Client) ImportRules(rules []models.AlertRule) error {
	return c.do(http.MethodPost, "/rules/import", nil, rules, nil)
}

func (c *Client) ExportRules() ([]models.AlertRule, error) {
	var rules []models.AlertRule
	if err := c.do(http.MethodGet, "/rules/export", nil, nil, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// ReloadRules returns the number of rules the engine now evaluates.
func (c *Client) ReloadRules() (int, error) {
	var resp struct {
		Rules int `json:"rules"`
	}
	if err := c.do(http.MethodPost, "/rules/reload", nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Rules, nil
}

func (c *Client) PushSamples(samples []models.MetricSample) error {
	return c.do(http.MethodPost, "/samples", nil, samples, nil)
}

func (c *Client) do(method, endpoint string, query url.Values, data, v interface{}) error {
	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	resp, err := c.doRequest(method, endpoint, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) doRequest(method, endpoint string, query url.Values, body io.Reader) (*http.Response, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = path.Join(u.Path, endpoint)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			return nil, fmt.Errorf("API error: %s", errResp.Error)
		}
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return resp, nil
}
