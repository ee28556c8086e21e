package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Reading is one metric entry of a sample: a scalar, or one value per
// interface index.
type Reading struct {
	Scalar     *Value
	Interfaces map[string]Value
}

// IsPerInterface reports whether the reading is keyed by interface.
func (r Reading) IsPerInterface() bool {
	return r.Scalar == nil
}

// InterfaceKeys returns the interface keys in a stable order. Numeric keys
// sort numerically so that "2" comes before "10".
func (r Reading) InterfaceKeys() []string {
	keys := make([]string, 0, len(r.Interfaces))
	for k := range r.Interfaces {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}

func (r Reading) MarshalJSON() ([]byte, error) {
	if r.Scalar != nil {
		return json.Marshal(*r.Scalar)
	}
	return json.Marshal(r.Interfaces)
}

func (r *Reading) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var ifaces map[string]Value
		if err := json.Unmarshal(data, &ifaces); err != nil {
			return fmt.Errorf("invalid per-interface reading: %w", err)
		}
		*r = Reading{Interfaces: ifaces}
		return nil
	}
	var v Value
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Reading{Scalar: &v}
	return nil
}

// ScalarReading wraps a single value.
func ScalarReading(v Value) Reading {
	return Reading{Scalar: &v}
}

// InterfaceReading wraps a per-interface mapping.
func InterfaceReading(values map[string]Value) Reading {
	return Reading{Interfaces: values}
}

// MetricSample is one telemetry snapshot for a device.
type MetricSample struct {
	DeviceID   string             `json:"device_id"`
	ProviderID string             `json:"provider_id"`
	CustomerID string             `json:"customer_id,omitempty"`
	PopID      string             `json:"pop_id,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
	Metrics    map[string]Reading `json:"metrics"`
	// Signals carries named boolean events such as "pollingFailed".
	Signals map[string]bool `json:"signals,omitempty"`
}

// Validate rejects samples the evaluator cannot attribute or order.
func (s *MetricSample) Validate() error {
	if s.DeviceID == "" {
		return fmt.Errorf("sample device id is required")
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("sample for device %s has no timestamp", s.DeviceID)
	}
	return nil
}
