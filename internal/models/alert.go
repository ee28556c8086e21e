package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type AlertStatus string

const (
	AlertStatusOpen         AlertStatus = "open"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

func (s AlertStatus) Valid() bool {
	switch s {
	case AlertStatusOpen, AlertStatusAcknowledged, AlertStatusResolved:
		return true
	}
	return false
}

// Candidate is a single rule match produced by the evaluator. It lives only
// for the duration of a cycle.
type Candidate struct {
	RuleID     uint      `json:"rule_id"`
	RuleName   string    `json:"rule_name"`
	DeviceID   string    `json:"device_id"`
	ProviderID string    `json:"provider_id"`
	CustomerID string    `json:"customer_id,omitempty"`
	PopID      string    `json:"pop_id,omitempty"`
	Metric     string    `json:"metric"`
	Value      Value     `json:"value"`
	Threshold  Value     `json:"threshold"`
	Operator   Operator  `json:"operator,omitempty"`
	Severity   Severity  `json:"severity"`
	Timestamp  time.Time `json:"timestamp"`
}

// DedupKey identifies repeats of the same condition on the same device.
type DedupKey struct {
	RuleID   uint
	DeviceID string
	Metric   string
}

func (k DedupKey) String() string {
	return fmt.Sprintf("%d|%s|%s", k.RuleID, k.DeviceID, k.Metric)
}

func (c *Candidate) Key() DedupKey {
	return DedupKey{RuleID: c.RuleID, DeviceID: c.DeviceID, Metric: c.Metric}
}

// ID is a stable identifier for the candidate, used as an aggregated alert's
// member id.
func (c *Candidate) ID() string {
	return fmt.Sprintf("%d:%s:%s@%d", c.RuleID, c.DeviceID, c.Metric, c.Timestamp.Unix())
}

type Alert struct {
	ID             string                      `json:"id" gorm:"primaryKey;size:36"`
	Seq            int64                       `json:"-" gorm:"index"`
	RuleID         uint                        `json:"rule_id" gorm:"index"`
	RuleName       string                      `json:"rule_name"`
	Title          string                      `json:"title"`
	Description    string                      `json:"description"`
	DeviceID       string                      `json:"device_id" gorm:"index"`
	ProviderID     string                      `json:"provider_id" gorm:"index"`
	CustomerID     string                      `json:"customer_id,omitempty"`
	PopID          string                      `json:"pop_id,omitempty"`
	Metric         string                      `json:"metric"`
	Value          Value                       `json:"value" gorm:"serializer:json"`
	Threshold      Value                       `json:"threshold" gorm:"serializer:json"`
	Operator       Operator                    `json:"operator,omitempty"`
	Severity       Severity                    `json:"severity" gorm:"index"`
	Timestamp      time.Time                   `json:"timestamp"`
	Status         AlertStatus                 `json:"status" gorm:"index"`
	CreatedAt      time.Time                   `json:"created_at"`
	AcknowledgedAt *time.Time                  `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string                      `json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time                  `json:"resolved_at,omitempty"`
	ResolvedBy     string                      `json:"resolved_by,omitempty"`
	IsAggregated   bool                        `json:"is_aggregated"`
	Count          int                         `json:"count,omitempty"`
	MemberIDs      datatypes.JSONSlice[string] `json:"member_ids,omitempty"`
}

// Target returns the affected device, qualified with the metric when the
// alert was raised for a single interface.
func (a *Alert) Target() string {
	if a.IsAggregated {
		return fmt.Sprintf("%d devices", a.Count)
	}
	return fmt.Sprintf("%s/%s", a.DeviceID, a.Metric)
}

// AlertFilter narrows ListAlerts. Empty fields match everything.
type AlertFilter struct {
	Status     AlertStatus `form:"status"`
	Severity   Severity    `form:"severity"`
	DeviceID   string      `form:"device"`
	ProviderID string      `form:"provider"`
}

func (f AlertFilter) Matches(a *Alert) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Severity != "" && a.Severity != f.Severity {
		return false
	}
	if f.DeviceID != "" && a.DeviceID != f.DeviceID {
		return false
	}
	if f.ProviderID != "" && a.ProviderID != f.ProviderID {
		return false
	}
	return true
}

// AlertSummary counts alerts by status and severity.
type AlertSummary struct {
	Total      int                 `json:"total"`
	ByStatus   map[AlertStatus]int `json:"by_status"`
	BySeverity map[Severity]int    `json:"by_severity"`
}
