package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type Operator string

const (
	OperatorGT       Operator = ">"
	OperatorLT       Operator = "<"
	OperatorGTE      Operator = ">="
	OperatorLTE      Operator = "<="
	OperatorEQ       Operator = "=="
	OperatorStrictEQ Operator = "==="
)

// IsEquality reports whether op compares by exact value rather than order.
func (op Operator) IsEquality() bool {
	return op == OperatorEQ || op == OperatorStrictEQ
}

func (op Operator) Valid() bool {
	switch op {
	case OperatorGT, OperatorLT, OperatorGTE, OperatorLTE, OperatorEQ, OperatorStrictEQ:
		return true
	}
	return false
}

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

type Aggregation string

const (
	AggregationNone    Aggregation = "none"
	AggregationAverage Aggregation = "average"
	AggregationEvent   Aggregation = "event"
)

// Enabled reports whether candidates of a rule are grouped across devices.
// An empty mode means none.
func (a Aggregation) Enabled() bool {
	return a == AggregationAverage || a == AggregationEvent
}

func (a Aggregation) Valid() bool {
	switch a {
	case "", AggregationNone, AggregationAverage, AggregationEvent:
		return true
	}
	return false
}

type ConditionType string

const (
	ConditionThreshold ConditionType = "threshold"
	ConditionEvent     ConditionType = "event"
)

// Condition is either a threshold comparison on a metric or a named boolean
// event signal. Type selects which fields apply.
type Condition struct {
	Type      ConditionType `json:"type" yaml:"type"`
	Metric    string        `json:"metric,omitempty" yaml:"metric,omitempty"`
	Operator  Operator      `json:"operator,omitempty" yaml:"operator,omitempty"`
	Threshold Value         `json:"threshold" yaml:"threshold" gorm:"serializer:json"`
	Event     string        `json:"event,omitempty" yaml:"event,omitempty"`
}

type AlertRule struct {
	ID                 uint                        `json:"id" yaml:"id" gorm:"primaryKey"`
	Name               string                      `json:"name" yaml:"name" gorm:"uniqueIndex;not null"`
	Description        string                      `json:"description" yaml:"description"`
	Condition          Condition                   `json:"condition" yaml:"condition" gorm:"embedded;embeddedPrefix:condition_"`
	Severity           Severity                    `json:"severity" yaml:"severity" gorm:"not null"`
	DedupWindowSeconds int                         `json:"deduplication_window_seconds" yaml:"deduplication_window_seconds"`
	Aggregation        Aggregation                 `json:"aggregation" yaml:"aggregation"`
	Targets            datatypes.JSONSlice[string] `json:"targets" yaml:"targets"`
	Disabled           bool                        `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	CreatedAt          time.Time                   `json:"created_at" yaml:"-"`
	UpdatedAt          time.Time                   `json:"updated_at" yaml:"-"`
}

// DedupWindow returns the rule's deduplication window as a duration.
func (r *AlertRule) DedupWindow() time.Duration {
	return time.Duration(r.DedupWindowSeconds) * time.Second
}

// Validate checks the rule is well-formed enough to evaluate.
func (r *AlertRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("invalid severity: %q", r.Severity)
	}
	if !r.Aggregation.Valid() {
		return fmt.Errorf("invalid aggregation: %q", r.Aggregation)
	}
	if r.DedupWindowSeconds < 0 {
		return fmt.Errorf("deduplication window must not be negative")
	}

	switch r.Condition.Type {
	case ConditionThreshold:
		if r.Condition.Metric == "" {
			return fmt.Errorf("threshold condition requires a metric")
		}
		if !r.Condition.Operator.Valid() {
			return fmt.Errorf("invalid operator: %q", r.Condition.Operator)
		}
		if r.Condition.Threshold.IsText && !r.Condition.Operator.IsEquality() {
			if _, ok := r.Condition.Threshold.Float(); !ok {
				return fmt.Errorf("operator %s requires a numeric threshold", r.Condition.Operator)
			}
		}
	case ConditionEvent:
		if r.Condition.Event == "" {
			return fmt.Errorf("event condition requires an event name")
		}
	default:
		return fmt.Errorf("invalid condition type: %q", r.Condition.Type)
	}
	return nil
}
