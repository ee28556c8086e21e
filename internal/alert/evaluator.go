package alert

import (
	"fmt"

	"github.com/netwatch/internal/models"
)

// Evaluate matches one sample against one rule. It has no side effects and is
// safe to call from many goroutines.
func Evaluate(sample *models.MetricSample, rule *models.AlertRule) ([]models.Candidate, error) {
	switch rule.Condition.Type {
	case models.ConditionThreshold:
		return evaluateThreshold(sample, rule)
	case models.ConditionEvent:
		return evaluateEvent(sample, rule), nil
	default:
		return nil, &ValidationError{
			Kind: "rule",
			ID:   fmt.Sprint(rule.ID),
			Err:  fmt.Errorf("invalid condition type: %q", rule.Condition.Type),
		}
	}
}

func evaluateThreshold(sample *models.MetricSample, rule *models.AlertRule) ([]models.Candidate, error) {
	cond := rule.Condition
	reading, ok := sample.Metrics[cond.Metric]
	if !ok {
		return nil, nil
	}

	if !reading.IsPerInterface() {
		matched, err := evaluateCondition(cond.Operator, *reading.Scalar, cond.Threshold)
		if err != nil {
			return nil, &ValidationError{Kind: "rule", ID: fmt.Sprint(rule.ID), Err: err}
		}
		if !matched {
			return nil, nil
		}
		return []models.Candidate{newCandidate(sample, rule, cond.Metric, *reading.Scalar)}, nil
	}

	var candidates []models.Candidate
	for _, key := range reading.InterfaceKeys() {
		value := reading.Interfaces[key]
		matched, err := evaluateCondition(cond.Operator, value, cond.Threshold)
		if err != nil {
			return nil, &ValidationError{Kind: "rule", ID: fmt.Sprint(rule.ID), Err: err}
		}
		if matched {
			metric := fmt.Sprintf("%s.%s", cond.Metric, key)
			candidates = append(candidates, newCandidate(sample, rule, metric, value))
		}
	}
	return candidates, nil
}

func evaluateEvent(sample *models.MetricSample, rule *models.AlertRule) []models.Candidate {
	if !sample.Signals[rule.Condition.Event] {
		return nil
	}
	return []models.Candidate{newCandidate(sample, rule, rule.Condition.Event, models.Str("true"))}
}

// evaluateCondition compares current against threshold. Equality operators
// compare exactly with no numeric coercion; ordering operators need both
// sides to be numeric and never match otherwise.
func evaluateCondition(operator models.Operator, current, threshold models.Value) (bool, error) {
	if operator.IsEquality() {
		return current.Equal(threshold), nil
	}

	c, okC := current.Float()
	t, okT := threshold.Float()
	if !okC || !okT {
		return false, nil
	}

	switch operator {
	case models.OperatorGT:
		return c > t, nil
	case models.OperatorLT:
		return c < t, nil
	case models.OperatorGTE:
		return c >= t, nil
	case models.OperatorLTE:
		return c <= t, nil
	default:
		return false, fmt.Errorf("unknown operator %q", operator)
	}
}

func newCandidate(sample *models.MetricSample, rule *models.AlertRule, metric string, value models.Value) models.Candidate {
	return models.Candidate{
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		DeviceID:   sample.DeviceID,
		ProviderID: sample.ProviderID,
		CustomerID: sample.CustomerID,
		PopID:      sample.PopID,
		Metric:     metric,
		Value:      value,
		Threshold:  rule.Condition.Threshold,
		Operator:   rule.Condition.Operator,
		Severity:   rule.Severity,
		Timestamp:  sample.Timestamp,
	}
}
