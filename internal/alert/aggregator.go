package alert

import (
	"fmt"
	"strings"

	"github.com/netwatch/internal/models"
)

// maxListedDevices caps how many device ids an aggregated description names.
const maxListedDevices = 10

// Aggregate turns deduplicated candidates into alert drafts. Candidates of a
// rule with aggregation enabled are grouped by rule id: a group of one stays
// a standalone alert, a larger group becomes a single aggregated alert whose
// base fields come from its first member. Output order follows the first
// appearance of each group in the input.
func Aggregate(candidates []models.Candidate, rules map[uint]*models.AlertRule) []models.Alert {
	type group struct {
		rule    *models.AlertRule
		members []models.Candidate
	}

	var order []*group
	byRule := make(map[uint]*group)

	for _, c := range candidates {
		rule := rules[c.RuleID]
		if rule == nil || !rule.Aggregation.Enabled() {
			order = append(order, &group{rule: rule, members: []models.Candidate{c}})
			continue
		}
		g, ok := byRule[c.RuleID]
		if !ok {
			g = &group{rule: rule}
			byRule[c.RuleID] = g
			order = append(order, g)
		}
		g.members = append(g.members, c)
	}

	drafts := make([]models.Alert, 0, len(order))
	for _, g := range order {
		if len(g.members) == 1 {
			drafts = append(drafts, standaloneAlert(g.members[0]))
			continue
		}
		drafts = append(drafts, aggregatedAlert(g.rule, g.members))
	}
	return drafts
}

func standaloneAlert(c models.Candidate) models.Alert {
	a := baseAlert(c)
	a.Title = c.RuleName
	if c.Operator == "" {
		a.Description = fmt.Sprintf("%s reported by device %s", c.Metric, c.DeviceID)
	} else {
		a.Description = fmt.Sprintf("%s is %s on device %s (threshold %s %s)",
			c.Metric, c.Value, c.DeviceID, c.Operator, c.Threshold)
	}
	return a
}

func aggregatedAlert(rule *models.AlertRule, members []models.Candidate) models.Alert {
	first := members[0]
	a := baseAlert(first)

	devices := make([]string, 0, len(members))
	seen := make(map[string]bool)
	memberIDs := make([]string, 0, len(members))
	for _, m := range members {
		memberIDs = append(memberIDs, m.ID())
		if !seen[m.DeviceID] {
			seen[m.DeviceID] = true
			devices = append(devices, m.DeviceID)
		}
	}

	if rule.Aggregation == models.AggregationAverage {
		if avg, ok := averageValue(members); ok {
			a.Value = models.Num(avg)
		}
	}

	listed := devices
	suffix := ""
	if len(listed) > maxListedDevices {
		listed = listed[:maxListedDevices]
		suffix = fmt.Sprintf(" and %d more", len(devices)-maxListedDevices)
	}

	a.Title = fmt.Sprintf("%s (%d devices affected)", first.RuleName, len(devices))
	a.Description = fmt.Sprintf("%s triggered %d times across %d devices: %s%s",
		first.RuleName, len(members), len(devices), strings.Join(listed, ", "), suffix)
	a.IsAggregated = true
	a.Count = len(members)
	a.MemberIDs = memberIDs
	return a
}

func averageValue(members []models.Candidate) (float64, bool) {
	var sum float64
	for _, m := range members {
		f, ok := m.Value.Float()
		if !ok {
			return 0, false
		}
		sum += f
	}
	return sum / float64(len(members)), true
}

func baseAlert(c models.Candidate) models.Alert {
	return models.Alert{
		RuleID:     c.RuleID,
		RuleName:   c.RuleName,
		DeviceID:   c.DeviceID,
		ProviderID: c.ProviderID,
		CustomerID: c.CustomerID,
		PopID:      c.PopID,
		Metric:     c.Metric,
		Value:      c.Value,
		Threshold:  c.Threshold,
		Operator:   c.Operator,
		Severity:   c.Severity,
		Timestamp:  c.Timestamp,
	}
}
