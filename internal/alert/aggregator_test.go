package alert

import (
	"fmt"
	"strings"
	"testing"

	"github.com/netwatch/internal/models"
)

func TestAggregate_GroupsDevicesOfOneRule(t *testing.T) {
	rule := thresholdRule(1, "cpuUsage", models.OperatorGT, models.Num(80))
	rule.Aggregation = models.AggregationEvent
	rules := map[uint]*models.AlertRule{1: &rule}

	var candidates []models.Candidate
	for i := 1; i <= 5; i++ {
		candidates = append(candidates, candidateAt(1, fmt.Sprintf("dev-%d", i), baseTime))
	}

	drafts := Aggregate(candidates, rules)
	if len(drafts) != 1 {
		t.Fatalf("expected 1 aggregated alert, got %d", len(drafts))
	}

	a := drafts[0]
	if !a.IsAggregated || a.Count != 5 {
		t.Errorf("expected aggregated alert with count 5, got aggregated=%v count=%d", a.IsAggregated, a.Count)
	}
	if len(a.MemberIDs) != 5 {
		t.Errorf("expected 5 member ids, got %d", len(a.MemberIDs))
	}
	if a.Title != "High CPU Usage (5 devices affected)" {
		t.Errorf("unexpected title: %s", a.Title)
	}
	if a.DeviceID != "dev-1" {
		t.Errorf("expected base fields from the first member, got device %s", a.DeviceID)
	}
	for i := 1; i <= 5; i++ {
		if !strings.Contains(a.Description, fmt.Sprintf("dev-%d", i)) {
			t.Errorf("description should list dev-%d: %s", i, a.Description)
		}
	}
}

func TestAggregate_SingleCandidateStaysStandalone(t *testing.T) {
	rule := thresholdRule(1, "cpuUsage", models.OperatorGT, models.Num(80))
	rule.Aggregation = models.AggregationEvent
	rules := map[uint]*models.AlertRule{1: &rule}

	drafts := Aggregate([]models.Candidate{candidateAt(1, "dev-1", baseTime)}, rules)
	if len(drafts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(drafts))
	}
	if drafts[0].IsAggregated {
		t.Error("a single candidate should not be aggregated")
	}
	if drafts[0].Title != "High CPU Usage" {
		t.Errorf("unexpected title: %s", drafts[0].Title)
	}
}

func TestAggregate_NoneKeepsCandidatesSeparate(t *testing.T) {
	rule := thresholdRule(1, "cpuUsage", models.OperatorGT, models.Num(80))
	rules := map[uint]*models.AlertRule{1: &rule}

	candidates := []models.Candidate{
		candidateAt(1, "dev-1", baseTime),
		candidateAt(1, "dev-2", baseTime),
	}

	drafts := Aggregate(candidates, rules)
	if len(drafts) != 2 {
		t.Fatalf("expected 2 standalone alerts, got %d", len(drafts))
	}
	if drafts[0].DeviceID != "dev-1" || drafts[1].DeviceID != "dev-2" {
		t.Errorf("expected input order to be kept, got %s, %s", drafts[0].DeviceID, drafts[1].DeviceID)
	}
}

func TestAggregate_AverageValue(t *testing.T) {
	rule := thresholdRule(1, "cpuUsage", models.OperatorGT, models.Num(80))
	rule.Aggregation = models.AggregationAverage
	rules := map[uint]*models.AlertRule{1: &rule}

	a := candidateAt(1, "dev-1", baseTime)
	a.Value = models.Num(90)
	b := candidateAt(1, "dev-2", baseTime)
	b.Value = models.Num(100)

	drafts := Aggregate([]models.Candidate{a, b}, rules)
	if len(drafts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(drafts))
	}
	if !drafts[0].Value.Equal(models.Num(95)) {
		t.Errorf("expected average 95, got %s", drafts[0].Value)
	}
}

func TestAggregate_LongDeviceListIsTruncated(t *testing.T) {
	rule := thresholdRule(1, "cpuUsage", models.OperatorGT, models.Num(80))
	rule.Aggregation = models.AggregationEvent
	rules := map[uint]*models.AlertRule{1: &rule}

	var candidates []models.Candidate
	for i := 0; i < maxListedDevices+3; i++ {
		candidates = append(candidates, candidateAt(1, fmt.Sprintf("dev-%02d", i), baseTime))
	}

	drafts := Aggregate(candidates, rules)
	if !strings.HasSuffix(drafts[0].Description, "and 3 more") {
		t.Errorf("expected truncated device list, got %s", drafts[0].Description)
	}
}
