package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/netwatch/internal/models"
)

type staticCatalog struct {
	rules []models.AlertRule
	err   error
}

func (c *staticCatalog) GetCurrentRules(ctx context.Context) ([]models.AlertRule, error) {
	if c.err != nil {
		return nil, c.err
	}
	return append([]models.AlertRule(nil), c.rules...), nil
}

type queueSource struct {
	batches [][]models.MetricSample
	err     error
}

func (s *queueSource) PullMetricSamples(ctx context.Context) ([]models.MetricSample, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.batches) == 0 {
		return nil, nil
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	return batch, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (d *recordingDispatcher) Dispatch(a models.Alert, rule models.AlertRule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, a)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.alerts)
}

type memoryDedupPersister struct {
	entries map[string]models.DedupEntry
}

func (p *memoryDedupPersister) SaveDedupEntries(ctx context.Context, entries []models.DedupEntry) error {
	for _, e := range entries {
		p.entries[e.Key] = e
	}
	return nil
}

func (p *memoryDedupPersister) LoadDedupEntries(ctx context.Context) ([]models.DedupEntry, error) {
	entries := make([]models.DedupEntry, 0, len(p.entries))
	for _, e := range p.entries {
		entries = append(entries, e)
	}
	return entries, nil
}

func cpuBatch(ts time.Time, values ...float64) []models.MetricSample {
	devices := []string{"dev-a", "dev-b", "dev-c", "dev-d", "dev-e"}
	samples := make([]models.MetricSample, 0, len(values))
	for i, v := range values {
		samples = append(samples, scalarSample(devices[i], ts, "cpuUsage", models.Num(v)))
	}
	return samples
}

// cancellingSource cancels the cycle context while handing out its batch.
type cancellingSource struct {
	cancel context.CancelFunc
	batch  []models.MetricSample
}

func (s *cancellingSource) PullMetricSamples(ctx context.Context) ([]models.MetricSample, error) {
	batch := s.batch
	s.batch = nil
	s.cancel()
	return batch, nil
}

func TestEngine_CancelledAfterPullStillCompletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rule := thresholdRule(1, "cpuUsage", models.OperatorGT, models.Num(80))
	engine := NewEngine(Config{
		Catalog: &staticCatalog{rules: []models.AlertRule{rule}},
		Source:  &cancellingSource{cancel: cancel, batch: cpuBatch(baseTime, 85, 60, 92)},
		Workers: 1,
	})

	created, err := engine.RunCycle(ctx)
	if err != nil {
		t.Fatalf("a drained batch must be evaluated, got %v", err)
	}
	if len(created) != 2 {
		t.Errorf("expected 2 alerts, got %d", len(created))
	}
	if got := engine.ListAlerts(models.AlertFilter{}); len(got) != 2 {
		t.Errorf("expected 2 stored alerts, got %d", len(got))
	}
}

func TestEngine_RunCycle(t *testing.T) {
	rule := thresholdRule(1, "cpuUsage", models.OperatorGT, models.Num(80))
	dispatcher := &recordingDispatcher{}
	engine := NewEngine(Config{
		Catalog:    &staticCatalog{rules: []models.AlertRule{rule}},
		Source:     &queueSource{batches: [][]models.MetricSample{cpuBatch(baseTime, 85, 60, 92)}},
		Dispatcher: dispatcher,
		Workers:    2,
	})

	created, err := engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(created))
	}
	if created[0].DeviceID != "dev-a" || created[1].DeviceID != "dev-c" {
		t.Errorf("expected alerts for dev-a and dev-c, got %s and %s", created[0].DeviceID, created[1].DeviceID)
	}
	for _, a := range created {
		if a.Status != models.AlertStatusOpen {
			t.Errorf("expected open alert, got %s", a.Status)
		}
	}
	if dispatcher.count() != 2 {
		t.Errorf("expected 2 dispatches, got %d", dispatcher.count())
	}
	if got := engine.ListAlerts(models.AlertFilter{Status: models.AlertStatusOpen}); len(got) != 2 {
		t.Errorf("expected 2 open alerts in store, got %d", len(got))
	}
}

func TestEngine_DedupAcrossCycles(t *testing.T) {
	rule := thresholdRule(1, "cpuUsage", models.OperatorGT, models.Num(80))
	engine := NewEngine(Config{
		Catalog: &staticCatalog{rules: []models.AlertRule{rule}},
		Source: &queueSource{batches: [][]models.MetricSample{
			cpuBatch(baseTime, 90),
			cpuBatch(baseTime.Add(time.Minute), 95),
			cpuBatch(baseTime.Add(6*time.Minute), 99),
		}},
	})

	want := []int{1, 0, 1}
	for i, n := range want {
		created, err := engine.RunCycle(context.Background())
		if err != nil {
			t.Fatalf("cycle %d failed: %v", i, err)
		}
		if len(created) != n {
			t.Errorf("cycle %d: expected %d alerts, got %d", i, n, len(created))
		}
	}
}

func TestEngine_AggregatesInterfaceDown(t *testing.T) {
	rule := thresholdRule(2, "ifOperStatus", models.OperatorEQ, models.Str("down"))
	rule.Aggregation = models.AggregationEvent

	var samples []models.MetricSample
	for _, device := range []string{"dev-a", "dev-b", "dev-c"} {
		samples = append(samples, models.MetricSample{
			DeviceID:  device,
			Timestamp: baseTime,
			Metrics: map[string]models.Reading{
				"ifOperStatus": models.InterfaceReading(map[string]models.Value{"1": models.Str("down")}),
			},
		})
	}

	dispatcher := &recordingDispatcher{}
	engine := NewEngine(Config{
		Catalog:    &staticCatalog{rules: []models.AlertRule{rule}},
		Source:     &queueSource{batches: [][]models.MetricSample{samples}},
		Dispatcher: dispatcher,
	})

	created, err := engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if len(created) != 1 || !created[0].IsAggregated || created[0].Count != 3 {
		t.Fatalf("expected one aggregated alert of 3, got %+v", created)
	}
	if dispatcher.count() != 1 {
		t.Errorf("expected a single dispatch, got %d", dispatcher.count())
	}
}

func TestEngine_SourceFailureAbortsCycle(t *testing.T) {
	rule := thresholdRule(1, "cpuUsage", models.OperatorGT, models.Num(80))
	engine := NewEngine(Config{
		Catalog: &staticCatalog{rules: []models.AlertRule{rule}},
		Source:  &queueSource{err: errors.New("connection refused")},
	})

	created, err := engine.RunCycle(context.Background())
	if err == nil {
		t.Fatal("expected an error when telemetry is unavailable")
	}
	if created != nil {
		t.Errorf("expected no alerts, got %d", len(created))
	}
	if sum := engine.Summary(); sum.Total != 0 {
		t.Errorf("expected empty store, got %d alerts", sum.Total)
	}
}

func TestEngine_CatalogFailureAbortsCycle(t *testing.T) {
	engine := NewEngine(Config{
		Catalog: &staticCatalog{err: errors.New("database locked")},
		Source:  &queueSource{},
	})

	if _, err := engine.RunCycle(context.Background()); err == nil {
		t.Fatal("expected an error when rules are unavailable")
	}
}

func TestEngine_InvalidRuleIsSkipped(t *testing.T) {
	good := thresholdRule(1, "cpuUsage", models.OperatorGT, models.Num(80))
	bad := thresholdRule(2, "cpuUsage", "~=", models.Num(10))

	engine := NewEngine(Config{
		Catalog: &staticCatalog{rules: []models.AlertRule{good, bad}},
		Source:  &queueSource{batches: [][]models.MetricSample{cpuBatch(baseTime, 85)}},
	})

	created, err := engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if len(created) != 1 || created[0].RuleID != 1 {
		t.Errorf("expected one alert from the valid rule, got %+v", created)
	}
	if rules := engine.Rules(); len(rules) != 1 {
		t.Errorf("expected 1 active rule, got %d", len(rules))
	}
}

func TestEngine_InvalidSampleIsSkipped(t *testing.T) {
	rule := thresholdRule(1, "cpuUsage", models.OperatorGT, models.Num(80))
	samples := []models.MetricSample{
		scalarSample("", baseTime, "cpuUsage", models.Num(99)),
		scalarSample("dev-a", time.Time{}, "cpuUsage", models.Num(99)),
		scalarSample("dev-b", baseTime, "cpuUsage", models.Num(99)),
	}

	engine := NewEngine(Config{
		Catalog: &staticCatalog{rules: []models.AlertRule{rule}},
		Source:  &queueSource{batches: [][]models.MetricSample{samples}},
	})

	created, err := engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if len(created) != 1 || created[0].DeviceID != "dev-b" {
		t.Errorf("expected only dev-b to alert, got %+v", created)
	}
}

func TestEngine_RestoreDedupState(t *testing.T) {
	rule := thresholdRule(1, "cpuUsage", models.OperatorGT, models.Num(80))
	persister := &memoryDedupPersister{entries: make(map[string]models.DedupEntry)}

	first := NewEngine(Config{
		Catalog:        &staticCatalog{rules: []models.AlertRule{rule}},
		Source:         &queueSource{batches: [][]models.MetricSample{cpuBatch(baseTime, 90)}},
		DedupPersister: persister,
	})
	if _, err := first.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if len(persister.entries) != 1 {
		t.Fatalf("expected 1 persisted entry, got %d", len(persister.entries))
	}

	second := NewEngine(Config{
		Catalog:        &staticCatalog{rules: []models.AlertRule{rule}},
		Source:         &queueSource{batches: [][]models.MetricSample{cpuBatch(baseTime.Add(time.Minute), 95)}},
		DedupPersister: persister,
	})
	if err := second.Restore(context.Background()); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	created, err := second.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("expected the restored window to suppress the repeat, got %d alerts", len(created))
	}
}

func TestEngine_Lifecycle(t *testing.T) {
	rule := thresholdRule(1, "cpuUsage", models.OperatorGT, models.Num(80))
	engine := NewEngine(Config{
		Catalog: &staticCatalog{rules: []models.AlertRule{rule}},
		Source:  &queueSource{batches: [][]models.MetricSample{cpuBatch(baseTime, 90)}},
	})

	created, err := engine.RunCycle(context.Background())
	if err != nil || len(created) != 1 {
		t.Fatalf("expected one alert, got %d (%v)", len(created), err)
	}
	id := created[0].ID

	if _, err := engine.Acknowledge(context.Background(), id, "alice"); err != nil {
		t.Fatalf("acknowledge failed: %v", err)
	}
	if _, err := engine.Resolve(context.Background(), id, "alice"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if _, err := engine.Resolve(context.Background(), id, "alice"); !IsInvalidTransition(err) {
		t.Errorf("expected invalid transition, got %v", err)
	}

	got, err := engine.GetAlert(id)
	if err != nil || got.Status != models.AlertStatusResolved {
		t.Errorf("expected resolved alert, got %+v (%v)", got, err)
	}
}

func TestSortCandidates(t *testing.T) {
	candidates := []models.Candidate{
		candidateAt(2, "dev-b", baseTime),
		candidateAt(1, "dev-b", baseTime),
		candidateAt(1, "dev-a", baseTime.Add(time.Second)),
		candidateAt(1, "dev-a", baseTime),
	}
	sortCandidates(candidates)

	if candidates[0].DeviceID != "dev-a" || !candidates[0].Timestamp.Equal(baseTime) {
		t.Errorf("unexpected first candidate: %+v", candidates[0])
	}
	if candidates[2].DeviceID != "dev-b" || candidates[2].RuleID != 1 {
		t.Errorf("unexpected third candidate: %+v", candidates[2])
	}
}
