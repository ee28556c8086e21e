package alert

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/netwatch/internal/logger"
	"github.com/netwatch/internal/metrics"
	"github.com/netwatch/internal/models"
)

const defaultWorkers = 8

// RuleCatalog supplies the rule set evaluated by each cycle.
type RuleCatalog interface {
	GetCurrentRules(ctx context.Context) ([]models.AlertRule, error)
}

// TelemetrySource supplies the sample batch evaluated by each cycle.
type TelemetrySource interface {
	PullMetricSamples(ctx context.Context) ([]models.MetricSample, error)
}

// Dispatcher delivers notifications for a newly created alert. It must not
// block the caller on delivery.
type Dispatcher interface {
	Dispatch(alert models.Alert, rule models.AlertRule)
}

// DedupPersister durably stores deduplicator entries.
type DedupPersister interface {
	SaveDedupEntries(ctx context.Context, entries []models.DedupEntry) error
	LoadDedupEntries(ctx context.Context) ([]models.DedupEntry, error)
}

// Config wires an Engine to its collaborators.
type Config struct {
	Catalog        RuleCatalog
	Source         TelemetrySource
	Dispatcher     Dispatcher
	Store          *Store
	DedupPersister DedupPersister
	// Workers bounds how many samples are evaluated concurrently.
	Workers int
}

// Engine runs evaluation cycles and exposes the alert lifecycle operations.
// Cycles never overlap; lifecycle calls only contend on the store.
type Engine struct {
	cycleMutex sync.Mutex

	rulesMutex sync.RWMutex
	rules      []models.AlertRule

	catalog        RuleCatalog
	source         TelemetrySource
	dispatcher     Dispatcher
	store          *Store
	dedup          *Deduplicator
	dedupPersister DedupPersister
	workers        int
}

func NewEngine(cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Store == nil {
		cfg.Store = NewStore()
	}
	return &Engine{
		catalog:        cfg.Catalog,
		source:         cfg.Source,
		dispatcher:     cfg.Dispatcher,
		store:          cfg.Store,
		dedup:          NewDeduplicator(),
		dedupPersister: cfg.DedupPersister,
		workers:        cfg.Workers,
	}
}

// Restore reloads persisted alerts and deduplicator state.
func (e *Engine) Restore(ctx context.Context) error {
	if err := e.store.Load(ctx); err != nil {
		return err
	}
	if e.dedupPersister == nil {
		return nil
	}
	entries, err := e.dedupPersister.LoadDedupEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to load dedup entries: %w", err)
	}
	e.dedup.Restore(entries)
	return nil
}

// ReloadRules pulls the catalog and atomically replaces the rule set.
// Invalid rules are logged and left out.
func (e *Engine) ReloadRules(ctx context.Context) ([]models.AlertRule, error) {
	if e.catalog == nil {
		return nil, errors.New("no rule catalog configured")
	}
	rules, err := e.catalog.GetCurrentRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rules: %w", err)
	}

	log := logger.WithComponent("engine")
	valid := make([]models.AlertRule, 0, len(rules))
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			verr := &ValidationError{Kind: "rule", ID: fmt.Sprint(rule.ID), Err: err}
			log.Warn().Err(verr).Str("rule", rule.Name).Msg("skipping invalid rule")
			metrics.ValidationErrors.WithLabelValues("rule").Inc()
			continue
		}
		valid = append(valid, rule)
	}

	e.rulesMutex.Lock()
	e.rules = valid
	e.rulesMutex.Unlock()

	return valid, nil
}

// Rules returns the rule set used by the most recent cycle or reload.
func (e *Engine) Rules() []models.AlertRule {
	e.rulesMutex.RLock()
	defer e.rulesMutex.RUnlock()
	return append([]models.AlertRule(nil), e.rules...)
}

// RunCycle evaluates one sample batch and returns the alerts it created.
// Failing to reach the rule catalog or telemetry source aborts the cycle;
// bad individual rules, samples and notifications do not.
func (e *Engine) RunCycle(ctx context.Context) ([]models.Alert, error) {
	e.cycleMutex.Lock()
	defer e.cycleMutex.Unlock()

	log := logger.WithComponent("engine")
	start := time.Now()
	defer func() {
		metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}()

	rules, err := e.ReloadRules(ctx)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	if e.source == nil {
		metrics.CyclesTotal.WithLabelValues("failed").Inc()
		return nil, errors.New("no telemetry source configured")
	}
	samples, err := e.source.PullMetricSamples(ctx)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to pull metric samples: %w", err)
	}
	// The batch has left the source; finish the cycle even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	ruleIndex := make(map[uint]*models.AlertRule, len(rules))
	for i := range rules {
		ruleIndex[rules[i].ID] = &rules[i]
	}

	candidates, err := e.evaluate(ctx, samples, rules)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	accepted, changed := e.dedup.Filter(candidates, ruleIndex)
	if e.dedupPersister != nil && len(changed) > 0 {
		if err := e.dedupPersister.SaveDedupEntries(ctx, changed); err != nil {
			log.Error().Err(err).Int("entries", len(changed)).Msg("failed to persist dedup entries")
		}
	}

	drafts := Aggregate(accepted, ruleIndex)
	created := make([]models.Alert, 0, len(drafts))
	for _, draft := range drafts {
		a := e.store.Create(ctx, draft)
		created = append(created, a)
		if e.dispatcher != nil {
			if rule, ok := ruleIndex[a.RuleID]; ok {
				e.dispatcher.Dispatch(a, *rule)
			}
		}
	}

	metrics.CyclesTotal.WithLabelValues("success").Inc()
	log.Info().
		Int("rules", len(rules)).
		Int("samples", len(samples)).
		Int("candidates", len(candidates)).
		Int("accepted", len(accepted)).
		Int("alerts", len(created)).
		Dur("duration", time.Since(start)).
		Msg("evaluation cycle completed")

	return created, nil
}

// evaluate runs the samples x rules cross product, one goroutine per sample
// bounded by the worker count, and returns candidates in a stable order.
func (e *Engine) evaluate(ctx context.Context, samples []models.MetricSample, rules []models.AlertRule) ([]models.Candidate, error) {
	log := logger.WithComponent("engine")
	sem := semaphore.NewWeighted(int64(e.workers))
	results := make([][]models.Candidate, len(samples))

	var wg sync.WaitGroup
	for i := range samples {
		sample := &samples[i]
		if err := sample.Validate(); err != nil {
			log.Warn().Err(&ValidationError{Kind: "sample", ID: sample.DeviceID, Err: err}).Msg("skipping invalid sample")
			metrics.ValidationErrors.WithLabelValues("sample").Inc()
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, fmt.Errorf("evaluation interrupted: %w", err)
		}
		wg.Add(1)
		go func(i int, sample *models.MetricSample) {
			defer wg.Done()
			defer sem.Release(1)

			var found []models.Candidate
			for r := range rules {
				c, err := Evaluate(sample, &rules[r])
				if err != nil {
					log.Warn().Err(err).Str("device_id", sample.DeviceID).Msg("rule evaluation failed")
					continue
				}
				found = append(found, c...)
			}
			results[i] = found
		}(i, sample)
	}
	wg.Wait()

	var candidates []models.Candidate
	for _, r := range results {
		candidates = append(candidates, r...)
	}
	sortCandidates(candidates)

	metrics.SamplesEvaluated.Add(float64(len(samples)))
	metrics.CandidatesTotal.Add(float64(len(candidates)))
	return candidates, nil
}

// sortCandidates orders by (device, rule, metric, timestamp) so that the
// outcome of dedup and aggregation does not depend on goroutine scheduling.
func sortCandidates(candidates []models.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.DeviceID != b.DeviceID {
			return a.DeviceID < b.DeviceID
		}
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		if a.Metric != b.Metric {
			return a.Metric < b.Metric
		}
		return a.Timestamp.Before(b.Timestamp)
	})
}

func (e *Engine) Acknowledge(ctx context.Context, alertID, actor string) (models.Alert, error) {
	return e.store.Acknowledge(ctx, alertID, actor)
}

func (e *Engine) Resolve(ctx context.Context, alertID, actor string) (models.Alert, error) {
	return e.store.Resolve(ctx, alertID, actor)
}

func (e *Engine) ListAlerts(filter models.AlertFilter) []models.Alert {
	return e.store.List(filter)
}

func (e *Engine) GetAlert(alertID string) (models.Alert, error) {
	return e.store.Get(alertID)
}

func (e *Engine) Summary() models.AlertSummary {
	return e.store.Summary()
}
