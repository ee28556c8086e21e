package alert

import (
	"sync"
	"time"

	"github.com/netwatch/internal/metrics"
	"github.com/netwatch/internal/models"
)

// Deduplicator remembers when each (rule, device, metric) key was last
// accepted. Times are sample timestamps, so replaying historical data
// dedupes the same way live data does. Entries are never expired.
type Deduplicator struct {
	mutex sync.Mutex
	last  map[models.DedupKey]time.Time
}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{
		last: make(map[models.DedupKey]time.Time),
	}
}

// Filter returns the candidates that fall outside their rule's window, in
// input order, together with the map entries that changed. Candidates whose
// rule is unknown use a zero window.
func (d *Deduplicator) Filter(candidates []models.Candidate, rules map[uint]*models.AlertRule) ([]models.Candidate, []models.DedupEntry) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	accepted := make([]models.Candidate, 0, len(candidates))
	changed := make(map[models.DedupKey]time.Time)

	for _, c := range candidates {
		key := c.Key()
		var window time.Duration
		if rule, ok := rules[c.RuleID]; ok {
			window = rule.DedupWindow()
		}

		last, seen := d.last[key]
		if seen && window > 0 && c.Timestamp.Sub(last) < window {
			metrics.CandidatesSuppressed.Inc()
			continue
		}

		accepted = append(accepted, c)
		if seen && last.After(c.Timestamp) {
			continue
		}
		d.last[key] = c.Timestamp
		changed[key] = c.Timestamp
	}

	metrics.DedupEntries.Set(float64(len(d.last)))

	entries := make([]models.DedupEntry, 0, len(changed))
	for key, ts := range changed {
		entries = append(entries, toEntry(key, ts))
	}
	return accepted, entries
}

// Snapshot returns every tracked key.
func (d *Deduplicator) Snapshot() []models.DedupEntry {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	entries := make([]models.DedupEntry, 0, len(d.last))
	for key, ts := range d.last {
		entries = append(entries, toEntry(key, ts))
	}
	return entries
}

// Restore loads previously persisted entries, keeping the later timestamp
// when a key is already present.
func (d *Deduplicator) Restore(entries []models.DedupEntry) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for _, e := range entries {
		key := models.DedupKey{RuleID: e.RuleID, DeviceID: e.DeviceID, Metric: e.Metric}
		if cur, ok := d.last[key]; ok && cur.After(e.LastAccepted) {
			continue
		}
		d.last[key] = e.LastAccepted
	}
	metrics.DedupEntries.Set(float64(len(d.last)))
}

func (d *Deduplicator) Len() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.last)
}

func toEntry(key models.DedupKey, ts time.Time) models.DedupEntry {
	return models.DedupEntry{
		Key:          key.String(),
		RuleID:       key.RuleID,
		DeviceID:     key.DeviceID,
		Metric:       key.Metric,
		LastAccepted: ts,
	}
}
