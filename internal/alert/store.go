package alert

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/netwatch/internal/logger"
	"github.com/netwatch/internal/metrics"
	"github.com/netwatch/internal/models"
)

// Persister is the optional durable backing of a Store. The in-memory
// collection stays canonical; persistence failures are logged.
type Persister interface {
	SaveAlert(ctx context.Context, alert *models.Alert) error
	LoadAlerts(ctx context.Context) ([]models.Alert, error)
}

// Store holds every alert the engine has created and enforces the
// open -> acknowledged -> resolved state machine.
type Store struct {
	mutex      sync.RWMutex
	writeMutex sync.Mutex
	alerts     map[string]*models.Alert
	order      []string
	seq        int64
	persister  Persister
	now        func() time.Time
	newID      func() string
}

type StoreOption func(*Store)

func WithPersister(p Persister) StoreOption {
	return func(s *Store) { s.persister = p }
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(newID func() string) StoreOption {
	return func(s *Store) { s.newID = newID }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		alerts: make(map[string]*models.Alert),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory collection with the persisted alerts.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	alerts, err := s.persister.LoadAlerts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load alerts: %w", err)
	}

	sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].Seq < alerts[j].Seq })

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.alerts = make(map[string]*models.Alert, len(alerts))
	s.order = s.order[:0]
	s.seq = 0
	for i := range alerts {
		a := alerts[i]
		s.alerts[a.ID] = &a
		s.order = append(s.order, a.ID)
		if a.Seq > s.seq {
			s.seq = a.Seq
		}
	}
	return nil
}

// Create assigns an id to the draft, opens it and returns the stored record.
func (s *Store) Create(ctx context.Context, draft models.Alert) models.Alert {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	s.mutex.Lock()
	s.seq++
	a := draft
	a.ID = s.newID()
	a.Seq = s.seq
	a.Status = models.AlertStatusOpen
	a.CreatedAt = s.now()
	a.AcknowledgedAt, a.AcknowledgedBy = nil, ""
	a.ResolvedAt, a.ResolvedBy = nil, ""

	s.alerts[a.ID] = &a
	s.order = append(s.order, a.ID)
	saved := copyAlert(&a)
	s.mutex.Unlock()

	s.persist(ctx, saved)

	metrics.AlertsCreated.WithLabelValues(string(a.Severity), fmt.Sprint(a.IsAggregated)).Inc()
	return saved
}

// Acknowledge marks an open alert as acknowledged. Acknowledging an alert
// that is already acknowledged is allowed and re-stamps actor and time.
func (s *Store) Acknowledge(ctx context.Context, alertID, actor string) (models.Alert, error) {
	return s.transition(ctx, alertID, "acknowledge", models.AlertStatusAcknowledged, func(a *models.Alert, now time.Time) {
		a.AcknowledgedAt = &now
		a.AcknowledgedBy = actor
	})
}

// Resolve closes an open or acknowledged alert. Resolved is terminal.
func (s *Store) Resolve(ctx context.Context, alertID, actor string) (models.Alert, error) {
	return s.transition(ctx, alertID, "resolve", models.AlertStatusResolved, func(a *models.Alert, now time.Time) {
		a.ResolvedAt = &now
		a.ResolvedBy = actor
	})
}

// transition applies a status change under the state lock and persists the
// result after releasing it. writeMutex keeps saves in transition order.
func (s *Store) transition(ctx context.Context, alertID, op string, to models.AlertStatus, stamp func(*models.Alert, time.Time)) (models.Alert, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	s.mutex.Lock()
	a, ok := s.alerts[alertID]
	if !ok {
		s.mutex.Unlock()
		metrics.AlertTransitions.WithLabelValues(op, "not_found").Inc()
		return models.Alert{}, &NotFoundError{AlertID: alertID}
	}
	if a.Status == models.AlertStatusResolved {
		from := a.Status
		s.mutex.Unlock()
		metrics.AlertTransitions.WithLabelValues(op, "rejected").Inc()
		return models.Alert{}, &InvalidTransitionError{AlertID: alertID, From: from, To: to}
	}

	a.Status = to
	stamp(a, s.now())
	saved := copyAlert(a)
	s.mutex.Unlock()

	s.persist(ctx, saved)

	metrics.AlertTransitions.WithLabelValues(op, "ok").Inc()
	return saved, nil
}

func (s *Store) Get(alertID string) (models.Alert, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	a, ok := s.alerts[alertID]
	if !ok {
		return models.Alert{}, &NotFoundError{AlertID: alertID}
	}
	return copyAlert(a), nil
}

// List returns matching alerts in creation order.
func (s *Store) List(filter models.AlertFilter) []models.Alert {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := make([]models.Alert, 0, len(s.order))
	for _, id := range s.order {
		a := s.alerts[id]
		if filter.Matches(a) {
			result = append(result, copyAlert(a))
		}
	}
	return result
}

func (s *Store) Summary() models.AlertSummary {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	summary := models.AlertSummary{
		Total:      len(s.alerts),
		ByStatus:   make(map[models.AlertStatus]int),
		BySeverity: make(map[models.Severity]int),
	}
	for _, a := range s.alerts {
		summary.ByStatus[a.Status]++
		summary.BySeverity[a.Severity]++
	}
	return summary
}

func (s *Store) persist(ctx context.Context, a models.Alert) {
	if s.persister == nil {
		return
	}
	if err := s.persister.SaveAlert(ctx, &a); err != nil {
		log := logger.WithComponent("store")
		log.Error().
			Err(err).
			Str("alert_id", a.ID).
			Str("status", string(a.Status)).
			Msg("failed to persist alert")
	}
}

// copyAlert detaches the returned record from the store's pointers.
func copyAlert(a *models.Alert) models.Alert {
	c := *a
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		c.AcknowledgedAt = &t
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		c.ResolvedAt = &t
	}
	if a.MemberIDs != nil {
		c.MemberIDs = append([]string(nil), a.MemberIDs...)
	}
	return c
}
