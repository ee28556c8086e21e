package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/netwatch/internal/models"
)

type mockCycler struct {
	mu     sync.Mutex
	calls  int
	ran    chan struct{}
	err    error
	panics bool
}

func newMockCycler() *mockCycler {
	return &mockCycler{ran: make(chan struct{}, 16)}
}

func (m *mockCycler) RunCycle(ctx context.Context) ([]models.Alert, error) {
	m.mu.Lock()
	m.calls++
	panics, err := m.panics, m.err
	m.mu.Unlock()
	defer func() { m.ran <- struct{}{} }()

	if panics {
		panic("boom")
	}
	if err != nil {
		return nil, err
	}
	return []models.Alert{{ID: "a"}, {ID: "b"}}, nil
}

func waitForRun(t *testing.T, m *mockCycler) {
	t.Helper()
	select {
	case <-m.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not run")
	}
}

func TestScheduler_Trigger(t *testing.T) {
	cycler := newMockCycler()
	s := NewScheduler(cycler, time.Hour)
	s.Start(context.Background())
	defer s.Stop()

	s.Trigger()
	waitForRun(t, cycler)
	s.Stop()

	stats := s.GetMetrics()
	if stats["total_cycles"] != uint64(1) {
		t.Errorf("expected 1 cycle, got %v", stats["total_cycles"])
	}
	if stats["alerts_created"] != uint64(2) {
		t.Errorf("expected 2 alerts, got %v", stats["alerts_created"])
	}
	if _, ok := stats["last_run"]; !ok {
		t.Error("expected last_run to be reported")
	}
}

func TestScheduler_Ticker(t *testing.T) {
	cycler := newMockCycler()
	s := NewScheduler(cycler, 10*time.Millisecond)
	s.Start(context.Background())

	waitForRun(t, cycler)
	waitForRun(t, cycler)
	s.Stop()

	cycler.mu.Lock()
	defer cycler.mu.Unlock()
	if cycler.calls < 2 {
		t.Errorf("expected at least 2 cycles, got %d", cycler.calls)
	}
}

func TestScheduler_FailureAndPanicAreRecorded(t *testing.T) {
	cycler := newMockCycler()
	cycler.err = errors.New("telemetry unavailable")
	s := NewScheduler(cycler, time.Hour)
	s.Start(context.Background())

	s.Trigger()
	waitForRun(t, cycler)

	cycler.mu.Lock()
	cycler.err = nil
	cycler.panics = true
	cycler.mu.Unlock()

	s.Trigger()
	waitForRun(t, cycler)
	s.Stop()

	stats := s.GetMetrics()
	if stats["failed_cycles"] != uint64(2) {
		t.Errorf("expected 2 failed cycles, got %v", stats["failed_cycles"])
	}
	if stats["last_error"] != "cycle panicked: boom" {
		t.Errorf("unexpected last error: %v", stats["last_error"])
	}
}

func TestScheduler_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(newMockCycler(), time.Hour)
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}
}

func TestScheduler_RunNowRecordsStats(t *testing.T) {
	cycler := newMockCycler()
	s := NewScheduler(cycler, 0)

	created, err := s.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(created) != 2 {
		t.Errorf("expected 2 alerts, got %d", len(created))
	}

	cycler.mu.Lock()
	cycler.err = errors.New("telemetry unavailable")
	cycler.mu.Unlock()
	if _, err := s.RunNow(context.Background()); err == nil {
		t.Error("expected the cycle error to be returned")
	}

	stats := s.GetMetrics()
	if stats["total_cycles"] != uint64(2) || stats["failed_cycles"] != uint64(1) {
		t.Errorf("unexpected stats: %v", stats)
	}
	if stats["interval_seconds"] != defaultInterval.Seconds() {
		t.Errorf("expected default interval, got %v", stats["interval_seconds"])
	}
}
