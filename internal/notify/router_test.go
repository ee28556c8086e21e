package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/netwatch/internal/models"
)

type mockNotifier struct {
	mu       sync.Mutex
	messages []Message
	err      error
	delay    time.Duration
	panics   bool
}

func (m *mockNotifier) Notify(ctx context.Context, msg Message) error {
	if m.panics {
		panic("notifier exploded")
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return m.err
}

func (m *mockNotifier) received() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}

func testAlert() models.Alert {
	return models.Alert{
		ID:       "alert-1",
		RuleID:   1,
		Title:    "High CPU Usage",
		DeviceID: "router-7",
		Metric:   "cpuUsage",
		Value:    models.Num(92),
		Severity: models.SeverityWarning,
		Status:   models.AlertStatusOpen,
	}
}

func testRule(targets ...string) models.AlertRule {
	return models.AlertRule{ID: 1, Name: "High CPU Usage", Severity: models.SeverityWarning, Targets: targets}
}

func TestFormatMessage(t *testing.T) {
	a := testAlert()
	if got := FormatMessage(a); got != "[WARNING] High CPU Usage - router-7/cpuUsage" {
		t.Errorf("unexpected message: %s", got)
	}

	a.IsAggregated = true
	a.Count = 4
	a.Severity = models.SeverityCritical
	if got := FormatMessage(a); got != "[CRITICAL] High CPU Usage - 4 devices" {
		t.Errorf("unexpected aggregated message: %s", got)
	}
}

func TestRouter_DispatchToAllTargets(t *testing.T) {
	push := &mockNotifier{}
	email := &mockNotifier{}

	r := NewRouter(nil, time.Second)
	r.Register(ChannelPush, push)
	r.Register(ChannelEmail, email)

	r.Dispatch(testAlert(), testRule("noc-team", "provider-admin"))
	r.Wait()

	if got := push.received(); len(got) != 1 || got[0].Target != "noc-team" {
		t.Errorf("expected one push message for noc-team, got %+v", got)
	}
	got := email.received()
	if len(got) != 1 || got[0].Channel != ChannelEmail {
		t.Fatalf("expected one email message, got %+v", got)
	}
	if got[0].Text != "[WARNING] High CPU Usage - router-7/cpuUsage" || got[0].Alert.ID != "alert-1" {
		t.Errorf("unexpected email message: %+v", got[0])
	}
}

func TestRouter_DuplicateTargetsDeliverOnce(t *testing.T) {
	push := &mockNotifier{}
	email := &mockNotifier{}

	r := NewRouter(nil, time.Second)
	r.Register(ChannelPush, push)
	r.Register(ChannelEmail, email)

	r.Dispatch(testAlert(), testRule("noc-team", "provider-admin", "noc-team"))
	r.Wait()

	if got := push.received(); len(got) != 1 {
		t.Errorf("expected one delivery to noc-team, got %d", len(got))
	}
	if got := email.received(); len(got) != 1 {
		t.Errorf("expected one delivery to provider-admin, got %d", len(got))
	}
}

func TestRouter_FailingTargetDoesNotBlockOthers(t *testing.T) {
	failing := &mockNotifier{err: errors.New("smtp down")}
	panicking := &mockNotifier{panics: true}
	push := &mockNotifier{}

	r := NewRouter(map[string]string{
		"noc-team":         ChannelPush,
		"provider-admin":   ChannelEmail,
		"field-technician": ChannelSMS,
		"nobody":           "",
	}, time.Second)
	r.Register(ChannelPush, push)
	r.Register(ChannelEmail, failing)
	r.Register(ChannelSMS, panicking)

	r.Dispatch(testAlert(), testRule("provider-admin", "field-technician", "unknown-team", "noc-team"))
	r.Wait()

	if len(push.received()) != 1 {
		t.Errorf("expected push delivery despite other failures, got %d", len(push.received()))
	}
}

func TestRouter_UnregisteredChannel(t *testing.T) {
	r := NewRouter(nil, time.Second)

	done := make(chan struct{})
	go func() {
		r.Dispatch(testAlert(), testRule("field-technician"))
		r.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch to an unregistered channel should finish immediately")
	}
}

func TestRouter_DispatchDoesNotBlock(t *testing.T) {
	slow := &mockNotifier{delay: 200 * time.Millisecond}
	r := NewRouter(nil, time.Second)
	r.Register(ChannelPush, slow)

	start := time.Now()
	r.Dispatch(testAlert(), testRule("noc-team"))
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("dispatch blocked for %s", elapsed)
	}
	r.Wait()
	if len(slow.received()) != 1 {
		t.Error("expected slow notifier to finish eventually")
	}
}

func TestRouter_Timeout(t *testing.T) {
	slow := &mockNotifier{delay: time.Second}
	r := NewRouter(nil, 20*time.Millisecond)
	r.Register(ChannelPush, slow)

	r.Dispatch(testAlert(), testRule("noc-team"))
	r.Wait()

	if len(slow.received()) != 0 {
		t.Error("expected delivery to be cut off by the timeout")
	}
}

func TestRouter_Shutdown(t *testing.T) {
	push := &mockNotifier{delay: 50 * time.Millisecond}
	r := NewRouter(nil, time.Second)
	r.Register(ChannelPush, push)

	r.Dispatch(testAlert(), testRule("noc-team"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if len(push.received()) != 1 {
		t.Error("shutdown should wait for in-flight deliveries")
	}

	r.Dispatch(testAlert(), testRule("noc-team"))
	r.Wait()
	if len(push.received()) != 1 {
		t.Error("alerts dispatched after shutdown should be dropped")
	}
}

func TestRouter_ShutdownDeadline(t *testing.T) {
	push := &mockNotifier{delay: time.Second}
	r := NewRouter(nil, 5*time.Second)
	r.Register(ChannelPush, push)

	r.Dispatch(testAlert(), testRule("noc-team"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Shutdown(ctx); err == nil {
		t.Error("expected shutdown to report notifications still in flight")
	}
	r.Wait()
}
