package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/netwatch/internal/alert"
	"github.com/netwatch/internal/logger"
	"github.com/netwatch/internal/metrics"
	"github.com/netwatch/internal/models"
)

const defaultTimeout = 10 * time.Second

// DefaultTargets is the target to channel mapping used when none is
// configured.
func DefaultTargets() map[string]string {
	return map[string]string{
		"noc-team":         ChannelPush,
		"provider-admin":   ChannelEmail,
		"field-technician": ChannelSMS,
	}
}

// Router fans an alert out to the channels of its rule's targets. Each
// target is delivered on its own goroutine, so a slow or failing channel
// never holds up the evaluation cycle or the other targets.
type Router struct {
	targets   map[string]string
	notifiers map[string]Notifier
	timeout   time.Duration

	mutex  sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewRouter(targets map[string]string, timeout time.Duration) *Router {
	if len(targets) == 0 {
		targets = DefaultTargets()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Router{
		targets:   targets,
		notifiers: make(map[string]Notifier),
		timeout:   timeout,
	}
}

// Register binds a channel name to its notifier.
func (r *Router) Register(channel string, n Notifier) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.notifiers[channel] = n
}

// Dispatch implements alert.Dispatcher. It returns immediately.
func (r *Router) Dispatch(a models.Alert, rule models.AlertRule) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	log := logger.WithComponent("router")
	if r.closed {
		log.Warn().Str("alert_id", a.ID).Msg("router is shut down, dropping notifications")
		return
	}

	text := FormatMessage(a)
	seen := make(map[string]bool, len(rule.Targets))
	for _, target := range rule.Targets {
		if seen[target] {
			continue
		}
		seen[target] = true
		channel := r.targets[target]
		msg := Message{Target: target, Channel: channel, Text: text, Alert: a}

		r.wg.Add(1)
		go r.deliver(r.notifiers[channel], msg)
	}
}

func (r *Router) deliver(n Notifier, msg Message) {
	defer r.wg.Done()

	log := logger.WithComponent("router")
	defer func() {
		if rec := recover(); rec != nil {
			metrics.PanicsRecovered.WithLabelValues("router").Inc()
			metrics.NotificationsTotal.WithLabelValues(msg.Channel, "failed").Inc()
			log.Error().Interface("panic", rec).Str("alert_id", msg.Alert.ID).Str("target", msg.Target).Msg("notifier panicked")
		}
	}()

	var err error
	switch {
	case msg.Channel == "":
		err = errors.New("no channel configured for target")
	case n == nil:
		err = fmt.Errorf("channel %q is not enabled", msg.Channel)
	default:
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		start := time.Now()
		err = n.Notify(ctx, msg)
		cancel()
		metrics.NotificationDuration.WithLabelValues(msg.Channel).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		derr := &alert.DispatchError{AlertID: msg.Alert.ID, Target: msg.Target, Channel: msg.Channel, Err: err}
		metrics.NotificationsTotal.WithLabelValues(msg.Channel, "failed").Inc()
		log.Error().Err(derr).Msg("notification failed")
		return
	}

	metrics.NotificationsTotal.WithLabelValues(msg.Channel, "sent").Inc()
	log.Debug().
		Str("alert_id", msg.Alert.ID).
		Str("target", msg.Target).
		Str("channel", msg.Channel).
		Msg("notification sent")
}

// Wait blocks until every dispatched notification has finished.
func (r *Router) Wait() {
	r.wg.Wait()
}

// Shutdown stops accepting new alerts and waits for in-flight deliveries
// until ctx is done.
func (r *Router) Shutdown(ctx context.Context) error {
	r.mutex.Lock()
	r.closed = true
	r.mutex.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notifications still in flight: %w", ctx.Err())
	}
}
