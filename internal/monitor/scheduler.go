package monitor

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/netwatch/internal/logger"
	"github.com/netwatch/internal/metrics"
	"github.com/netwatch/internal/models"
)

// Cycler runs one evaluation cycle.
type Cycler interface {
	RunCycle(ctx context.Context) ([]models.Alert, error)
}

// Scheduler drives a Cycler on a fixed interval and on demand. A failed
// cycle is only retried on the next tick.
type Scheduler struct {
	cycler   Cycler
	interval time.Duration
	trigger  chan struct{}
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	stats    *SchedulerStats
}

type SchedulerStats struct {
	mutex               sync.RWMutex
	totalCycles         uint64
	failedCycles        uint64
	alertsCreated       uint64
	totalProcessingTime time.Duration
	lastRun             time.Time
	lastError           string
}

const defaultInterval = time.Minute

func NewScheduler(cycler Cycler, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		cycler:   cycler,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
		stats:    &SchedulerStats{},
	}
}

// Start runs the loop in the background until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runOnce(ctx)
			case <-s.trigger:
				s.runOnce(ctx)
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Trigger requests a cycle as soon as the loop is free. Requests made while
// one is already pending are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// RunNow runs a cycle in the caller's goroutine and records it in the run
// statistics like a scheduled one.
func (s *Scheduler) RunNow(ctx context.Context) ([]models.Alert, error) {
	return s.runOnce(ctx)
}

// Stop ends the loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.done
}

func (s *Scheduler) runOnce(ctx context.Context) ([]models.Alert, error) {
	log := logger.WithComponent("scheduler")
	startTime := time.Now()

	var (
		created []models.Alert
		err     error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				metrics.PanicsRecovered.WithLabelValues("scheduler").Inc()
				err = fmt.Errorf("cycle panicked: %v", r)
			}
		}()
		created, err = s.cycler.RunCycle(ctx)
	}()

	s.stats.mutex.Lock()
	s.stats.totalCycles++
	s.stats.totalProcessingTime += time.Since(startTime)
	s.stats.lastRun = startTime
	s.stats.alertsCreated += uint64(len(created))
	if err != nil {
		s.stats.failedCycles++
		s.stats.lastError = err.Error()
	} else {
		s.stats.lastError = ""
	}
	s.stats.mutex.Unlock()

	if err != nil {
		log.Error().Err(err).Msg("evaluation cycle failed")
	}
	return created, err
}

// GetMetrics returns run statistics for health reporting.
func (s *Scheduler) GetMetrics() map[string]interface{} {
	s.stats.mutex.RLock()
	defer s.stats.mutex.RUnlock()

	var avg float64
	if s.stats.totalCycles > 0 {
		avg = s.stats.totalProcessingTime.Seconds() / float64(s.stats.totalCycles)
	}

	m := map[string]interface{}{
		"total_cycles":        s.stats.totalCycles,
		"failed_cycles":       s.stats.failedCycles,
		"alerts_created":      s.stats.alertsCreated,
		"avg_processing_time": avg,
		"interval_seconds":    s.interval.Seconds(),
		"goroutines":          runtime.NumGoroutine(),
	}
	if !s.stats.lastRun.IsZero() {
		m["last_run"] = s.stats.lastRun.Format(time.RFC3339)
	}
	if s.stats.lastError != "" {
		m["last_error"] = s.stats.lastError
	}
	return m
}
