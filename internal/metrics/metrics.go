package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netwatch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// Evaluation cycle metrics
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netwatch_cycles_total",
			Help: "Total number of evaluation cycles",
		},
		[]string{"status"}, // status: success, failed
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netwatch_cycle_duration_seconds",
			Help:    "Time taken by one evaluation cycle",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	SamplesEvaluated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netwatch_samples_evaluated_total",
			Help: "Total number of metric samples evaluated",
		},
	)

	ValidationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netwatch_validation_errors_total",
			Help: "Rules or samples skipped because they were malformed",
		},
		[]string{"kind"}, // kind: rule, sample
	)

	CandidatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netwatch_candidates_total",
			Help: "Total number of alert candidates produced by the evaluator",
		},
	)

	CandidatesSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netwatch_candidates_suppressed_total",
			Help: "Candidates discarded inside their deduplication window",
		},
	)

	DedupEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "netwatch_dedup_entries",
			Help: "Number of keys tracked by the deduplicator",
		},
	)

	// Lifecycle metrics
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netwatch_alerts_created_total",
			Help: "Total number of alerts created",
		},
		[]string{"severity", "aggregated"},
	)

	AlertTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netwatch_alert_transitions_total",
			Help: "Lifecycle transitions applied to alerts",
		},
		[]string{"action", "result"}, // action: acknowledge, resolve
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netwatch_notifications_total",
			Help: "Notifications dispatched per channel",
		},
		[]string{"channel", "status"}, // status: sent, failed
	)

	NotificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netwatch_notification_duration_seconds",
			Help:    "Time taken to deliver one notification",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"channel"},
	)

	// Telemetry metrics
	SamplesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netwatch_samples_ingested_total",
			Help: "Samples accepted into the telemetry buffer",
		},
		[]string{"source"}, // source: http, kafka
	)

	SamplesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netwatch_samples_dropped_total",
			Help: "Samples dropped because the telemetry buffer was full",
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netwatch_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
