// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Sync runs and per-stage latency
// - Source collection per category
// - Normalization drops and upload outcomes
// - Checkpoint progress
// - Upload circuit breaker
// - Events, WebSocket clients and the HTTP API

var (
	// Sync Run Metrics
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthsync_sync_runs_total",
			Help: "Total number of sync runs by trigger and final status",
		},
		[]string{"trigger", "status"}, // trigger: background, manual, api; status: success, error, busy
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "healthsync_sync_duration_seconds",
			Help:    "Duration of complete sync runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
	)

	SyncStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "healthsync_sync_stage_duration_seconds",
			Help:    "Duration of individual sync pipeline stages in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"}, // collect, normalize, filter, resolve, upload, persist
	)

	SyncInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "healthsync_sync_in_progress",
			Help: "1 while a sync run holds the pipeline, 0 otherwise",
		},
	)

	// Source Metrics
	SourceFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthsync_source_fetch_total",
			Help: "Total number of category fetches by outcome",
		},
		[]string{"category", "outcome"}, // outcome: success, unavailable, denied, timeout, error
	)

	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "healthsync_source_fetch_duration_seconds",
			Help:    "Duration of category fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"category"},
	)

	SourceSamplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthsync_source_samples_total",
			Help: "Total number of raw samples collected",
		},
		[]string{"category"},
	)

	// Normalization Metrics
	NormalizeDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthsync_normalize_dropped_total",
			Help: "Total number of raw samples dropped during normalization",
		},
	)

	// Upload Metrics
	UploadRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthsync_upload_records_total",
			Help: "Total number of uploaded records by server result",
		},
		[]string{"result"}, // processed, failed
	)

	UploadRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthsync_upload_requests_total",
			Help: "Total number of upload HTTP requests by outcome",
		},
		[]string{"outcome"}, // success, auth_error, network_error
	)

	UploadRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "healthsync_upload_request_duration_seconds",
			Help:    "Duration of upload HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Checkpoint Metrics
	CheckpointTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "healthsync_checkpoint_timestamp_seconds",
			Help: "Unix timestamp of the persisted sync checkpoint",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Scheduler Metrics
	SchedulerInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthsync_scheduler_invocations_total",
			Help: "Total number of background task invocations by completion result",
		},
		[]string{"identifier", "result"}, // result: success, failure, expired
	)

	// Event Metrics
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthsync_events_published_total",
			Help: "Total number of domain events published",
		},
		[]string{"topic"},
	)

	EventsPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthsync_events_publish_errors_total",
			Help: "Total number of domain event publish failures",
		},
		[]string{"topic"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "healthsync_websocket_clients",
			Help: "Current number of connected status stream clients",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthsync_websocket_messages_sent_total",
			Help: "Total number of status messages sent to clients",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthsync_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "healthsync_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordSyncRun records the outcome of a finished sync run.
func RecordSyncRun(trigger, status string, duration time.Duration) {
	SyncRunsTotal.WithLabelValues(trigger, status).Inc()
	if duration > 0 {
		SyncDuration.Observe(duration.Seconds())
	}
}

// RecordSyncStage records a pipeline stage duration.
func RecordSyncStage(stage string, duration time.Duration) {
	SyncStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// SetSyncInProgress flips the in-progress gauge.
func SetSyncInProgress(running bool) {
	if running {
		SyncInProgress.Set(1)
	} else {
		SyncInProgress.Set(0)
	}
}

// RecordSourceFetch records a category fetch.
func RecordSourceFetch(category, outcome string, samples int, duration time.Duration) {
	SourceFetchTotal.WithLabelValues(category, outcome).Inc()
	SourceFetchDuration.WithLabelValues(category).Observe(duration.Seconds())
	if samples > 0 {
		SourceSamplesTotal.WithLabelValues(category).Add(float64(samples))
	}
}

// RecordNormalizeDropped records samples discarded by the normalizer.
func RecordNormalizeDropped(n int) {
	if n > 0 {
		NormalizeDroppedTotal.Add(float64(n))
	}
}

// RecordUploadResult records the server-reported record counts.
func RecordUploadResult(processed, failed int) {
	if processed > 0 {
		UploadRecordsTotal.WithLabelValues("processed").Add(float64(processed))
	}
	if failed > 0 {
		UploadRecordsTotal.WithLabelValues("failed").Add(float64(failed))
	}
}

// RecordUploadRequest records a single upload HTTP request.
func RecordUploadRequest(outcome string, duration time.Duration) {
	UploadRequestsTotal.WithLabelValues(outcome).Inc()
	UploadRequestDuration.Observe(duration.Seconds())
}

// SetCheckpoint exports the persisted checkpoint.
func SetCheckpoint(t time.Time) {
	CheckpointTimestamp.Set(float64(t.Unix()))
}

// RecordSchedulerInvocation records how a background invocation ended.
func RecordSchedulerInvocation(identifier, result string) {
	SchedulerInvocationsTotal.WithLabelValues(identifier, result).Inc()
}

// RecordEventPublished records a published domain event.
func RecordEventPublished(topic string, err error) {
	if err != nil {
		EventsPublishErrors.WithLabelValues(topic).Inc()
		return
	}
	EventsPublishedTotal.WithLabelValues(topic).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
