// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

/*
Package metrics provides Prometheus metrics collection and export for observability.

All instruments are registered on the default registry through promauto and
are exposed at /metrics by the API router:

	curl http://localhost:8787/metrics

# Available Metrics

Sync runs:
  - healthsync_sync_runs_total{trigger,status}
  - healthsync_sync_duration_seconds
  - healthsync_sync_stage_duration_seconds{stage}
  - healthsync_sync_in_progress
  - healthsync_checkpoint_timestamp_seconds

Collection and upload:
  - healthsync_source_fetch_total{category,outcome}
  - healthsync_source_fetch_duration_seconds{category}
  - healthsync_source_samples_total{category}
  - healthsync_normalize_dropped_total
  - healthsync_upload_records_total{result}
  - healthsync_upload_requests_total{outcome}
  - healthsync_upload_request_duration_seconds

Circuit breaker (upload endpoint):
  - circuit_breaker_state{name}
  - circuit_breaker_requests_total{name,result}
  - circuit_breaker_consecutive_failures{name}
  - circuit_breaker_state_transitions_total{name,from_state,to_state}

Runtime surfaces:
  - healthsync_scheduler_invocations_total{identifier,result}
  - healthsync_events_published_total{topic}
  - healthsync_events_publish_errors_total{topic}
  - healthsync_websocket_clients
  - healthsync_websocket_messages_sent_total
  - healthsync_api_requests_total{method,endpoint,status}
  - healthsync_api_request_duration_seconds{method,endpoint}

# Usage

Components call the RecordX helpers rather than touching the vectors:

	metrics.RecordSyncStage("collect", time.Since(start))
	metrics.RecordUploadResult(result.ProcessedCount, result.FailedCount)
*/
package metrics
