// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

/*
Package api provides the HTTP status and trigger API using the Chi router.

Endpoints:

	GET  /health               liveness, sync state and circuit breaker state
	GET  /metrics              Prometheus metrics
	GET  /api/v1/sync/status   current sync status payload
	POST /api/v1/sync          start a sync; 202 with run_id, 409 while busy
	GET  /api/v1/ws            WebSocket status stream

Responses use a single envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", ...}}
	{"success": false, "error": {"code": "CONFLICT", "message": "..."}}

Middleware:

  - RequestIDWithLogging: X-Request-ID plus request and correlation IDs in
    the logging context
  - go-chi/cors for browser clients
  - go-chi/httprate per-IP limit on POST /api/v1/sync
  - PrometheusMetrics: request count and latency by route pattern

The Handler depends on the SyncService interface, so tests drive it with a
real orchestrator over in-memory collaborators or with a stub.
*/
package api
