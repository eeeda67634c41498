// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

/*
Package config provides centralized configuration management for Healthsync.

Configuration is layered with Koanf v2: built-in defaults, an optional YAML
file (CONFIG_PATH or ./config.yaml, /etc/healthsync/config.yaml), then
environment variables. Only mapped environment variables are read.

# Environment Variables

Sync pipeline (SyncConfig):
  - SYNC_INTERVAL: Scheduler poll interval (default: 1s)
  - SYNC_RESCHEDULE_OFFSET: Earliest begin of the next background run (default: 15m)
  - SYNC_CONFLICT_TOLERANCE: Conflict window for same-type records (default: 60s)
  - SYNC_EXPIRATION_WINDOW: Deadline of one background invocation (default: 30s)
  - SYNC_CATEGORY_TIMEOUT: Per-category fetch timeout (default: 20s)
  - SYNC_CATEGORIES: Comma-separated categories (default: all five)
  - SYNC_TASK_IDENTIFIER: Background task identifier
  - SYNC_RUN_ON_STARTUP: Submit a run immediately on boot (default: true)

Upload (UploadConfig):
  - UPLOAD_BASE_URL: Remote API base URL (required)
  - UPLOAD_BATCH_PATH: Batch endpoint path (default: /api/v1/health/sync)
  - UPLOAD_TOKEN: Bearer token; empty means not authenticated
  - UPLOAD_TIMEOUT: Per-request timeout (default: 30s)
  - UPLOAD_MAX_BATCH_SIZE: Records per request (default: 500)
  - UPLOAD_REQUESTS_PER_SECOND, UPLOAD_BURST: Chunk pacing

Store, sources and events:
  - STORE_PATH, STORE_IN_MEMORY: BadgerDB location
  - FIT_DIR, EXPORT_DIR: File-backed providers
  - EVENTS_ENABLED, NATS_URL, EVENTS_TOPIC_PREFIX: Event transport

HTTP server (ServerConfig):
  - HTTP_HOST, HTTP_PORT, HTTP_TIMEOUT
  - CORS_ORIGINS: Comma-separated allowed origins
  - TRIGGER_RATE_LIMIT, TRIGGER_RATE_WINDOW: Manual trigger rate limit

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Usage

	cfg, err := config.Load()
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	categories, _ := cfg.Sync.CategoryList()
*/
package config
