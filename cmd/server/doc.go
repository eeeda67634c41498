// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

/*
Package main is the entry point for the Healthsync server.

Healthsync collects health samples (steps, heart rate, workouts, nutrition,
sleep) from local sources, normalizes them, and uploads them in the
background to a remote sync endpoint. Only records newer than the persisted
checkpoint are uploaded, and the checkpoint advances only when the endpoint
accepts every record.

# Application Architecture

	RootSupervisor ("healthsync")
	├── DataSupervisor ("data-layer")
	│   └── Store GC (BadgerDB on disk)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket Hub (status stream)
	│   ├── Task Scheduler (background sync every 15 minutes)
	│   └── Event Bridge (events enabled)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (status, trigger, metrics, swagger)

Initialization order:

 1. Configuration: koanf defaults, optional YAML file, environment
 2. Logging: zerolog global logger
 3. Checkpoint store: BadgerDB
 4. Sources: FIT and JSON export providers per category
 5. Upload client: circuit breaker, rate limiter, token auth gate
 6. Scheduler, WebSocket hub, event publisher
 7. Orchestrator, registered as the background task handler
 8. HTTP API and supervisor tree

# Configuration

Common environment variables:

	UPLOAD_BASE_URL   remote sync endpoint (required)
	UPLOAD_TOKEN      bearer token (JWT expiry is honored)
	STORE_PATH        BadgerDB directory (default /data/healthsync)
	FIT_DIR           directory of .fit activity files
	EXPORT_DIR        directory of <category>.json exports
	NATS_URL          publish sync events to NATS instead of in-process
	NATS_EMBEDDED     run a NATS server in process for sync events
	HTTP_PORT         status API port (default 8787)
	LOG_LEVEL         trace, debug, info, warn, error

# Signal Handling

SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains within
10s, detached manual runs finish, then the event publisher and the store are
closed.

# Example Usage

	export UPLOAD_BASE_URL=https://health.example.com
	export UPLOAD_TOKEN=$(cat token.jwt)
	export EXPORT_DIR=/data/export
	./healthsync
*/
package main
