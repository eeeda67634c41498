// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

/*
Package events publishes sync run outcomes as domain events over Watermill.

Every finished run produces one SyncEvent on either <prefix>.sync.completed
or <prefix>.sync.failed. Payloads are JSON encoded with goccy/go-json and
carry a schema version.

Transports:

  - GoChannel (default): in-process pub/sub, used when no NATS URL is set
  - NATS: core NATS through watermill-nats, for external consumers
  - Embedded NATS: EmbeddedServer runs nats-server in process and the
    publisher connects to it like any external server

The Bridge subscribes to both topics and forwards events to the WebSocket
hub as sync_completed messages. It runs as a supervised service.
*/
package events
