// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

/*
Package models defines the data structures shared by the Healthsync pipeline.

Key Components:

  - RawSample: category-specific reading yielded by a source provider
  - UnifiedMetric: normalized record used by every later stage and uploaded as-is
  - SyncResult: the remote service's answer to a batch upload
  - Status / Snapshot: orchestrator state as seen by observers

Categories:

	steps, heart_rate, workouts, nutrition, sleep

Serialization:

All types carry snake_case JSON tags that match the upload wire format.
Timestamps are encoded as RFC 3339 (ISO-8601) strings in UTC.
*/
package models
