// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

// Package store persists the sync checkpoint and the state carried between
// runs: the in-flight prior batch and the last successful sync time.
//
// BadgerStore is the durable implementation; MemoryStore backs tests.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/healthsync/internal/models"
)

// Fixed keys. The checkpoint key is part of the persisted format and must not change.
const (
	KeyCheckpoint = "sync/checkpoint/last_sync_timestamp"
	KeyPriorBatch = "sync/prior_batch"
	KeyLastSyncAt = "sync/last_sync_at"
)

// CheckpointStore is the persistence boundary of the sync pipeline.
//
// Getters return nil (not an error) when a value has never been written.
type CheckpointStore interface {
	// Checkpoint returns the latest persisted sync timestamp.
	Checkpoint(ctx context.Context) (*time.Time, error)
	// SetCheckpoint overwrites the checkpoint. Monotonicity is enforced by callers.
	SetCheckpoint(ctx context.Context, t time.Time) error

	// PriorBatch returns the batch of the last run that was not fully accepted.
	PriorBatch(ctx context.Context) ([]models.UnifiedMetric, error)
	SetPriorBatch(ctx context.Context, batch []models.UnifiedMetric) error
	ClearPriorBatch(ctx context.Context) error

	// LastSyncAt is the display time of the last successful run.
	LastSyncAt(ctx context.Context) (*time.Time, error)
	SetLastSyncAt(ctx context.Context, t time.Time) error

	Close() error
}

// Errors
var (
	// ErrStoreClosed is returned when the store is closed.
	ErrStoreClosed = fmt.Errorf("store is closed")
)

func encodeTime(t time.Time) []byte {
	return []byte(t.UTC().Format(time.RFC3339Nano))
}

func decodeTime(b []byte) (*time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, string(b))
	if err != nil {
		return nil, fmt.Errorf("decode timestamp %q: %w", b, err)
	}
	t = t.UTC()
	return &t, nil
}
