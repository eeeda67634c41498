// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

// Package delta restricts a normalized batch to records newer than the
// persisted sync checkpoint, and owns forward-only checkpoint updates.
package delta

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/healthsync/internal/logging"
	"github.com/tomtom215/healthsync/internal/metrics"
	"github.com/tomtom215/healthsync/internal/models"
	"github.com/tomtom215/healthsync/internal/store"
)

// FilterSince returns the records recorded strictly after checkpoint.
// A nil checkpoint keeps every record. Order is preserved and the input
// slice is never modified.
func FilterSince(checkpoint *time.Time, records []models.UnifiedMetric) []models.UnifiedMetric {
	out := make([]models.UnifiedMetric, 0, len(records))
	if checkpoint == nil {
		return append(out, records...)
	}
	for i := range records {
		if records[i].RecordedAt.After(*checkpoint) {
			out = append(out, records[i])
		}
	}
	return out
}

// Checkpoints reads and advances the persisted checkpoint.
type Checkpoints struct {
	mu    sync.Mutex
	store store.CheckpointStore
}

// NewCheckpoints wraps s.
func NewCheckpoints(s store.CheckpointStore) *Checkpoints {
	return &Checkpoints{store: s}
}

// Load returns the persisted checkpoint, or nil before the first successful sync.
func (c *Checkpoints) Load(ctx context.Context) (*time.Time, error) {
	t, err := c.store.Checkpoint(ctx)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return t, nil
}

// Advance persists t if it is later than the current checkpoint. It reports
// whether the checkpoint moved; an equal or older t is a no-op.
func (c *Checkpoints) Advance(ctx context.Context, t time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.store.Checkpoint(ctx)
	if err != nil {
		return false, fmt.Errorf("load checkpoint: %w", err)
	}
	if current != nil && !t.After(*current) {
		logging.Debug().
			Time("current", *current).
			Time("requested", t).
			Msg("Checkpoint not advanced")
		return false, nil
	}

	if err := c.store.SetCheckpoint(ctx, t.UTC()); err != nil {
		return false, fmt.Errorf("persist checkpoint: %w", err)
	}
	metrics.SetCheckpoint(t)
	return true, nil
}
