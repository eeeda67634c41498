// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package store

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/healthsync/internal/models"
)

// MemoryStore is a process-local CheckpointStore.
type MemoryStore struct {
	mu         sync.Mutex
	checkpoint *time.Time
	prior      []models.UnifiedMetric
	lastSyncAt *time.Time
	closed     bool

	// SetCheckpointErr, when set, is returned by SetCheckpoint.
	SetCheckpointErr error
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.closed {
		return ErrStoreClosed
	}
	return nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func (m *MemoryStore) Checkpoint(ctx context.Context) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	return copyTime(m.checkpoint), nil
}

func (m *MemoryStore) SetCheckpoint(ctx context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	if m.SetCheckpointErr != nil {
		return m.SetCheckpointErr
	}
	t = t.UTC()
	m.checkpoint = &t
	return nil
}

func (m *MemoryStore) PriorBatch(ctx context.Context) ([]models.UnifiedMetric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	if m.prior == nil {
		return nil, nil
	}
	return append([]models.UnifiedMetric(nil), m.prior...), nil
}

func (m *MemoryStore) SetPriorBatch(ctx context.Context, batch []models.UnifiedMetric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	m.prior = append([]models.UnifiedMetric{}, batch...)
	return nil
}

func (m *MemoryStore) ClearPriorBatch(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	m.prior = nil
	return nil
}

func (m *MemoryStore) LastSyncAt(ctx context.Context) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	return copyTime(m.lastSyncAt), nil
}

func (m *MemoryStore) SetLastSyncAt(ctx context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	t = t.UTC()
	m.lastSyncAt = &t
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
