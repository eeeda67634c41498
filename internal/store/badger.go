// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/healthsync/internal/logging"
	"github.com/tomtom215/healthsync/internal/models"
)

// Config holds BadgerStore options.
type Config struct {
	// Path is the directory where BadgerDB stores its files.
	Path string

	// InMemory keeps all data in memory; Path is ignored.
	InMemory bool

	// SyncWrites forces fsync after every write.
	SyncWrites bool

	// CloseTimeout bounds Close. Zero means 30s.
	CloseTimeout time.Duration

	// GCRatio is the value log discard ratio used by RunGC. Zero means 0.5.
	GCRatio float64
}

// BadgerStore implements CheckpointStore on BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	config Config

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the store described by cfg.
func Open(cfg Config) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("store path is required")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.SyncWrites = cfg.SyncWrites
	// The store holds a handful of small keys.
	opts.MemTableSize = 16 << 20
	opts.ValueLogFileSize = 16 << 20
	opts.NumCompactors = 2
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("Checkpoint store opened")

	return &BadgerStore{db: db, config: cfg}, nil
}

func (s *BadgerStore) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *BadgerStore) get(ctx context.Context, key string) ([]byte, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return value, nil
}

func (s *BadgerStore) set(ctx context.Context, key string, value []byte) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), value))
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Checkpoint implements CheckpointStore.
func (s *BadgerStore) Checkpoint(ctx context.Context) (*time.Time, error) {
	raw, err := s.get(ctx, KeyCheckpoint)
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeTime(raw)
}

// SetCheckpoint implements CheckpointStore.
func (s *BadgerStore) SetCheckpoint(ctx context.Context, t time.Time) error {
	return s.set(ctx, KeyCheckpoint, encodeTime(t))
}

// PriorBatch implements CheckpointStore.
func (s *BadgerStore) PriorBatch(ctx context.Context) ([]models.UnifiedMetric, error) {
	raw, err := s.get(ctx, KeyPriorBatch)
	if err != nil || raw == nil {
		return nil, err
	}
	var batch []models.UnifiedMetric
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&batch); err != nil {
		return nil, fmt.Errorf("decode prior batch: %w", err)
	}
	return batch, nil
}

// SetPriorBatch implements CheckpointStore.
func (s *BadgerStore) SetPriorBatch(ctx context.Context, batch []models.UnifiedMetric) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode prior batch: %w", err)
	}
	return s.set(ctx, KeyPriorBatch, data)
}

// ClearPriorBatch implements CheckpointStore.
func (s *BadgerStore) ClearPriorBatch(ctx context.Context) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(KeyPriorBatch))
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", KeyPriorBatch, err)
	}
	return nil
}

// LastSyncAt implements CheckpointStore.
func (s *BadgerStore) LastSyncAt(ctx context.Context) (*time.Time, error) {
	raw, err := s.get(ctx, KeyLastSyncAt)
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeTime(raw)
}

// SetLastSyncAt implements CheckpointStore.
func (s *BadgerStore) SetLastSyncAt(ctx context.Context, t time.Time) error {
	return s.set(ctx, KeyLastSyncAt, encodeTime(t))
}

// RunGC triggers BadgerDB value log garbage collection.
// This should be called periodically to reclaim space.
func (s *BadgerStore) RunGC() error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	if s.config.InMemory {
		return nil
	}

	ratio := s.config.GCRatio
	if ratio == 0 {
		ratio = 0.5
	}
	for {
		err := s.db.RunValueLogGC(ratio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	timeout := s.config.CloseTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("Checkpoint store closed")
		return nil
	case <-time.After(timeout):
		logging.Warn().Dur("timeout", timeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", timeout)
	}
}
