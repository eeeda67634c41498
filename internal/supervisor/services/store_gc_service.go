// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// GarbageCollector reclaims space in the checkpoint store.
// Implemented by store.BadgerStore.
type GarbageCollector interface {
	RunGC() error
}

// StoreGCServiceConfig configures periodic store maintenance.
type StoreGCServiceConfig struct {
	// Interval is how often RunGC is called. Default: 10m
	Interval time.Duration

	// RunOnStartup collects once before the first tick.
	RunOnStartup bool
}

// StoreGCService runs BadgerDB value log GC on a ticker. GC failures are
// logged and retried on the next tick; they never stop the service.
type StoreGCService struct {
	store  GarbageCollector
	config StoreGCServiceConfig
	logger zerolog.Logger
	name   string
}

// NewStoreGCService creates the maintenance service for store.
func NewStoreGCService(store GarbageCollector, cfg StoreGCServiceConfig, logger zerolog.Logger) *StoreGCService {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	return &StoreGCService{
		store:  store,
		config: cfg,
		logger: logger.With().Str("service", "store-gc").Logger(),
		name:   "store-gc",
	}
}

// Serve implements suture.Service.
func (s *StoreGCService) Serve(ctx context.Context) error {
	s.logger.Debug().Dur("interval", s.config.Interval).Msg("store GC service starting")

	if s.config.RunOnStartup {
		s.collect()
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.collect()
		}
	}
}

func (s *StoreGCService) collect() {
	start := time.Now()
	if err := s.store.RunGC(); err != nil {
		s.logger.Warn().Err(err).Msg("store GC failed")
		return
	}
	s.logger.Debug().Dur("duration", time.Since(start)).Msg("store GC complete")
}

func (s *StoreGCService) String() string {
	return s.name
}
