// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/healthsync/internal/store"
)

type countingGC struct {
	calls atomic.Int32
	err   error
}

func (c *countingGC) RunGC() error {
	c.calls.Add(1)
	return c.err
}

func TestStoreGCService_Interface(t *testing.T) {
	var _ suture.Service = (*StoreGCService)(nil)
}

func TestNewStoreGCService_DefaultInterval(t *testing.T) {
	t.Parallel()

	svc := NewStoreGCService(&countingGC{}, StoreGCServiceConfig{}, zerolog.Nop())
	if svc.config.Interval != 10*time.Minute {
		t.Errorf("Interval = %v, want 10m", svc.config.Interval)
	}
	if svc.String() != "store-gc" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestStoreGCService_Serve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		runOnStartup bool
		err          error
		wait         time.Duration
		minCalls     int32
	}{
		{"startup run", true, nil, 0, 1},
		{"ticks", false, nil, 60 * time.Millisecond, 2},
		{"errors keep running", true, errors.New("disk full"), 60 * time.Millisecond, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gc := &countingGC{err: tt.err}
			svc := NewStoreGCService(gc, StoreGCServiceConfig{
				Interval:     20 * time.Millisecond,
				RunOnStartup: tt.runOnStartup,
			}, zerolog.Nop())

			ctx, cancel := context.WithCancel(context.Background())
			errCh := make(chan error, 1)
			go func() { errCh <- svc.Serve(ctx) }()

			deadline := time.Now().Add(time.Second)
			for gc.calls.Load() < tt.minCalls && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			cancel()

			if err := <-errCh; !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() = %v, want context.Canceled", err)
			}
			if got := gc.calls.Load(); got < tt.minCalls {
				t.Errorf("RunGC calls = %d, want >= %d", got, tt.minCalls)
			}
		})
	}
}

func TestStoreGCService_BadgerStore(t *testing.T) {
	t.Parallel()

	s, err := store.Open(store.Config{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	svc := NewStoreGCService(s, StoreGCServiceConfig{Interval: time.Hour, RunOnStartup: true}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() = %v", err)
	}
}
