// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/healthsync/internal/models"
	"github.com/tomtom215/healthsync/internal/scheduler"
	"github.com/tomtom215/healthsync/internal/source"
	"github.com/tomtom215/healthsync/internal/store"
	"github.com/tomtom215/healthsync/internal/upload"
)

var baseTime = time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)

func stepSample(offset time.Duration, value float64) models.RawSample {
	return models.RawSample{
		Category: models.CategorySteps,
		Value:    value,
		Unit:     "count",
		Start:    baseTime.Add(offset),
		Source:   models.SourceDeviceAPI,
	}
}

// mockUploader records batches and answers through respond.
type mockUploader struct {
	mu      sync.Mutex
	batches [][]models.UnifiedMetric
	respond func(ctx context.Context, batch []models.UnifiedMetric) (*models.SyncResult, error)
}

func (m *mockUploader) Upload(ctx context.Context, batch []models.UnifiedMetric) (*models.SyncResult, error) {
	m.mu.Lock()
	m.batches = append(m.batches, append([]models.UnifiedMetric(nil), batch...))
	respond := m.respond
	m.mu.Unlock()

	if respond != nil {
		return respond(ctx, batch)
	}
	return &models.SyncResult{ProcessedCount: len(batch), SyncID: "ok"}, nil
}

func (m *mockUploader) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func (m *mockUploader) batch(i int) []models.UnifiedMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches[i]
}

type mockScheduler struct {
	mu       sync.Mutex
	requests []scheduler.Request
}

func (m *mockScheduler) Submit(req scheduler.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return nil
}

func (m *mockScheduler) last() (scheduler.Request, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return scheduler.Request{}, 0
	}
	return m.requests[len(m.requests)-1], len(m.requests)
}

type mockPublisher struct {
	mu      sync.Mutex
	reports []*RunReport
}

func (m *mockPublisher) PublishRunCompleted(_ context.Context, report *RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
	return nil
}

type mockHub struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockHub) BroadcastJSON(messageType string, _ interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, messageType)
}

type harness struct {
	orch      *Orchestrator
	provider  *source.StaticProvider
	store     *store.MemoryStore
	uploader  *mockUploader
	auth      *upload.TokenAuthenticator
	scheduler *mockScheduler
	publisher *mockPublisher
	hub       *mockHub
}

func newHarness(t *testing.T, samples ...models.RawSample) *harness {
	t.Helper()

	h := &harness{
		provider:  source.NewStaticProvider(models.CategorySteps, samples...),
		store:     store.NewMemoryStore(),
		uploader:  &mockUploader{},
		auth:      upload.NewTokenAuthenticator("token"),
		scheduler: &mockScheduler{},
		publisher: &mockPublisher{},
		hub:       &mockHub{},
	}

	orch, err := NewOrchestrator(context.Background(), Config{
		Categories:        []models.Category{models.CategorySteps},
		RescheduleOffset:  15 * time.Minute,
		ConflictTolerance: time.Minute,
		TaskIdentifier:    "com.healthsync.test",
	}, Dependencies{
		Collector: source.NewCollector(time.Second, h.provider),
		Store:     h.store,
		Uploader:  h.uploader,
		Auth:      h.auth,
		Scheduler: h.scheduler,
		Publisher: h.publisher,
		Hub:       h.hub,
	})
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	h.orch = orch
	return h
}

func (h *harness) checkpoint(t *testing.T) *time.Time {
	t.Helper()
	cp, err := h.store.Checkpoint(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return cp
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

// startScheduler serves sched until the test ends.
func startScheduler(t *testing.T, sched *scheduler.Scheduler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = sched.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// cancelOnClearStore ends the run context right after the prior batch is
// cleared. MemoryStore rejects writes under an ended context.
type cancelOnClearStore struct {
	*store.MemoryStore
	cancel context.CancelFunc
}

func (s *cancelOnClearStore) ClearPriorBatch(ctx context.Context) error {
	err := s.MemoryStore.ClearPriorBatch(ctx)
	s.cancel()
	return err
}
