// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

/*
orchestrator.go - Sync pipeline orchestration

The Orchestrator runs the pipeline end to end and owns the sync state machine:

	Idle -> Syncing -> Success | Error(reason)

Pipeline stages, in order:
  - Auth gate (no collection or network call when unauthenticated)
  - Checkpoint read
  - Collect: concurrent fan-out over the configured categories (progress 0.25)
  - Normalize (progress 0.50)
  - Delta filter against the checkpoint
  - Conflict resolution against the prior, not fully accepted batch
  - Upload (progress 0.75 after the attempt)
  - Checkpoint advance on a zero-failure result (progress 1.00)

Triggers:
  - TriggerManual(): synchronous, for the caller that asked
  - TriggerAsync(): detached run for the HTTP API
  - HandleTask(): background invocation from the task scheduler

Thread Safety:
  - syncing: atomic gate, at most one run at a time; a trigger while a run is
    in progress is rejected with ErrBusy, never queued
  - StateHolder: serializes state writes and hands out snapshots
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/healthsync/internal/config"
	"github.com/tomtom215/healthsync/internal/conflict"
	"github.com/tomtom215/healthsync/internal/delta"
	"github.com/tomtom215/healthsync/internal/logging"
	"github.com/tomtom215/healthsync/internal/metrics"
	"github.com/tomtom215/healthsync/internal/models"
	"github.com/tomtom215/healthsync/internal/normalize"
	"github.com/tomtom215/healthsync/internal/scheduler"
	"github.com/tomtom215/healthsync/internal/source"
	"github.com/tomtom215/healthsync/internal/store"
	"github.com/tomtom215/healthsync/internal/upload"
)

// Progress fractions reported at stage boundaries.
const (
	ProgressCollected  = 0.25
	ProgressNormalized = 0.50
	ProgressUploaded   = 0.75
	ProgressComplete   = 1.00
)

// DefaultRescheduleOffset is the delay before the next background run.
const DefaultRescheduleOffset = 15 * time.Minute

// Collector gathers raw samples for the requested categories.
// Implemented by internal/source.Collector.
type Collector interface {
	CollectSince(ctx context.Context, categories []models.Category, since *time.Time) source.Results
}

// Config holds orchestrator settings.
type Config struct {
	Categories        []models.Category
	RescheduleOffset  time.Duration
	ConflictTolerance time.Duration
	TaskIdentifier    string

	// ManualTimeout bounds manual and API runs, which have no scheduler
	// deadline. Zero means no bound beyond the caller's context.
	ManualTimeout time.Duration
}

// NewConfig derives orchestrator settings from the sync configuration.
func NewConfig(cfg *config.SyncConfig) (Config, error) {
	categories, err := cfg.CategoryList()
	if err != nil {
		return Config{}, err
	}
	return Config{
		Categories:        categories,
		RescheduleOffset:  cfg.RescheduleOffset,
		ConflictTolerance: cfg.ConflictTolerance,
		TaskIdentifier:    cfg.TaskIdentifier,
		ManualTimeout:     cfg.ExpirationWindow,
	}, nil
}

// Dependencies are the collaborators of the Orchestrator. Scheduler,
// Publisher and Hub are optional.
type Dependencies struct {
	Collector Collector
	Store     store.CheckpointStore
	Uploader  upload.Client
	Auth      upload.Authenticator
	Scheduler TaskScheduler
	Publisher EventPublisher
	Hub       WebSocketHub
}

// Orchestrator runs the sync pipeline.
type Orchestrator struct {
	cfg         Config
	collector   Collector
	normalizer  *normalize.Normalizer
	resolver    *conflict.Resolver
	checkpoints *delta.Checkpoints
	store       store.CheckpointStore
	uploader    upload.Client
	auth        upload.Authenticator
	scheduler   TaskScheduler
	publisher   EventPublisher
	hub         WebSocketHub

	state   *StateHolder
	syncing atomic.Bool    // canPerformSync gate
	async   sync.WaitGroup // detached API runs
	now     func() time.Time
}

// NewOrchestrator creates an orchestrator and restores the persisted
// last-sync time into its state.
func NewOrchestrator(ctx context.Context, cfg Config, deps Dependencies) (*Orchestrator, error) {
	switch {
	case deps.Collector == nil:
		return nil, fmt.Errorf("orchestrator: collector is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("orchestrator: store is required")
	case deps.Uploader == nil:
		return nil, fmt.Errorf("orchestrator: uploader is required")
	case deps.Auth == nil:
		return nil, fmt.Errorf("orchestrator: authenticator is required")
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = models.AllCategories()
	}
	if cfg.RescheduleOffset <= 0 {
		cfg.RescheduleOffset = DefaultRescheduleOffset
	}

	lastSync, err := deps.Store.LastSyncAt(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore last sync time: %w", err)
	}
	checkpoints := delta.NewCheckpoints(deps.Store)
	if cp, err := checkpoints.Load(ctx); err != nil {
		return nil, err
	} else if cp != nil {
		metrics.SetCheckpoint(*cp)
	}

	logging.Info().
		Int("categories", len(cfg.Categories)).
		Dur("reschedule_offset", cfg.RescheduleOffset).
		Dur("conflict_tolerance", cfg.ConflictTolerance).
		Str("task_identifier", cfg.TaskIdentifier).
		Msg("Sync orchestrator config loaded")

	return &Orchestrator{
		cfg:         cfg,
		collector:   deps.Collector,
		normalizer:  normalize.New(),
		resolver:    conflict.NewResolver(cfg.ConflictTolerance),
		checkpoints: checkpoints,
		store:       deps.Store,
		uploader:    deps.Uploader,
		auth:        deps.Auth,
		scheduler:   deps.Scheduler,
		publisher:   deps.Publisher,
		hub:         deps.Hub,
		state:       NewStateHolder(lastSync),
		now:         time.Now,
	}, nil
}

// State returns the observable state holder.
func (o *Orchestrator) State() *StateHolder {
	return o.state
}

// IsSyncing reports whether a run is in progress.
func (o *Orchestrator) IsSyncing() bool {
	return o.syncing.Load()
}

// canPerformSync takes the run gate. It must be released by execute.
func (o *Orchestrator) canPerformSync() bool {
	return o.syncing.CompareAndSwap(false, true)
}

// TriggerManual runs the pipeline on the caller's goroutine.
// The returned error is the reason the run ended in Error, if it did.
func (o *Orchestrator) TriggerManual(ctx context.Context) (*RunReport, error) {
	if !o.canPerformSync() {
		metrics.RecordSyncRun(string(TriggerManual), "rejected", 0)
		return nil, ErrBusy
	}
	ctx, cancel := o.withManualTimeout(ctx)
	defer cancel()
	return o.execute(ctx, TriggerManual, uuid.NewString())
}

// TriggerAsync starts a detached run and returns its ID. The run outlives
// ctx's cancellation but keeps its values.
func (o *Orchestrator) TriggerAsync(ctx context.Context) (string, error) {
	if !o.canPerformSync() {
		metrics.RecordSyncRun(string(TriggerAPI), "rejected", 0)
		return "", ErrBusy
	}
	runID := uuid.NewString()
	runCtx, cancel := o.withManualTimeout(context.WithoutCancel(ctx))

	o.async.Add(1)
	go func() {
		defer o.async.Done()
		defer cancel()
		_, _ = o.execute(runCtx, TriggerAPI, runID)
	}()
	return runID, nil
}

// HandleTask is the scheduler handler for background runs. It reports
// completion exactly once: success only when the run ended in Success.
func (o *Orchestrator) HandleTask(task *scheduler.Task) {
	if !o.canPerformSync() {
		metrics.RecordSyncRun(string(TriggerBackground), "rejected", 0)
		logging.Info().Msg("Background sync skipped, a run is already in progress")
		task.Complete(false)
		return
	}
	_, err := o.execute(task.Context(), TriggerBackground, uuid.NewString())
	task.Complete(err == nil)
}

// Wait blocks until detached runs have finished.
func (o *Orchestrator) Wait() {
	o.async.Wait()
}

// Schedule submits the background task to run no earlier than earliest.
func (o *Orchestrator) Schedule(earliest time.Time) error {
	if o.scheduler == nil {
		return nil
	}
	if err := o.scheduler.Submit(scheduler.Request{
		Identifier:    o.cfg.TaskIdentifier,
		EarliestBegin: earliest,
	}); err != nil {
		return fmt.Errorf("schedule next sync: %w", err)
	}
	return nil
}

func (o *Orchestrator) withManualTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.ManualTimeout > 0 {
		return context.WithTimeout(ctx, o.cfg.ManualTimeout)
	}
	return context.WithCancel(ctx)
}

// execute runs one pipeline while holding the gate and records the outcome.
func (o *Orchestrator) execute(ctx context.Context, trigger Trigger, runID string) (*RunReport, error) {
	defer o.syncing.Store(false)

	ctx = logging.ContextWithRunID(ctx, runID)
	logger := logging.Ctx(ctx)
	start := time.Now()

	metrics.SetSyncInProgress(true)
	defer metrics.SetSyncInProgress(false)

	o.state.transition(models.SyncingStatus, runID)
	logger.Info().Str("trigger", string(trigger)).Msg("Sync started")

	report, err := o.runPipeline(ctx, trigger, runID)
	report.Duration = time.Since(start)

	if err != nil {
		report.Status = models.ErrorStatus(reason(err))
	} else {
		report.Status = models.SuccessStatus
	}
	o.state.transition(report.Status, runID)
	metrics.RecordSyncRun(string(trigger), string(report.Status.State), report.Duration)

	event := logger.Info()
	if err != nil {
		event = logger.Warn().Err(err)
	}
	event.
		Str("trigger", string(trigger)).
		Str("status", string(report.Status.State)).
		Int("collected", report.Collected).
		Int("normalized", report.Normalized).
		Int("dropped", report.Dropped).
		Int("filtered", report.Filtered).
		Int("uploaded", report.Uploaded).
		Int("failed_categories", len(report.FailedCategories)).
		Dur("duration", report.Duration).
		Msg("Sync finished")

	o.publishReport(ctx, report)
	o.broadcastReport(report)

	if err := o.Schedule(o.now().Add(o.cfg.RescheduleOffset)); err != nil {
		logger.Error().Err(err).Msg("Failed to reschedule background sync")
	}
	return report, err
}

// runPipeline executes the stages. It never panics; a recovered panic
// becomes ErrInternal.
func (o *Orchestrator) runPipeline(ctx context.Context, trigger Trigger, runID string) (report *RunReport, err error) {
	report = &RunReport{RunID: runID, Trigger: trigger, StartedAt: o.now().UTC()}

	defer func() {
		if r := recover(); r != nil {
			logging.Ctx(ctx).Error().Interface("panic", r).Msg("Sync pipeline panicked")
			err = ErrInternal
		}
	}()

	if !o.auth.Authenticated(ctx) {
		return report, upload.ErrNotAuthenticated
	}
	if err := stageErr(ctx); err != nil {
		return report, err
	}

	checkpoint, err := o.checkpoints.Load(ctx)
	if err != nil {
		return report, err
	}
	report.Checkpoint = checkpoint

	// Collect
	stageStart := time.Now()
	results := o.collector.CollectSince(ctx, o.cfg.Categories, checkpoint)
	metrics.RecordSyncStage("collect", time.Since(stageStart))
	report.Collected = results.SampleCount()
	report.FailedCategories = results.Failed()
	o.state.setProgress(ProgressCollected)
	if err := stageErr(ctx); err != nil {
		return report, err
	}

	// Normalize
	stageStart = time.Now()
	out := o.normalizer.Normalize(results)
	metrics.RecordSyncStage("normalize", time.Since(stageStart))
	report.Normalized = len(out.Metrics)
	report.Dropped = out.Dropped
	o.state.setProgress(ProgressNormalized)

	// Filter and resolve
	filtered := delta.FilterSince(checkpoint, out.Metrics)
	report.Filtered = len(filtered)

	prior, err := o.store.PriorBatch(ctx)
	if err != nil {
		return report, fmt.Errorf("load prior batch: %w", err)
	}
	batch, stats := o.resolver.ResolveWithStats(filtered, prior)
	report.Replaced = stats.Replaced
	report.Uploaded = len(batch)
	if err := stageErr(ctx); err != nil {
		return report, err
	}

	// Upload
	stageStart = time.Now()
	result, err := o.uploader.Upload(ctx, batch)
	metrics.RecordSyncStage("upload", time.Since(stageStart))
	o.state.setProgress(ProgressUploaded)
	if err != nil {
		if ctxErr := stageErr(ctx); ctxErr != nil {
			return report, ctxErr
		}
		return report, err
	}
	report.Result = result
	if err := stageErr(ctx); err != nil {
		return report, err
	}

	commitCtx := context.WithoutCancel(ctx)
	if result.FailedCount > 0 {
		if err := o.store.SetPriorBatch(commitCtx, batch); err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("Failed to persist prior batch")
		}
		logging.Ctx(ctx).Warn().
			Int("processed", result.ProcessedCount).
			Int("failed", result.FailedCount).
			Strs("errors", result.Errors).
			Msg("Server rejected part of the batch, checkpoint withheld")
		return report, ErrPartialFailure
	}

	// Commit. These writes ignore the run deadline once the server holds the
	// batch. The prior batch is cleared before the checkpoint moves.
	next, ok := models.LatestRecordedAt(batch)
	if !ok {
		next = o.now()
	}
	if err := o.store.ClearPriorBatch(commitCtx); err != nil {
		return report, fmt.Errorf("clear prior batch: %w", err)
	}
	if moved, err := o.checkpoints.Advance(commitCtx, next); err != nil {
		return report, err
	} else if moved {
		cp := next.UTC()
		report.Checkpoint = &cp
	}
	syncedAt := o.now()
	if err := o.store.SetLastSyncAt(commitCtx, syncedAt); err != nil {
		return report, fmt.Errorf("persist last sync time: %w", err)
	}
	o.state.markLastSync(syncedAt)
	o.state.setProgress(ProgressComplete)
	return report, nil
}

// stageErr maps an ended run context to the run error.
func stageErr(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return ErrExpired
	default:
		return ErrCancelled
	}
}

// reason is the Error state text for err.
func reason(err error) string {
	if upload.IsAuth(err) {
		return upload.ErrNotAuthenticated.Error()
	}
	return err.Error()
}
