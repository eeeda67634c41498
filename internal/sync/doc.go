// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

/*
Package sync orchestrates health data synchronization to the backend API.

The Orchestrator composes the pipeline packages into a single run:

 1. Collect: internal/source fans out over the configured categories
 2. Normalize: internal/normalize maps raw samples to UnifiedMetric records
 3. Filter: internal/delta drops records at or before the checkpoint
 4. Resolve: internal/conflict merges the prior, partially rejected batch
 5. Upload: internal/upload sends the batch with auth, rate limiting and a
    circuit breaker
 6. Commit: the checkpoint advances only when the server accepted every record

Key Components:

  - Orchestrator: run gate, pipeline and trigger entry points
  - StateHolder: observable Idle/Syncing/Success/Error state with progress
  - RunReport: per-run summary published to the event bus and WebSocket hub

Triggers:

A run starts from one of three places. TriggerManual runs on the caller's
goroutine. TriggerAsync detaches a run for the HTTP API and returns its ID.
HandleTask is registered with internal/scheduler and reports task completion
exactly once. Every run, successful or not, submits the next background run
at now plus the reschedule offset.

Usage Example:

	orch, err := sync.NewOrchestrator(ctx, cfg, sync.Dependencies{
	    Collector: collector,
	    Store:     st,
	    Uploader:  client,
	    Auth:      client.Authenticator(),
	    Scheduler: sched,
	})
	if err != nil {
	    return err
	}
	if err := sched.Register(cfg.TaskIdentifier, orch.HandleTask); err != nil {
	    return err
	}

	report, err := orch.TriggerManual(ctx)
	if errors.Is(err, sync.ErrBusy) {
	    // a run is already in progress
	}

Thread Safety:

All exported methods are safe for concurrent use. At most one run is in
flight; concurrent triggers are rejected with ErrBusy.
*/
package sync
