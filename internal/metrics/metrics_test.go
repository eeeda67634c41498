// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSyncRun(t *testing.T) {
	before := testutil.ToFloat64(SyncRunsTotal.WithLabelValues("manual", "success"))

	RecordSyncRun("manual", "success", 250*time.Millisecond)
	RecordSyncRun("manual", "success", 0)

	after := testutil.ToFloat64(SyncRunsTotal.WithLabelValues("manual", "success"))
	if after-before != 2 {
		t.Errorf("expected 2 recorded runs, got %v", after-before)
	}
}

func TestSetSyncInProgress(t *testing.T) {
	SetSyncInProgress(true)
	if got := testutil.ToFloat64(SyncInProgress); got != 1 {
		t.Errorf("in progress = %v, want 1", got)
	}
	SetSyncInProgress(false)
	if got := testutil.ToFloat64(SyncInProgress); got != 0 {
		t.Errorf("in progress = %v, want 0", got)
	}
}

func TestRecordSourceFetch(t *testing.T) {
	tests := []struct {
		name     string
		category string
		outcome  string
		samples  int
	}{
		{"success with samples", "steps", "success", 12},
		{"success without samples", "sleep", "success", 0},
		{"unavailable", "nutrition", "unavailable", 0},
		{"timeout", "heart_rate", "timeout", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(SourceFetchTotal.WithLabelValues(tt.category, tt.outcome))
			samplesBefore := testutil.ToFloat64(SourceSamplesTotal.WithLabelValues(tt.category))

			RecordSourceFetch(tt.category, tt.outcome, tt.samples, 10*time.Millisecond)

			if got := testutil.ToFloat64(SourceFetchTotal.WithLabelValues(tt.category, tt.outcome)) - before; got != 1 {
				t.Errorf("fetch count delta = %v, want 1", got)
			}
			if got := testutil.ToFloat64(SourceSamplesTotal.WithLabelValues(tt.category)) - samplesBefore; got != float64(tt.samples) {
				t.Errorf("samples delta = %v, want %d", got, tt.samples)
			}
		})
	}
}

func TestRecordUploadResult(t *testing.T) {
	processedBefore := testutil.ToFloat64(UploadRecordsTotal.WithLabelValues("processed"))
	failedBefore := testutil.ToFloat64(UploadRecordsTotal.WithLabelValues("failed"))

	RecordUploadResult(8, 2)
	RecordUploadResult(0, 0)

	if got := testutil.ToFloat64(UploadRecordsTotal.WithLabelValues("processed")) - processedBefore; got != 8 {
		t.Errorf("processed delta = %v, want 8", got)
	}
	if got := testutil.ToFloat64(UploadRecordsTotal.WithLabelValues("failed")) - failedBefore; got != 2 {
		t.Errorf("failed delta = %v, want 2", got)
	}
}

func TestRecordNormalizeDropped(t *testing.T) {
	before := testutil.ToFloat64(NormalizeDroppedTotal)
	RecordNormalizeDropped(3)
	RecordNormalizeDropped(0)
	RecordNormalizeDropped(-1)
	if got := testutil.ToFloat64(NormalizeDroppedTotal) - before; got != 3 {
		t.Errorf("dropped delta = %v, want 3", got)
	}
}

func TestSetCheckpoint(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	SetCheckpoint(ts)
	if got := testutil.ToFloat64(CheckpointTimestamp); got != float64(ts.Unix()) {
		t.Errorf("checkpoint = %v, want %v", got, ts.Unix())
	}
}

func TestRecordEventPublished(t *testing.T) {
	okBefore := testutil.ToFloat64(EventsPublishedTotal.WithLabelValues("healthsync.sync.completed"))
	errBefore := testutil.ToFloat64(EventsPublishErrors.WithLabelValues("healthsync.sync.completed"))

	RecordEventPublished("healthsync.sync.completed", nil)
	RecordEventPublished("healthsync.sync.completed", errors.New("nats down"))

	if got := testutil.ToFloat64(EventsPublishedTotal.WithLabelValues("healthsync.sync.completed")) - okBefore; got != 1 {
		t.Errorf("published delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(EventsPublishErrors.WithLabelValues("healthsync.sync.completed")) - errBefore; got != 1 {
		t.Errorf("error delta = %v, want 1", got)
	}
}

func TestRecordSchedulerInvocation(t *testing.T) {
	before := testutil.ToFloat64(SchedulerInvocationsTotal.WithLabelValues("test.task", "expired"))
	RecordSchedulerInvocation("test.task", "expired")
	if got := testutil.ToFloat64(SchedulerInvocationsTotal.WithLabelValues("test.task", "expired")) - before; got != 1 {
		t.Errorf("invocation delta = %v, want 1", got)
	}
}

// TestMetricGathering tests that metrics can be gathered using testutil
func TestMetricGathering(t *testing.T) {
	RecordSyncStage("collect", time.Millisecond)
	RecordUploadRequest("success", time.Millisecond)
	RecordAPIRequest("GET", "/api/v1/sync/status", "200", time.Millisecond)

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Logf("Lint errors (may be expected): %v", err)
	}
	for _, p := range problems {
		t.Logf("Metric lint problem: %s", p.Text)
	}
}
