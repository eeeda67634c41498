// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package sync

import (
	"errors"
	"time"

	"github.com/tomtom215/healthsync/internal/models"
)

// Errors
var (
	// ErrBusy is returned when a trigger arrives while a run is in progress.
	ErrBusy = errors.New("sync already in progress")

	// ErrExpired is returned when the run deadline passes before completion.
	ErrExpired = errors.New("sync expired before completion")

	// ErrCancelled is returned when the run context is cancelled.
	ErrCancelled = errors.New("sync cancelled")

	// ErrPartialFailure is returned when the server rejected some records.
	ErrPartialFailure = errors.New("partial failure")

	// ErrInternal is returned when the pipeline panicked.
	ErrInternal = errors.New("internal error")
)

// Trigger identifies what started a run.
type Trigger string

const (
	TriggerManual     Trigger = "manual"
	TriggerAPI        Trigger = "api"
	TriggerBackground Trigger = "background"
)

// RunReport summarizes one pipeline run.
type RunReport struct {
	RunID            string             `json:"run_id"`
	Trigger          Trigger            `json:"trigger"`
	Status           models.Status      `json:"status"`
	StartedAt        time.Time          `json:"started_at"`
	Collected        int                `json:"collected"`         // raw samples from successful categories
	Normalized       int                `json:"normalized"`        // samples that mapped to a metric
	Dropped          int                `json:"dropped"`           // samples that did not
	Filtered         int                `json:"filtered"`          // metrics newer than the checkpoint
	Replaced         int                `json:"replaced"`          // prior records replaced by newer readings
	Uploaded         int                `json:"uploaded"`          // records in the uploaded batch
	Result           *models.SyncResult `json:"result,omitempty"`  // nil if the upload was not attempted or failed
	FailedCategories []models.Category  `json:"failed_categories,omitempty"`
	Checkpoint       *time.Time         `json:"checkpoint,omitempty"` // checkpoint after the run
	Duration         time.Duration      `json:"duration"`
}

// Succeeded reports whether the run ended in Success.
func (r *RunReport) Succeeded() bool {
	return r.Status.State == models.SyncStateSuccess
}
