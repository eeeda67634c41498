// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package models

import "time"

// SyncState is the coarse state of the sync orchestrator.
type SyncState string

const (
	SyncStateIdle    SyncState = "idle"
	SyncStateSyncing SyncState = "syncing"
	SyncStateSuccess SyncState = "success"
	SyncStateError   SyncState = "error"
)

// Status pairs a SyncState with the reason of an Error state.
type Status struct {
	State  SyncState `json:"state"`
	Reason string    `json:"reason,omitempty"`
}

// IdleStatus, SyncingStatus and SuccessStatus are the reason-less states.
var (
	IdleStatus    = Status{State: SyncStateIdle}
	SyncingStatus = Status{State: SyncStateSyncing}
	SuccessStatus = Status{State: SyncStateSuccess}
)

// ErrorStatus builds an Error state carrying reason.
func ErrorStatus(reason string) Status {
	return Status{State: SyncStateError, Reason: reason}
}

// SyncResult is the remote service's answer to a batch upload.
type SyncResult struct {
	ProcessedCount int      `json:"processed_count"`
	FailedCount    int      `json:"failed_count"`
	SyncID         string   `json:"sync_id"`
	Errors         []string `json:"errors,omitempty"`
}

// Merge folds another chunk's result into r. The first non-empty sync ID wins.
func (r *SyncResult) Merge(o *SyncResult) {
	if o == nil {
		return
	}
	r.ProcessedCount += o.ProcessedCount
	r.FailedCount += o.FailedCount
	if r.SyncID == "" {
		r.SyncID = o.SyncID
	}
	r.Errors = append(r.Errors, o.Errors...)
}

// Snapshot is an immutable view of orchestrator state handed to observers.
type Snapshot struct {
	Status       Status     `json:"status"`
	Progress     float64    `json:"progress"`               // 0.0 - 1.0
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"` // Last fully successful run
	ErrorMessage string     `json:"error_message,omitempty"`
	RunID        string     `json:"run_id,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
