// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package sync

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tomtom215/healthsync/internal/logging"
	"github.com/tomtom215/healthsync/internal/scheduler"
)

// WebSocket message types.
const (
	MessageTypeSyncStatus    = "sync_status"
	MessageTypeSyncCompleted = "sync_completed"
)

// publishErrors tracks run outcome events that could not be published.
var publishErrors atomic.Int64

// GetPublishErrors returns the total count of failed event publishes.
func GetPublishErrors() int64 {
	return publishErrors.Load()
}

// EventPublisher publishes run outcomes to the event bus.
// Implemented by internal/events.Publisher.
type EventPublisher interface {
	PublishRunCompleted(ctx context.Context, report *RunReport) error
}

// WebSocketHub broadcasts messages to connected status clients.
// Implemented by internal/websocket.Hub.
type WebSocketHub interface {
	BroadcastJSON(messageType string, data interface{})
}

// TaskScheduler accepts the next background run request.
// Implemented by internal/scheduler.Scheduler.
type TaskScheduler interface {
	Submit(req scheduler.Request) error
}

// publishReport publishes the run outcome. Publishing never affects the run;
// failures are counted and logged.
func (o *Orchestrator) publishReport(ctx context.Context, report *RunReport) {
	if o.publisher == nil {
		return
	}
	// The run context may already be expired.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := o.publisher.PublishRunCompleted(pubCtx, report); err != nil {
		publishErrors.Add(1)
		logging.Warn().
			Err(err).
			Str("run_id", report.RunID).
			Int64("total_errors", publishErrors.Load()).
			Msg("Failed to publish sync outcome event")
	}
}

// broadcastReport pushes the run outcome to WebSocket clients.
func (o *Orchestrator) broadcastReport(report *RunReport) {
	if o.hub == nil {
		return
	}
	o.hub.BroadcastJSON(MessageTypeSyncCompleted, report)
}
