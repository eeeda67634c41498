// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	intsync "github.com/tomtom215/healthsync/internal/sync"
)

// SchemaVersion is the current event schema version.
// Increment this when making breaking changes to SyncEvent.
const SchemaVersion = 1

// Event types, also the topic suffixes.
const (
	TypeSyncCompleted = "sync.completed"
	TypeSyncFailed    = "sync.failed"
)

// SyncEvent is the domain event emitted once per finished run.
type SyncEvent struct {
	SchemaVersion int    `json:"schema_version"`
	EventID       string `json:"event_id"`
	Type          string `json:"type"`

	RunID   string `json:"run_id"`
	Trigger string `json:"trigger"`
	State   string `json:"state"`
	Reason  string `json:"reason,omitempty"`

	// Pipeline counters
	Collected  int `json:"collected"`
	Normalized int `json:"normalized"`
	Dropped    int `json:"dropped"`
	Uploaded   int `json:"uploaded"`
	Processed  int `json:"processed"`
	Failed     int `json:"failed"`

	FailedCategories []string   `json:"failed_categories,omitempty"`
	Checkpoint       *time.Time `json:"checkpoint,omitempty"`
	DurationMs       int64      `json:"duration_ms"`
	OccurredAt       time.Time  `json:"occurred_at"`
}

// NewSyncEvent builds the event for a finished run.
func NewSyncEvent(report *intsync.RunReport) *SyncEvent {
	event := &SyncEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.NewString(),
		Type:          TypeSyncCompleted,
		RunID:         report.RunID,
		Trigger:       string(report.Trigger),
		State:         string(report.Status.State),
		Reason:        report.Status.Reason,
		Collected:     report.Collected,
		Normalized:    report.Normalized,
		Dropped:       report.Dropped,
		Uploaded:      report.Uploaded,
		DurationMs:    report.Duration.Milliseconds(),
		OccurredAt:    time.Now().UTC(),
	}
	if !report.Succeeded() {
		event.Type = TypeSyncFailed
	}
	if report.Result != nil {
		event.Processed = report.Result.ProcessedCount
		event.Failed = report.Result.FailedCount
	}
	for _, c := range report.FailedCategories {
		event.FailedCategories = append(event.FailedCategories, string(c))
	}
	if report.Checkpoint != nil {
		cp := report.Checkpoint.UTC()
		event.Checkpoint = &cp
	}
	return event
}

// Topic returns the topic for the event under prefix.
func (e *SyncEvent) Topic(prefix string) string {
	return Topic(prefix, e.Type)
}

// Validate checks the fields every consumer relies on.
func (e *SyncEvent) Validate() error {
	switch {
	case e.EventID == "":
		return errors.New("event_id is required")
	case e.RunID == "":
		return errors.New("run_id is required")
	case e.Type != TypeSyncCompleted && e.Type != TypeSyncFailed:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}

// Topic joins prefix and an event type.
func Topic(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}

// Marshal validates and encodes an event.
func Marshal(event *SyncEvent) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// Unmarshal decodes an event.
func Unmarshal(data []byte) (*SyncEvent, error) {
	var event SyncEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &event, nil
}
