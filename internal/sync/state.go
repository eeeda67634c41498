// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package sync

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tomtom215/healthsync/internal/models"
)

// subscriberBuffer is the channel capacity handed to each subscriber.
const subscriberBuffer = 16

// StateHolder owns the observable sync state.
//
// Only the orchestrator writes, through transition, setProgress and
// markLastSync. Each write replaces the snapshot wholesale, so readers on
// other goroutines always see a complete value.
type StateHolder struct {
	mu        sync.Mutex
	snap      models.Snapshot
	subs      map[int]chan models.Snapshot
	nextSub   int
	callbacks []func(models.Snapshot)
	now       func() time.Time
}

// NewStateHolder returns an Idle holder. lastSyncAt restores the display
// time persisted by a previous process and may be nil.
func NewStateHolder(lastSyncAt *time.Time) *StateHolder {
	h := &StateHolder{
		subs: make(map[int]chan models.Snapshot),
		now:  time.Now,
	}
	h.snap = models.Snapshot{
		Status:     models.IdleStatus,
		LastSyncAt: copyTime(lastSyncAt),
		UpdatedAt:  h.now().UTC(),
	}
	return h
}

// Snapshot returns a copy of the current state.
func (h *StateHolder) Snapshot() models.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return cloneSnapshot(h.snap)
}

// Subscribe returns a channel receiving every subsequent snapshot and a
// function that ends the subscription. Sends never block; a subscriber that
// falls behind misses snapshots.
func (h *StateHolder) Subscribe() (<-chan models.Snapshot, func()) {
	ch := make(chan models.Snapshot, subscriberBuffer)

	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// OnChange registers fn to be called with every subsequent snapshot.
// Callbacks run on the writer's goroutine and must not block.
func (h *StateHolder) OnChange(fn func(models.Snapshot)) {
	h.mu.Lock()
	h.callbacks = append(h.callbacks, fn)
	h.mu.Unlock()
}

// StatusText renders the snapshot for humans.
func (h *StateHolder) StatusText() string {
	return StatusText(h.Snapshot(), h.now())
}

// Payload returns the presentation view of the current state.
func (h *StateHolder) Payload() StatusPayload {
	return NewStatusPayload(h.Snapshot(), h.now())
}

// StatusPayload is the presentation view of a snapshot, served by the status
// API and pushed to WebSocket clients.
type StatusPayload struct {
	Status       models.SyncState `json:"status"`
	Progress     float64          `json:"progress"`
	LastSyncAt   *time.Time       `json:"last_sync_at"`
	ErrorMessage string           `json:"error_message,omitempty"`
	StatusText   string           `json:"status_text"`
	RunID        string           `json:"run_id,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// NewStatusPayload renders s relative to now.
func NewStatusPayload(s models.Snapshot, now time.Time) StatusPayload {
	return StatusPayload{
		Status:       s.Status.State,
		Progress:     s.Progress,
		LastSyncAt:   copyTime(s.LastSyncAt),
		ErrorMessage: s.ErrorMessage,
		StatusText:   StatusText(s, now),
		RunID:        s.RunID,
		UpdatedAt:    s.UpdatedAt,
	}
}

// transition moves to status. Leaving Syncing resets progress to 0.
func (h *StateHolder) transition(status models.Status, runID string) models.Snapshot {
	return h.update(func(s *models.Snapshot) {
		s.Status = status
		s.ErrorMessage = status.Reason
		if runID != "" {
			s.RunID = runID
		}
		if status.State != models.SyncStateSyncing {
			s.Progress = 0
		}
	})
}

// setProgress records a stage boundary. Progress only moves forward and
// is ignored outside Syncing.
func (h *StateHolder) setProgress(p float64) {
	h.update(func(s *models.Snapshot) {
		if s.Status.State != models.SyncStateSyncing || p <= s.Progress {
			return
		}
		s.Progress = math.Min(p, 1)
	})
}

// markLastSync sets the last successful sync time.
func (h *StateHolder) markLastSync(t time.Time) {
	h.update(func(s *models.Snapshot) {
		t := t.UTC()
		s.LastSyncAt = &t
	})
}

func (h *StateHolder) update(mutate func(*models.Snapshot)) models.Snapshot {
	h.mu.Lock()
	next := cloneSnapshot(h.snap)
	mutate(&next)
	next.UpdatedAt = h.now().UTC()
	h.snap = next

	out := cloneSnapshot(next)
	for _, ch := range h.subs {
		select {
		case ch <- cloneSnapshot(next):
		default:
		}
	}
	callbacks := make([]func(models.Snapshot), len(h.callbacks))
	copy(callbacks, h.callbacks)
	h.mu.Unlock()

	for _, fn := range callbacks {
		fn(cloneSnapshot(out))
	}
	return out
}

// StatusText renders s relative to now.
func StatusText(s models.Snapshot, now time.Time) string {
	switch s.Status.State {
	case models.SyncStateSyncing:
		return fmt.Sprintf("Syncing… %d%%", int(math.Round(s.Progress*100)))
	case models.SyncStateError:
		return "Sync failed: " + s.Status.Reason
	default:
		if s.LastSyncAt != nil {
			return "Last synced " + relativeTime(*s.LastSyncAt, now)
		}
		return "Ready to sync"
	}
}

// lastSyncMagnitudes renders anything under a minute as "just now".
var lastSyncMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "just now", DivBy: 1},
	{D: 2 * time.Minute, Format: "1 minute %s", DivBy: 1},
	{D: time.Hour, Format: "%d minutes %s", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "1 hour %s", DivBy: 1},
	{D: humanize.Day, Format: "%d hours %s", DivBy: time.Hour},
	{D: 2 * humanize.Day, Format: "1 day %s", DivBy: 1},
	{D: math.MaxInt64, Format: "%d days %s", DivBy: humanize.Day},
}

func relativeTime(t, now time.Time) string {
	if t.After(now) {
		t = now
	}
	return humanize.CustomRelTime(t, now, "ago", "from now", lastSyncMagnitudes)
}

func cloneSnapshot(s models.Snapshot) models.Snapshot {
	s.LastSyncAt = copyTime(s.LastSyncAt)
	return s
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
