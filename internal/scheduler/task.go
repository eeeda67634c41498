// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package scheduler

import (
	"context"
	"sync"
	"time"
)

// Task is one invocation handed to a Handler.
type Task struct {
	identifier string
	ctx        context.Context

	once sync.Once
	done chan bool
}

func newTask(ctx context.Context, identifier string) *Task {
	return &Task{
		identifier: identifier,
		ctx:        ctx,
		done:       make(chan bool, 1),
	}
}

// Identifier returns the registered task identifier.
func (t *Task) Identifier() string {
	return t.identifier
}

// Context is cancelled when the invocation expires or the scheduler stops.
func (t *Task) Context() context.Context {
	return t.ctx
}

// Deadline returns the expiration time of this invocation.
func (t *Task) Deadline() time.Time {
	d, _ := t.ctx.Deadline()
	return d
}

// Complete reports the outcome. Only the first call has any effect, and a
// call after expiration is ignored.
func (t *Task) Complete(success bool) {
	t.once.Do(func() {
		t.done <- success
	})
}

// expire closes the task to further completions. It returns false if a
// completion was already delivered.
func (t *Task) expire() bool {
	expired := false
	t.once.Do(func() { expired = true })
	return expired
}
