// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

// Package scheduler runs named background tasks at or after a requested
// earliest start time, each under a hard expiration deadline.
//
// It models the contract of an OS background-task scheduler:
//   - a task identifier is registered once with its handler
//   - a request names the earliest time the task may begin
//   - a new request for a pending identifier replaces the old one
//   - the handler must report completion before the deadline; a handler
//     that does not is recorded as failed when the deadline passes
//
// The scheduler integrates with the supervisor tree through Serve.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/healthsync/internal/logging"
	"github.com/tomtom215/healthsync/internal/metrics"
)

// Errors
var (
	ErrAlreadyRegistered = errors.New("task identifier already registered")
	ErrNotRegistered     = errors.New("task identifier not registered")
)

// Handler runs one invocation of a task. It must call task.Complete.
type Handler func(task *Task)

// Request asks for identifier to run no earlier than EarliestBegin.
type Request struct {
	Identifier    string
	EarliestBegin time.Time
}

// Config holds scheduler configuration.
type Config struct {
	// CheckInterval is how often pending requests are checked (default: 1s)
	CheckInterval time.Duration

	// ExpirationWindow bounds a single invocation (default: 30s)
	ExpirationWindow time.Duration
}

// Scheduler dispatches due requests to registered handlers.
type Scheduler struct {
	logger zerolog.Logger
	config Config
	now    func() time.Time

	mu       sync.Mutex
	handlers map[string]Handler
	pending  map[string]time.Time

	// Runtime state
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	wake    chan struct{}
	invokes sync.WaitGroup
}

// New creates a scheduler.
func New(config Config) *Scheduler {
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Second
	}
	if config.ExpirationWindow <= 0 {
		config.ExpirationWindow = 30 * time.Second
	}
	return &Scheduler{
		logger:   logging.Component("scheduler"),
		config:   config,
		now:      time.Now,
		handlers: make(map[string]Handler),
		pending:  make(map[string]time.Time),
		wake:     make(chan struct{}, 1),
	}
}

// Register binds identifier to handler. Each identifier is registered once.
func (s *Scheduler) Register(identifier string, handler Handler) error {
	if identifier == "" {
		return fmt.Errorf("register task: empty identifier")
	}
	if handler == nil {
		return fmt.Errorf("register task %q: nil handler", identifier)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handlers[identifier]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, identifier)
	}
	s.handlers[identifier] = handler
	return nil
}

// Submit queues req, replacing any pending request for the same identifier.
func (s *Scheduler) Submit(req Request) error {
	s.mu.Lock()
	if _, ok := s.handlers[req.Identifier]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRegistered, req.Identifier)
	}
	_, replaced := s.pending[req.Identifier]
	s.pending[req.Identifier] = req.EarliestBegin
	s.mu.Unlock()

	s.logger.Debug().
		Str("identifier", req.Identifier).
		Time("earliest_begin", req.EarliestBegin).
		Bool("replaced", replaced).
		Msg("Task request submitted")

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Cancel drops the pending request for identifier, if any.
func (s *Scheduler) Cancel(identifier string) {
	s.mu.Lock()
	delete(s.pending, identifier)
	s.mu.Unlock()
}

// Pending returns the earliest begin time of the pending request.
func (s *Scheduler) Pending(identifier string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.pending[identifier]
	return t, ok
}

// Start begins the dispatch loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info().
		Dur("check_interval", s.config.CheckInterval).
		Dur("expiration_window", s.config.ExpirationWindow).
		Msg("Starting task scheduler")

	go s.run(ctx)
	return nil
}

// Stop ends the dispatch loop and waits for in-flight invocations to settle.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh
	s.invokes.Wait()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info().Msg("Task scheduler stopped")
	return nil
}

// IsRunning reports whether the dispatch loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Serve implements suture.Service.
func (s *Scheduler) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("scheduler start failed: %w", err)
	}
	<-ctx.Done()
	if err := s.Stop(); err != nil {
		return fmt.Errorf("scheduler stop failed: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture logging.
func (s *Scheduler) String() string {
	return "task-scheduler"
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	s.dispatchDue(ctx)

	for {
		select {
		case <-ticker.C:
			s.dispatchDue(ctx)
		case <-s.wake:
			s.dispatchDue(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// dispatchDue starts every pending request whose earliest begin has passed.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	due := make(map[string]Handler)
	for id, earliest := range s.pending {
		if now.Before(earliest) {
			continue
		}
		due[id] = s.handlers[id]
		delete(s.pending, id)
	}
	s.mu.Unlock()

	for id, handler := range due {
		s.invokes.Add(1)
		go func(id string, handler Handler) {
			defer s.invokes.Done()
			s.invoke(ctx, id, handler)
		}(id, handler)
	}
}

// invoke runs handler under the expiration deadline and records the outcome.
func (s *Scheduler) invoke(parent context.Context, identifier string, handler Handler) {
	taskCtx, cancel := context.WithTimeout(parent, s.config.ExpirationWindow)
	defer cancel()

	task := newTask(taskCtx, identifier)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().
					Str("identifier", identifier).
					Interface("panic", r).
					Msg("Task handler panicked")
				task.Complete(false)
			}
		}()
		handler(task)
	}()

	var result string
	select {
	case success := <-task.done:
		result = "failure"
		if success {
			result = "success"
		}
	case <-taskCtx.Done():
		if task.expire() {
			result = "expired"
			break
		}
		// A completion racing the deadline still counts.
		result = "failure"
		if <-task.done {
			result = "success"
		}
	}

	metrics.RecordSchedulerInvocation(identifier, result)
	s.logger.Info().
		Str("identifier", identifier).
		Str("result", result).
		Dur("duration", time.Since(start)).
		Msg("Task invocation finished")
}
