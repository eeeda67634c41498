// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Layer names one of the child supervisors under the root.
type Layer string

const (
	// LayerData holds checkpoint store maintenance.
	LayerData Layer = "data-layer"
	// LayerMessaging holds the scheduler, the WebSocket hub and the event bridge.
	LayerMessaging Layer = "messaging-layer"
	// LayerAPI holds the status HTTP server.
	LayerAPI Layer = "api-layer"
)

// Layers lists every layer in start order.
var Layers = []Layer{LayerData, LayerMessaging, LayerAPI}

// shutdownGrace is added to the expiration window so an expiring background
// sync can still record its failure after the scheduler cancels it.
const shutdownGrace = 5 * time.Second

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay in seconds.
	FailureDecay float64

	// FailureBackoff is the duration to wait when threshold is exceeded.
	FailureBackoff time.Duration

	// ShutdownTimeout bounds how long each service gets to stop.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's built-in defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// NewTreeConfig returns the defaults with a shutdown timeout that outlasts a
// background sync invocation. Scheduler.Stop waits for the in-flight task, and
// that task is bounded by expirationWindow.
func NewTreeConfig(expirationWindow time.Duration) TreeConfig {
	cfg := DefaultTreeConfig()
	if t := expirationWindow + shutdownGrace; t > cfg.ShutdownTimeout {
		cfg.ShutdownTimeout = t
	}
	return cfg
}

type registration struct {
	token suture.ServiceToken
	name  string
}

// SupervisorTree is the Healthsync process tree: a root supervisor with one
// child supervisor per Layer. A crash in the messaging layer leaves the status
// API serving.
type SupervisorTree struct {
	root   *suture.Supervisor
	layers map[Layer]*suture.Supervisor
	logger *slog.Logger
	config TreeConfig

	mu       sync.Mutex
	services map[Layer][]registration
}

// NewSupervisorTree builds the tree. Zero fields in config take the
// DefaultTreeConfig value.
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) (*SupervisorTree, error) {
	if logger == nil {
		return nil, fmt.Errorf("supervisor tree requires a logger")
	}
	config = config.withDefaults()

	// MustHook has a pointer receiver.
	handler := &sutureslog.Handler{Logger: logger}
	rootSpec := config.spec()
	rootSpec.EventHook = handler.MustHook()

	tree := &SupervisorTree{
		root:     suture.New("healthsync", rootSpec),
		layers:   make(map[Layer]*suture.Supervisor, len(Layers)),
		logger:   logger,
		config:   config,
		services: make(map[Layer][]registration, len(Layers)),
	}
	// Children inherit the EventHook when added to the root.
	for _, layer := range Layers {
		child := suture.New(string(layer), config.spec())
		tree.layers[layer] = child
		tree.root.Add(child)
	}
	return tree, nil
}

func (c TreeConfig) withDefaults() TreeConfig {
	d := DefaultTreeConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.FailureDecay <= 0 {
		c.FailureDecay = d.FailureDecay
	}
	if c.FailureBackoff <= 0 {
		c.FailureBackoff = d.FailureBackoff
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}

func (c TreeConfig) spec() suture.Spec {
	return suture.Spec{
		FailureThreshold: c.FailureThreshold,
		FailureDecay:     c.FailureDecay,
		FailureBackoff:   c.FailureBackoff,
		Timeout:          c.ShutdownTimeout,
	}
}

// Add starts svc under the given layer, or queues it if the tree is not
// serving yet.
func (t *SupervisorTree) Add(layer Layer, svc suture.Service) (suture.ServiceToken, error) {
	sup, ok := t.layers[layer]
	if !ok {
		return suture.ServiceToken{}, fmt.Errorf("unknown supervisor layer %q", layer)
	}
	token := sup.Add(svc)

	t.mu.Lock()
	t.services[layer] = append(t.services[layer], registration{token: token, name: serviceName(svc)})
	t.mu.Unlock()
	return token, nil
}

// Remove stops and removes a service added with Add.
func (t *SupervisorTree) Remove(layer Layer, token suture.ServiceToken) error {
	sup, ok := t.layers[layer]
	if !ok {
		return fmt.Errorf("unknown supervisor layer %q", layer)
	}
	if err := sup.Remove(token); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	regs := t.services[layer]
	for i, r := range regs {
		if r.token == token {
			t.services[layer] = append(regs[:i:i], regs[i+1:]...)
			break
		}
	}
	return nil
}

// Services returns the sorted service names registered in each layer.
func (t *SupervisorTree) Services() map[Layer][]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[Layer][]string, len(t.services))
	for layer, regs := range t.services {
		names := make([]string, 0, len(regs))
		for _, r := range regs {
			names = append(names, r.name)
		}
		sort.Strings(names)
		out[layer] = names
	}
	return out
}

// ShutdownTimeout is the per-service stop deadline in effect.
func (t *SupervisorTree) ShutdownTimeout() time.Duration {
	return t.config.ShutdownTimeout
}

// ServeBackground runs the tree until ctx is canceled. The returned channel
// receives the root supervisor's exit error.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	t.logger.Info("starting supervisor tree", "shutdown_timeout", t.config.ShutdownTimeout.String())
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that failed to stop within the
// shutdown timeout.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

func serviceName(svc suture.Service) string {
	if s, ok := svc.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", svc)
}
