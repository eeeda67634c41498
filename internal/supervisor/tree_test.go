// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/healthsync/internal/scheduler"
	"github.com/tomtom215/healthsync/internal/supervisor/services"
	"github.com/tomtom215/healthsync/internal/websocket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestNewSupervisorTree_Defaults(t *testing.T) {
	t.Parallel()

	tree, err := NewSupervisorTree(testLogger(), TreeConfig{})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}
	if tree.config != DefaultTreeConfig() {
		t.Errorf("config = %+v, want defaults %+v", tree.config, DefaultTreeConfig())
	}
	for _, layer := range Layers {
		if tree.layers[layer] == nil {
			t.Errorf("layer %s has no supervisor", layer)
		}
	}
}

func TestNewSupervisorTree_RequiresLogger(t *testing.T) {
	t.Parallel()

	if _, err := NewSupervisorTree(nil, TreeConfig{}); err == nil {
		t.Error("NewSupervisorTree(nil) error = nil, want error")
	}
}

func TestNewSupervisorTree_KeepsExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := TreeConfig{
		FailureThreshold: 3,
		FailureDecay:     10,
		FailureBackoff:   time.Second,
		ShutdownTimeout:  2 * time.Second,
	}
	tree, err := NewSupervisorTree(testLogger(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if tree.config != cfg {
		t.Errorf("config = %+v, want %+v", tree.config, cfg)
	}
}

func TestNewTreeConfig_ShutdownOutlastsExpirationWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		window time.Duration
		want   time.Duration
	}{
		{"short window keeps default", time.Second, 10 * time.Second},
		{"default sync window", 30 * time.Second, 35 * time.Second},
		{"zero window", 0, 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewTreeConfig(tt.window)
			if cfg.ShutdownTimeout != tt.want {
				t.Errorf("ShutdownTimeout = %v, want %v", cfg.ShutdownTimeout, tt.want)
			}
			if cfg.FailureThreshold != DefaultTreeConfig().FailureThreshold {
				t.Errorf("FailureThreshold = %v, want default", cfg.FailureThreshold)
			}
		})
	}
}

func TestSupervisorTree_AddUnknownLayer(t *testing.T) {
	t.Parallel()

	tree, _ := NewSupervisorTree(testLogger(), TreeConfig{})
	if _, err := tree.Add(Layer("storage-layer"), newMockService("x")); err == nil {
		t.Error("Add() to unknown layer error = nil, want error")
	}
	if len(tree.Services()) != 0 {
		t.Errorf("Services() = %v, want empty", tree.Services())
	}
}

func TestSupervisorTree_Services(t *testing.T) {
	t.Parallel()

	tree, _ := NewSupervisorTree(testLogger(), TreeConfig{})
	mustAdd(t, tree, LayerMessaging, newMockService("websocket-hub"))
	mustAdd(t, tree, LayerMessaging, newMockService("task-scheduler"))
	mustAdd(t, tree, LayerAPI, newMockService("http-server"))

	got := tree.Services()
	if want := []string{"task-scheduler", "websocket-hub"}; !equalStrings(got[LayerMessaging], want) {
		t.Errorf("messaging services = %v, want %v", got[LayerMessaging], want)
	}
	if want := []string{"http-server"}; !equalStrings(got[LayerAPI], want) {
		t.Errorf("api services = %v, want %v", got[LayerAPI], want)
	}
	if len(got[LayerData]) != 0 {
		t.Errorf("data services = %v, want none", got[LayerData])
	}
}

func mustAdd(t *testing.T, tree *SupervisorTree, layer Layer, svc *mockService) {
	t.Helper()
	if _, err := tree.Add(layer, svc); err != nil {
		t.Fatalf("Add(%s, %s) error = %v", layer, svc, err)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSupervisorTree_StartsEveryLayer(t *testing.T) {
	t.Parallel()

	tree, _ := NewSupervisorTree(testLogger(), TreeConfig{ShutdownTimeout: time.Second})
	data := newMockService("data")
	messaging := newMockService("messaging")
	api := newMockService("api")
	mustAdd(t, tree, LayerData, data)
	mustAdd(t, tree, LayerMessaging, messaging)
	mustAdd(t, tree, LayerAPI, api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	if !waitFor(t, time.Second, func() bool {
		return data.StartCount() >= 1 && messaging.StartCount() >= 1 && api.StartCount() >= 1
	}) {
		t.Errorf("starts: data=%d messaging=%d api=%d", data.StartCount(), messaging.StartCount(), api.StartCount())
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not shut down")
	}
}

func TestSupervisorTree_RestartsFailingService(t *testing.T) {
	t.Parallel()

	tree, _ := NewSupervisorTree(testLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	failing := newMockService("failing")
	failing.setFailCount(2)
	stable := newMockService("stable")
	mustAdd(t, tree, LayerMessaging, failing)
	mustAdd(t, tree, LayerAPI, stable)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	if !waitFor(t, 2*time.Second, func() bool { return failing.StartCount() >= 3 }) {
		t.Errorf("failing service started %d times, want >= 3", failing.StartCount())
	}
	if stable.StartCount() != 1 {
		t.Errorf("stable service started %d times, want 1", stable.StartCount())
	}
}

func TestSupervisorTree_Remove(t *testing.T) {
	t.Parallel()

	tree, _ := NewSupervisorTree(testLogger(), TreeConfig{ShutdownTimeout: time.Second})
	svc := newMockService("removable")
	token, err := tree.Add(LayerMessaging, svc)
	if err != nil {
		t.Fatal(err)
	}
	mustAdd(t, tree, LayerMessaging, newMockService("kept"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	if !waitFor(t, time.Second, func() bool { return svc.StartCount() >= 1 }) {
		t.Fatal("service never started")
	}
	if err := tree.Remove(LayerAPI, token); err == nil {
		t.Error("Remove() from the wrong layer error = nil, want error")
	}
	if err := tree.Remove(LayerMessaging, token); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if got := tree.Services()[LayerMessaging]; !equalStrings(got, []string{"kept"}) {
		t.Errorf("messaging services after Remove = %v, want [kept]", got)
	}
}

// TestSupervisorTree_RealServices runs the production service set with the
// layers main wires them into.
func TestSupervisorTree_RealServices(t *testing.T) {
	t.Parallel()

	tree, _ := NewSupervisorTree(testLogger(), TreeConfig{ShutdownTimeout: 2 * time.Second})

	sched := scheduler.New(scheduler.Config{CheckInterval: 10 * time.Millisecond, ExpirationWindow: time.Second})
	ran := make(chan struct{}, 1)
	if err := sched.Register("test.task", func(task *scheduler.Task) {
		ran <- struct{}{}
		task.Complete(true)
	}); err != nil {
		t.Fatal(err)
	}
	hub := websocket.NewHub()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	server := &http.Server{Addr: "127.0.0.1:0", Handler: mux, ReadHeaderTimeout: time.Second}

	for _, add := range []struct {
		layer Layer
		svc   suture.Service
	}{
		{LayerMessaging, sched},
		{LayerMessaging, hub},
		{LayerAPI, services.NewHTTPServerService(server, time.Second)},
	} {
		if _, err := tree.Add(add.layer, add.svc); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	if err := sched.Submit(scheduler.Request{Identifier: "test.task", EarliestBegin: time.Now()}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled task did not run under the supervisor")
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not shut down")
	}
	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		t.Errorf("unstopped services: %v", report)
	}
}
