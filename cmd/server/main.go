// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	_ "github.com/tomtom215/healthsync/docs" // Import generated swagger docs
	"github.com/tomtom215/healthsync/internal/api"
	"github.com/tomtom215/healthsync/internal/config"
	"github.com/tomtom215/healthsync/internal/logging"
	"github.com/tomtom215/healthsync/internal/models"
	"github.com/tomtom215/healthsync/internal/scheduler"
	"github.com/tomtom215/healthsync/internal/store"
	"github.com/tomtom215/healthsync/internal/supervisor"
	"github.com/tomtom215/healthsync/internal/supervisor/services"
	intsync "github.com/tomtom215/healthsync/internal/sync"
	"github.com/tomtom215/healthsync/internal/upload"
	ws "github.com/tomtom215/healthsync/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Str("version", version).Msg("Starting Healthsync with supervisor tree")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checkpointStore, err := initStore(&cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open checkpoint store")
	}
	defer func() {
		if err := checkpointStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing checkpoint store")
		}
	}()

	syncCfg, err := intsync.NewConfig(&cfg.Sync)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid sync configuration")
	}

	collector := initCollector(&cfg.Sources, syncCfg.Categories, cfg.Sync.CategoryTimeout)

	uploadClient := upload.NewHTTPClient(&cfg.Upload)
	if !uploadClient.Authenticator().Authenticated(ctx) {
		logging.Warn().Msg("Upload token missing or expired; runs will fail with not_authenticated until it is set")
	}

	sched := scheduler.New(scheduler.Config{
		CheckInterval:    cfg.Sync.Interval,
		ExpirationWindow: cfg.Sync.ExpirationWindow,
	})

	wsHub := ws.NewHub()

	eventComponents, err := initEvents(&cfg.Events, wsHub)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize sync events")
	}
	defer eventComponents.Close()

	deps := intsync.Dependencies{
		Collector: collector,
		Store:     checkpointStore,
		Uploader:  uploadClient,
		Auth:      uploadClient.Authenticator(),
		Scheduler: sched,
	}
	// With events enabled, run outcomes reach the hub through the bridge.
	if eventComponents != nil {
		deps.Publisher = eventComponents.Publisher
	} else {
		deps.Hub = wsHub
	}

	orchestrator, err := intsync.NewOrchestrator(ctx, syncCfg, deps)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create sync orchestrator")
	}

	wsHub.SetGreeting(func() ws.Message {
		return ws.Message{Type: ws.MessageTypeSyncStatus, Data: orchestrator.State().Payload()}
	})
	orchestrator.State().OnChange(func(s models.Snapshot) {
		wsHub.BroadcastStatus(intsync.NewStatusPayload(s, time.Now()))
	})

	if err := sched.Register(syncCfg.TaskIdentifier, orchestrator.HandleTask); err != nil {
		logging.Fatal().Err(err).Msg("Failed to register background sync task")
	}
	if cfg.Sync.RunOnStartup {
		if err := orchestrator.Schedule(time.Now()); err != nil {
			logging.Error().Err(err).Msg("Failed to schedule initial sync")
		}
	} else if err := orchestrator.Schedule(time.Now().Add(cfg.Sync.RescheduleOffset)); err != nil {
		logging.Error().Err(err).Msg("Failed to schedule background sync")
	}

	handler := api.NewHandler(orchestrator, api.HandlerOptions{
		Hub:         wsHub,
		Breaker:     uploadClient,
		CORSOrigins: cfg.Server.CORSOrigins,
		Version:     version,
	})
	router := api.NewRouter(handler, api.NewChiMiddleware(api.NewChiMiddlewareConfig(&cfg.Server)))

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.NewTreeConfig(cfg.Sync.ExpirationWindow))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	type layered struct {
		layer supervisor.Layer
		svc   suture.Service
	}
	var treeServices []layered
	if !cfg.Store.InMemory && cfg.Store.GCInterval > 0 {
		treeServices = append(treeServices, layered{supervisor.LayerData, services.NewStoreGCService(checkpointStore, services.StoreGCServiceConfig{
			Interval: cfg.Store.GCInterval,
		}, logging.Logger())})
	}
	treeServices = append(treeServices,
		layered{supervisor.LayerMessaging, wsHub},
		layered{supervisor.LayerMessaging, sched},
	)
	if eventComponents != nil {
		treeServices = append(treeServices, layered{supervisor.LayerMessaging, eventComponents.Bridge})
	}
	treeServices = append(treeServices, layered{supervisor.LayerAPI, services.NewHTTPServerService(srv, 10*time.Second)})
	for _, ls := range treeServices {
		if _, err := tree.Add(ls.layer, ls.svc); err != nil {
			logging.Fatal().Err(err).Msg("Failed to add service to supervisor tree")
		}
	}
	for _, layer := range supervisor.Layers {
		logging.Debug().Str("layer", string(layer)).Strs("services", tree.Services()[layer]).Msg("Supervisor layer")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", srv.Addr).Dur("shutdown_timeout", tree.ShutdownTimeout()).Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}
	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	// Detached API runs finish before the store closes.
	orchestrator.Wait()

	logging.Info().Msg("Application stopped gracefully")
}

// initStore opens the BadgerDB checkpoint store, on disk or in memory.
func initStore(cfg *config.StoreConfig) (*store.BadgerStore, error) {
	if cfg.InMemory {
		logging.Warn().Msg("Checkpoint store is in memory (STORE_IN_MEMORY=true); checkpoints are lost on restart")
	}
	return store.Open(store.Config{Path: cfg.Path, InMemory: cfg.InMemory})
}
