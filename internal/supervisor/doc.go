// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

/*
Package supervisor provides process supervision for Healthsync using suture v4.

Services are grouped into three layers for failure isolation:

	RootSupervisor ("healthsync")
	├── DataSupervisor ("data-layer")
	│   └── StoreGCService (BadgerDB store only)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── Scheduler ("task-scheduler")
	│   ├── Hub ("websocket-hub")
	│   └── Bridge ("event-bridge", events enabled only)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crashed service is restarted with backoff once FailureThreshold failures
accumulate (decaying at FailureDecay per second). Supervisor events are logged
through sutureslog onto the zerolog-backed slog handler from internal/logging.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.NewTreeConfig(cfg.Sync.ExpirationWindow))
	if err != nil {
	    return err
	}
	if _, err := tree.Add(supervisor.LayerMessaging, sched); err != nil {
	    return err
	}
	if _, err := tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(srv, 10*time.Second)); err != nil {
	    return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	<-errCh

Shutdown waits at most ShutdownTimeout per service. NewTreeConfig stretches it
past the sync expiration window so Scheduler.Stop can wait out an in-flight
background run. Services that miss the
deadline are listed by UnstoppedServiceReport.
*/
package supervisor
