// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// readyTimeout bounds how long NewEmbeddedServer waits for the listener.
const readyTimeout = 10 * time.Second

// maxEventPayload caps message size. A SyncEvent is well under 1 KiB.
const maxEventPayload = 1024 * 1024

// EmbeddedServer runs a core NATS server inside the process so sync events
// reach external subscribers without a separate broker. JetStream stays off:
// sync events are fire-and-forget notifications.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer starts a NATS server on host:port and waits until it
// accepts connections. Port -1 picks a free port. A nil logger disables
// server logging.
func NewEmbeddedServer(host string, port int, logger server.Logger) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName: "healthsync-events",
		Host:       host,
		Port:       port,
		JetStream:  false,
		NoLog:      logger == nil,
		// Signals belong to the process supervisor.
		NoSigs:     true,
		MaxPayload: maxEventPayload,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}
	if logger != nil {
		ns.SetLogger(logger, false, false)
	}

	go ns.Start()

	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within %s", readyTimeout)
	}

	return &EmbeddedServer{
		server:    ns,
		clientURL: ns.ClientURL(),
	}, nil
}

// ClientURL returns the nats:// URL clients connect to.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Running reports whether the server is still accepting clients.
func (s *EmbeddedServer) Running() bool {
	return s.server.Running()
}

// Shutdown stops the server and waits for it to exit or for ctx to end.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.server.Shutdown()
		s.server.WaitForShutdown()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
