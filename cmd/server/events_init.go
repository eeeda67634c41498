// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package main

import (
	"context"
	"time"

	"github.com/tomtom215/healthsync/internal/config"
	"github.com/tomtom215/healthsync/internal/events"
	"github.com/tomtom215/healthsync/internal/logging"
	ws "github.com/tomtom215/healthsync/internal/websocket"
)

// EventComponents holds the publisher and the bridge that feeds run outcomes
// from the bus to WebSocket clients.
type EventComponents struct {
	Publisher *events.Publisher
	Bridge    *events.Bridge
	// Server is set when NATS_EMBEDDED=true.
	Server *events.EmbeddedServer
}

// initEvents builds the event publisher. It returns nil when events are
// disabled; the orchestrator then broadcasts to the hub directly.
func initEvents(cfg *config.EventsConfig, hub *ws.Hub) (*EventComponents, error) {
	if !cfg.Enabled {
		logging.Info().Msg("Sync events disabled (EVENTS_ENABLED=false)")
		return nil, nil
	}

	var embedded *events.EmbeddedServer
	if cfg.EmbeddedNATS {
		srv, err := events.NewEmbeddedServer(cfg.EmbeddedHost, cfg.EmbeddedPort, logging.NewNATSLogger())
		if err != nil {
			return nil, err
		}
		embedded = srv
		withURL := *cfg
		withURL.NATSURL = srv.ClientURL()
		cfg = &withURL
		logging.Info().Str("url", srv.ClientURL()).Msg("Embedded NATS server started")
	}

	publisher, err := events.NewPublisher(cfg, logging.NewWatermillLogger())
	if err != nil {
		if embedded != nil {
			shutdownEmbedded(embedded)
		}
		return nil, err
	}

	logging.Info().
		Str("transport", publisher.Transport()).
		Strs("topics", publisher.Topics()).
		Msg("Sync event publisher initialized")

	return &EventComponents{
		Publisher: publisher,
		Bridge:    events.NewBridge(publisher, hub, publisher.Topics()...),
		Server:    embedded,
	}, nil
}

// Close releases the publisher and its transport connections, then stops
// the embedded server.
func (c *EventComponents) Close() {
	if c == nil {
		return
	}
	if err := c.Publisher.Close(); err != nil {
		logging.Warn().Err(err).Msg("Error closing event publisher")
	}
	if c.Server != nil {
		shutdownEmbedded(c.Server)
	}
}

func shutdownEmbedded(srv *events.EmbeddedServer) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn().Err(err).Msg("Error stopping embedded NATS server")
	}
}
