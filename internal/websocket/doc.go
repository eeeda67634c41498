// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

/*
Package websocket streams sync status to connected clients.

The package uses gorilla/websocket with a hub-client architecture:

	┌──────────┐
	│   Hub    │ ← Broadcasts to all clients
	└────┬─────┘
	     │
	┌────┴─────┬─────────┬─────────┐
	│ Client1  │ Client2 │ Client3 │
	└──────────┴─────────┴─────────┘

Each client has two goroutines:
  - readPump: reads control messages (ping, sync_status)
  - writePump: writes hub messages and keepalive pings

Message Types:

  - sync_status: the current status payload, sent on connect, on request,
    and on every state change
  - sync_completed: the summary of a finished run
  - ping / pong: application-level keepalive

Messages are JSON objects of the form {"type": ..., "data": ...}.

Thread Safety:

The hub owns the client set. Register, Unregister and broadcasts are
serialized through its run loop. A client whose send buffer is full is
dropped rather than blocking the broadcast.

The Hub implements suture.Service and closes every client on shutdown.
*/
package websocket
