// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

/*
Package services provides suture.Service wrappers for components that do not
implement Serve(ctx) themselves.

HTTPServerService turns the ListenAndServe/Shutdown pair of *http.Server into
a context-aware Serve with a bounded graceful shutdown.

StoreGCService runs BadgerDB value log GC on an interval. GC errors are
logged and never returned, so store maintenance cannot trigger restarts.

The scheduler, the WebSocket hub and the event bridge implement
suture.Service directly and are added to the tree without a wrapper.
*/
package services
