// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

// Package main provides the Healthsync status API
//
// @title Healthsync API
// @version 1.0
// @description Status and control API for the Healthsync background health data sync.
// @description
// @description Runs are started by the background scheduler or by POST /api/v1/sync.
// @description Progress is available by polling /api/v1/sync/status or over the /api/v1/ws stream.
// @description
// @description All JSON responses share the envelope `{"success": bool, "data": ..., "error": {...}, "meta": {...}}`.
//
// @contact.name GitHub Repository
// @contact.url https://github.com/tomtom215/healthsync/issues
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @host localhost:8787
// @BasePath /api/v1
// @schemes http https
//
// @tag.name Core
// @tag.description Service health
//
// @tag.name Sync
// @tag.description Sync status and manual triggers
//
// @tag.name Realtime
// @tag.description WebSocket status stream
package main

//go:generate swag init -g docs.go -d .,../../internal/api,../../internal/sync,../../internal/models -o ../../docs --parseInternal
