// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/healthsync/internal/logging"
	intsync "github.com/tomtom215/healthsync/internal/sync"
	"github.com/tomtom215/healthsync/internal/validation"
	ws "github.com/tomtom215/healthsync/internal/websocket"
)

// maxRequestBody bounds trigger request bodies.
const maxRequestBody = 4 * 1024

// SyncService is the orchestrator surface the API needs.
// Implemented by internal/sync.Orchestrator.
type SyncService interface {
	State() *intsync.StateHolder
	IsSyncing() bool
	TriggerAsync(ctx context.Context) (string, error)
}

// BreakerStater reports the upload circuit breaker state.
// Implemented by internal/upload.HTTPClient.
type BreakerStater interface {
	BreakerState() string
}

// Handler serves the status API.
type Handler struct {
	sync        SyncService
	wsHub       *ws.Hub
	breaker     BreakerStater
	corsOrigins []string
	version     string
	startTime   time.Time
}

// HandlerOptions are the optional collaborators of a Handler.
type HandlerOptions struct {
	Hub         *ws.Hub
	Breaker     BreakerStater
	CORSOrigins []string
	Version     string
}

// NewHandler creates a handler for svc.
func NewHandler(svc SyncService, opts HandlerOptions) *Handler {
	return &Handler{
		sync:        svc,
		wsHub:       opts.Hub,
		breaker:     opts.Breaker,
		corsOrigins: opts.CORSOrigins,
		version:     opts.Version,
		startTime:   time.Now(),
	}
}

// TriggerRequest is the optional body of POST /api/v1/sync.
type TriggerRequest struct {
	// Reason is logged with the run.
	Reason string `json:"reason" validate:"omitempty,max=200"`
}

// TriggerResponse acknowledges an accepted trigger.
type TriggerResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// HealthStatus is the GET /health payload.
type HealthStatus struct {
	Status           string  `json:"status"`
	Version          string  `json:"version,omitempty"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	Syncing          bool    `json:"syncing"`
	SyncState        string  `json:"sync_state"`
	CircuitBreaker   string  `json:"circuit_breaker,omitempty"`
	WebSocketClients int     `json:"websocket_clients"`
}

// SyncStatus handles GET /api/v1/sync/status.
//
// @Summary Get sync status
// @Description Returns the current sync state, progress, last successful sync time and a human-readable status line
// @Tags Sync
// @Produce json
// @Success 200 {object} APIResponse{data=intsync.StatusPayload} "Current sync status"
// @Router /sync/status [get]
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.sync.State().Payload())
}

// TriggerSync handles POST /api/v1/sync. The run continues after the reply;
// progress is visible through the status endpoint and the WebSocket stream.
//
// @Summary Trigger a manual sync
// @Description Starts a sync run in the background and returns its run ID. Rejected while another run is in progress.
// @Tags Sync
// @Accept json
// @Produce json
// @Param request body TriggerRequest false "Optional reason for the run"
// @Success 202 {object} APIResponse{data=TriggerResponse} "Sync accepted"
// @Failure 400 {object} APIResponse "Invalid request body"
// @Failure 409 {object} APIResponse "A sync is already in progress"
// @Failure 429 {object} APIResponse "Trigger rate limit exceeded"
// @Router /sync [post]
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req TriggerRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		rw.BadRequest("Failed to read request body")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			rw.BadRequest("Invalid JSON request body")
			return
		}
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	runID, err := h.sync.TriggerAsync(r.Context())
	switch {
	case errors.Is(err, intsync.ErrBusy):
		rw.Conflict("A sync is already in progress")
		return
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to start sync")
		rw.InternalError("Failed to start sync")
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("run_id", runID).
		Str("reason", req.Reason).
		Msg("Manual sync accepted")
	rw.Accepted(TriggerResponse{RunID: runID, Status: "accepted"})
}

// Health handles GET /health.
//
// @Summary Get service health
// @Description Reports uptime, the sync state, the upload circuit breaker state and connected WebSocket clients. An open breaker reports degraded.
// @Tags Core
// @Produce json
// @Success 200 {object} APIResponse{data=HealthStatus} "Health status"
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:        "healthy",
		Version:       h.version,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Syncing:       h.sync.IsSyncing(),
		SyncState:     string(h.sync.State().Snapshot().Status.State),
	}
	if h.breaker != nil {
		status.CircuitBreaker = h.breaker.BreakerState()
		if status.CircuitBreaker == "open" {
			status.Status = "degraded"
		}
	}
	if h.wsHub != nil {
		status.WebSocketClients = h.wsHub.GetClientCount()
	}
	WriteSuccess(w, r, status)
}

// WebSocket handles GET /api/v1/ws.
//
// @Summary Stream sync status
// @Description Upgrades to a WebSocket that sends the current status on connect, then sync_status and sync_completed messages
// @Tags Realtime
// @Success 101 "Switching protocols"
// @Failure 503 {object} APIResponse "WebSocket hub unavailable"
// @Router /ws [get]
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		NewResponseWriter(w, r).ServiceUnavailable("WebSocket service unavailable")
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	ws.NewClient(h.wsHub, conn).Start()
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin accepts requests without an Origin header (native
// clients and widgets) and browser requests from a configured origin.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.corsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("WebSocket connection rejected: origin not allowed")
	return false
}
