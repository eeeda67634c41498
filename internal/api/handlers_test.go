// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	_ "github.com/tomtom215/healthsync/docs"
	intsync "github.com/tomtom215/healthsync/internal/sync"
	ws "github.com/tomtom215/healthsync/internal/websocket"
)

// stubSync is a SyncService with a scripted trigger result.
type stubSync struct {
	state    *intsync.StateHolder
	busy     atomic.Bool
	triggers atomic.Int32
	err      error
}

func newStubSync() *stubSync {
	return &stubSync{state: intsync.NewStateHolder(nil)}
}

func (s *stubSync) State() *intsync.StateHolder { return s.state }
func (s *stubSync) IsSyncing() bool             { return s.busy.Load() }

func (s *stubSync) TriggerAsync(context.Context) (string, error) {
	if s.busy.Load() {
		return "", intsync.ErrBusy
	}
	if s.err != nil {
		return "", s.err
	}
	s.triggers.Add(1)
	return "run-123", nil
}

type stubBreaker string

func (b stubBreaker) BreakerState() string { return string(b) }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func newTestRouter(svc SyncService, opts HandlerOptions, mw *ChiMiddlewareConfig) http.Handler {
	return NewRouter(NewHandler(svc, opts), NewChiMiddleware(mw)).SetupChi()
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func TestSyncStatus(t *testing.T) {
	t.Parallel()

	router := newTestRouter(newStubSync(), HandlerOptions{}, nil)
	rec, env := do(t, router, http.MethodGet, "/api/v1/sync/status", "")

	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var payload intsync.StatusPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Status != "idle" || payload.StatusText != "Ready to sync" || payload.LastSyncAt != nil {
		t.Errorf("payload = %+v", payload)
	}
	if rec.Header().Get("X-Request-ID") == "" || env.Meta == nil || env.Meta.RequestID == "" {
		t.Error("request id not propagated")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestTriggerSync(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		busy     bool
		err      error
		wantCode int
		wantErr  string
	}{
		{"accepted without body", "", false, nil, http.StatusAccepted, ""},
		{"accepted with reason", `{"reason":"pull to refresh"}`, false, nil, http.StatusAccepted, ""},
		{"busy", "", true, nil, http.StatusConflict, ErrCodeConflict},
		{"invalid json", `{"reason":`, false, nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"reason too long", `{"reason":"` + strings.Repeat("x", 201) + `"}`, false, nil, http.StatusBadRequest, ErrCodeValidationFailed},
		{"trigger failure", "", false, errors.New("boom"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := newStubSync()
			svc.busy.Store(tt.busy)
			svc.err = tt.err
			router := newTestRouter(svc, HandlerOptions{}, nil)

			rec, env := do(t, router, http.MethodPost, "/api/v1/sync", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantErr == "" {
				var resp TriggerResponse
				if err := json.Unmarshal(env.Data, &resp); err != nil {
					t.Fatal(err)
				}
				if resp.RunID != "run-123" || resp.Status != "accepted" {
					t.Errorf("response = %+v", resp)
				}
				return
			}
			if env.Success || env.Error == nil || env.Error.Code != tt.wantErr {
				t.Errorf("error = %+v, want code %s", env.Error, tt.wantErr)
			}
			if svc.triggers.Load() != 0 {
				t.Error("rejected request started a run")
			}
		})
	}
}

func TestTriggerSync_RateLimited(t *testing.T) {
	t.Parallel()

	mw := DefaultChiMiddlewareConfig()
	mw.TriggerRequests = 2
	mw.TriggerWindow = time.Minute
	router := newTestRouter(newStubSync(), HandlerOptions{}, mw)

	for i := 0; i < 2; i++ {
		if rec, _ := do(t, router, http.MethodPost, "/api/v1/sync", ""); rec.Code != http.StatusAccepted {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec, env := do(t, router, http.MethodPost, "/api/v1/sync", "")
	if rec.Code != http.StatusTooManyRequests || env.Error == nil || env.Error.Code != ErrCodeTooManyRequests {
		t.Errorf("third request status = %d, error = %+v", rec.Code, env.Error)
	}

	// Status reads are not limited by the trigger limiter.
	if rec, _ := do(t, router, http.MethodGet, "/api/v1/sync/status", ""); rec.Code != http.StatusOK {
		t.Errorf("status read = %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		breaker BreakerStater
		want    string
	}{
		{"no breaker", nil, "healthy"},
		{"closed", stubBreaker("closed"), "healthy"},
		{"open", stubBreaker("open"), "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			router := newTestRouter(newStubSync(), HandlerOptions{Breaker: tt.breaker, Version: "test"}, nil)
			rec, env := do(t, router, http.MethodGet, "/health", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var health HealthStatus
			if err := json.Unmarshal(env.Data, &health); err != nil {
				t.Fatal(err)
			}
			if health.Status != tt.want || health.SyncState != "idle" || health.Version != "test" {
				t.Errorf("health = %+v", health)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	router := newTestRouter(newStubSync(), HandlerOptions{}, nil)
	do(t, router, http.MethodGet, "/api/v1/sync/status", "")

	rec, _ := do(t, router, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthsync_api_requests_total") {
		t.Error("api request metric not exported")
	}
}

func TestSwaggerDocs(t *testing.T) {
	t.Parallel()

	router := newTestRouter(newStubSync(), HandlerOptions{}, nil)

	rec, _ := do(t, router, http.MethodGet, "/swagger/doc.json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("doc.json status = %d", rec.Code)
	}
	var doc struct {
		BasePath string                     `json:"basePath"`
		Paths    map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("doc.json is not JSON: %v", err)
	}
	if doc.BasePath != "/api/v1" {
		t.Errorf("basePath = %q, want /api/v1", doc.BasePath)
	}
	for _, path := range []string{"/health", "/sync", "/sync/status", "/ws"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Errorf("doc.json has no %s path", path)
		}
	}

	rec, _ = do(t, router, http.MethodGet, "/swagger/index.html", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "swagger-ui") {
		t.Errorf("index.html status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	mw := DefaultChiMiddlewareConfig()
	mw.CORSAllowedOrigins = []string{"https://app.example.com"}
	router := newTestRouter(newStubSync(), HandlerOptions{}, mw)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sync", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestCheckWebSocketOrigin(t *testing.T) {
	t.Parallel()

	h := NewHandler(newStubSync(), HandlerOptions{CORSOrigins: []string{"https://app.example.com"}})
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://app.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := h.checkWebSocketOrigin(req); got != tt.want {
			t.Errorf("origin %q allowed = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestWebSocket_StreamsStatus(t *testing.T) {
	t.Parallel()

	svc := newStubSync()
	hub := ws.NewHub()
	hub.SetGreeting(func() ws.Message {
		return ws.Message{Type: ws.MessageTypeSyncStatus, Data: svc.State().Payload()}
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Serve(ctx) }()

	server := httptest.NewServer(newTestRouter(svc, HandlerOptions{Hub: hub}, nil))
	defer server.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/api/v1/ws", nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var msg struct {
		Type string                `json:"type"`
		Data intsync.StatusPayload `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != ws.MessageTypeSyncStatus || msg.Data.StatusText != "Ready to sync" {
		t.Errorf("greeting = %+v", msg)
	}
}

func TestWebSocket_NoHub(t *testing.T) {
	t.Parallel()

	router := newTestRouter(newStubSync(), HandlerOptions{}, nil)
	rec, env := do(t, router, http.MethodGet, "/api/v1/ws", "")
	if rec.Code != http.StatusServiceUnavailable || env.Error == nil {
		t.Errorf("status = %d, error = %+v", rec.Code, env.Error)
	}
}
