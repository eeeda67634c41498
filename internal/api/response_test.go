// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/healthsync/internal/logging"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestResponseWriter_Success(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logging.ContextWithRequestID(req.Context(), "req-1"))
	rec := httptest.NewRecorder()

	NewResponseWriter(rec, req).Success(map[string]int{"count": 3})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	env := decodeEnvelope(t, rec)
	if !env.Success || env.Error != nil || string(env.Data) != `{"count":3}` {
		t.Errorf("envelope = %+v data=%s", env, env.Data)
	}
	if env.Meta == nil || env.Meta.RequestID != "req-1" || env.Meta.Timestamp.IsZero() {
		t.Errorf("meta = %+v", env.Meta)
	}
}

func TestResponseWriter_Accepted(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewResponseWriter(rec, httptest.NewRequest(http.MethodPost, "/", nil)).Accepted("queued")
	if rec.Code != http.StatusAccepted || !decodeEnvelope(t, rec).Success {
		t.Errorf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestResponseWriter_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		write      func(*ResponseWriter)
		wantStatus int
		wantCode   string
	}{
		{"bad request", func(rw *ResponseWriter) { rw.BadRequest("bad") }, http.StatusBadRequest, ErrCodeBadRequest},
		{"conflict", func(rw *ResponseWriter) { rw.Conflict("busy") }, http.StatusConflict, ErrCodeConflict},
		{"too many", func(rw *ResponseWriter) { rw.TooManyRequests("slow down") }, http.StatusTooManyRequests, ErrCodeTooManyRequests},
		{"internal", func(rw *ResponseWriter) { rw.InternalError("boom") }, http.StatusInternalServerError, ErrCodeInternalError},
		{"unavailable", func(rw *ResponseWriter) { rw.ServiceUnavailable("down") }, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{"validation", func(rw *ResponseWriter) { rw.ValidationError("invalid", map[string]string{"reason": "max"}) }, http.StatusBadRequest, ErrCodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(logging.ContextWithRequestID(req.Context(), "req-err"))
			rec := httptest.NewRecorder()
			tt.write(NewResponseWriter(rec, req))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			env := decodeEnvelope(t, rec)
			if env.Success || env.Error == nil {
				t.Fatalf("envelope = %+v", env)
			}
			if env.Error.Code != tt.wantCode || env.Error.RequestID != "req-err" {
				t.Errorf("error = %+v", env.Error)
			}
			if len(env.Data) != 0 {
				t.Errorf("data on error = %s", env.Data)
			}
		})
	}
}

func TestWriteHelpers(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)

	rec := httptest.NewRecorder()
	WriteSuccess(rec, req, "ok")
	if rec.Code != http.StatusOK {
		t.Errorf("WriteSuccess status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	WriteError(rec, req, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "down")
	if env := decodeEnvelope(t, rec); rec.Code != http.StatusServiceUnavailable || env.Error.Message != "down" {
		t.Errorf("WriteError status = %d error = %+v", rec.Code, env.Error)
	}
}
