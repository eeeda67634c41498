// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

/*
Package upload sends normalized metric batches to the remote health service.

Client Features:
  - Empty batches short-circuit without a request
  - Bearer token authentication, checked locally before any request
  - Chunking of large batches into sequential requests
  - Token-bucket pacing between chunk requests (golang.org/x/time/rate)
  - Circuit breaker protection (sony/gobreaker)

There is no retry loop. A failed upload fails the run, and the next
scheduled run re-sends the same delta window.
*/
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/healthsync/internal/config"
	"github.com/tomtom215/healthsync/internal/logging"
	"github.com/tomtom215/healthsync/internal/metrics"
	"github.com/tomtom215/healthsync/internal/models"
)

// maxErrorBodySize limits how much of an error response is kept.
const maxErrorBodySize = 64 * 1024

// Client uploads a batch and returns the server's accounting of it.
type Client interface {
	Upload(ctx context.Context, batch []models.UnifiedMetric) (*models.SyncResult, error)
}

// batchRequest is the request body.
type batchRequest struct {
	Metrics []models.UnifiedMetric `json:"metrics"`
}

// HTTPClient is the production Client.
type HTTPClient struct {
	endpoint     string
	maxBatchSize int
	client       *http.Client
	auth         *TokenAuthenticator
	limiter      *rate.Limiter
	breaker      *breaker
}

// NewHTTPClient builds a client for cfg. The token in cfg seeds the
// returned client's Authenticator.
func NewHTTPClient(cfg *config.UploadConfig) *HTTPClient {
	maxBatch := cfg.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = 500
	}
	rps := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		rps = rate.Inf
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &HTTPClient{
		endpoint:     strings.TrimRight(cfg.BaseURL, "/") + cfg.BatchPath,
		maxBatchSize: maxBatch,
		client:       &http.Client{Timeout: cfg.Timeout},
		auth:         NewTokenAuthenticator(cfg.Token),
		limiter:      rate.NewLimiter(rps, burst),
		breaker:      newBreaker(BreakerName),
	}
}

// Authenticator returns the token holder used for the Authorization header.
func (c *HTTPClient) Authenticator() *TokenAuthenticator {
	return c.auth
}

// BreakerState returns the circuit breaker state for health reporting.
func (c *HTTPClient) BreakerState() string {
	return c.breaker.state()
}

// Upload sends batch in chunks of at most max_batch_size records and merges
// the per-chunk results. The first failing chunk aborts the upload.
func (c *HTTPClient) Upload(ctx context.Context, batch []models.UnifiedMetric) (*models.SyncResult, error) {
	if len(batch) == 0 {
		return &models.SyncResult{}, nil
	}
	if !c.auth.Authenticated(ctx) {
		metrics.RecordUploadRequest("unauthenticated", 0)
		return nil, &AuthError{Reason: "no valid token"}
	}

	total := &models.SyncResult{}
	for start := 0; start < len(batch); start += c.maxBatchSize {
		end := start + c.maxBatchSize
		if end > len(batch) {
			end = len(batch)
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &NetworkError{Op: "upload batch", Err: err}
		}

		chunk := batch[start:end]
		result, err := c.breaker.execute(func() (*models.SyncResult, error) {
			return c.send(ctx, chunk)
		})
		if err != nil {
			logging.Ctx(ctx).Warn().
				Err(err).
				Int("chunk_start", start).
				Int("chunk_size", len(chunk)).
				Msg("Batch upload failed")
			return nil, err
		}
		total.Merge(result)
	}

	metrics.RecordUploadResult(total.ProcessedCount, total.FailedCount)
	return total, nil
}

// send performs one POST and maps the response.
func (c *HTTPClient) send(ctx context.Context, chunk []models.UnifiedMetric) (*models.SyncResult, error) {
	body, err := json.Marshal(batchRequest{Metrics: chunk})
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.auth.Token())
	req.Header.Set("User-Agent", "healthsync")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordUploadRequest("network", time.Since(start))
		return nil, &NetworkError{Op: "upload batch", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		metrics.RecordUploadRequest("auth", time.Since(start))
		return nil, &AuthError{
			Reason: fmt.Sprintf("server rejected credentials (HTTP %d)", resp.StatusCode),
			Status: resp.StatusCode,
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		metrics.RecordUploadRequest("http_error", time.Since(start))
		msg := strings.TrimSpace(string(readBodyForError(resp.Body)))
		var cause error
		if msg != "" {
			cause = errors.New(msg)
		}
		return nil, &NetworkError{Op: "upload batch", Status: resp.StatusCode, Err: cause}
	}

	var result models.SyncResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		metrics.RecordUploadRequest("decode_error", time.Since(start))
		return nil, &NetworkError{Op: "decode sync result", Status: resp.StatusCode, Err: err}
	}
	metrics.RecordUploadRequest("success", time.Since(start))
	return &result, nil
}

// readBodyForError reads at most maxErrorBodySize bytes of r.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}
