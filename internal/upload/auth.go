// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package upload

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authenticator gates a run before any collection or network call.
type Authenticator interface {
	Authenticated(ctx context.Context) bool
}

// TokenAuthenticator holds the bearer token sent to the remote service.
//
// The token is opaque to this service. If it happens to be a JWT its exp
// claim is honored so that an expired session fails locally; the signature
// is the server's business and is not verified here.
type TokenAuthenticator struct {
	mu    sync.RWMutex
	token string
	now   func() time.Time
}

// NewTokenAuthenticator returns an authenticator for token.
func NewTokenAuthenticator(token string) *TokenAuthenticator {
	return &TokenAuthenticator{token: strings.TrimSpace(token), now: time.Now}
}

// Token returns the current bearer token.
func (a *TokenAuthenticator) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// SetToken replaces the bearer token. An empty token signs out.
func (a *TokenAuthenticator) SetToken(token string) {
	a.mu.Lock()
	a.token = strings.TrimSpace(token)
	a.mu.Unlock()
}

// Authenticated reports whether a usable token is present.
func (a *TokenAuthenticator) Authenticated(_ context.Context) bool {
	token := a.Token()
	if token == "" {
		return false
	}
	exp, ok := tokenExpiry(token)
	if !ok {
		return true
	}
	return a.now().Before(exp)
}

// tokenExpiry extracts the exp claim of a JWT without verifying it.
// ok is false for non-JWT tokens and for JWTs without exp.
func tokenExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
