// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package upload

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotAuthenticated matches every *AuthError via errors.Is.
var ErrNotAuthenticated = errors.New("not authenticated")

// AuthError means the upload was refused for lack of valid credentials,
// either locally before any request or by the server (401/403).
type AuthError struct {
	Reason string
	Status int // 0 when rejected locally
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return ErrNotAuthenticated.Error()
	}
	return fmt.Sprintf("%s: %s", ErrNotAuthenticated.Error(), e.Reason)
}

// Is reports ErrNotAuthenticated as a match.
func (e *AuthError) Is(target error) bool {
	return target == ErrNotAuthenticated
}

// NetworkError covers transport failures, timeouts, open circuits and
// non-success responses other than auth rejections.
type NetworkError struct {
	Op     string
	Status int // HTTP status, 0 if no response was received
	Err    error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.Status)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline or a timeout status.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	if errors.As(e.Err, &t) && t.Timeout() {
		return true
	}
	return e.Status == 408 || e.Status == 504
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	return errors.Is(err, ErrNotAuthenticated)
}

// IsNetwork reports whether err is a *NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
