// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

// Package source reads raw health samples, one Provider per category, and
// fans collection out over all requested categories.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/healthsync/internal/models"
)

// Provider yields the raw samples of a single category.
//
// since is the last persisted checkpoint (nil on the first run). Providers may
// use it to skip work; the delta filter remains the authority on what is new.
type Provider interface {
	Category() models.Category
	Fetch(ctx context.Context, since *time.Time) ([]models.RawSample, error)
}

// Errors
var (
	// ErrCategoryUnavailable means no data source exists for the category.
	ErrCategoryUnavailable = errors.New("category unavailable")

	// ErrPermissionDenied means the source refused access to the category.
	ErrPermissionDenied = errors.New("permission denied")
)

// CategoryError attaches the category to a fetch failure.
type CategoryError struct {
	Category models.Category
	Err      error
}

func (e *CategoryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *CategoryError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the fetch hit its deadline.
func (e *CategoryError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// CategoryResult is either a sample sequence or a failure.
type CategoryResult struct {
	Samples []models.RawSample
	Err     error
}

// OK reports whether the category was fetched successfully.
func (r CategoryResult) OK() bool {
	return r.Err == nil
}

// Results holds one CategoryResult per requested category.
type Results map[models.Category]CategoryResult

// Samples returns the samples of all successful categories in category order.
func (r Results) Samples() []models.RawSample {
	var out []models.RawSample
	for _, c := range r.order() {
		if res := r[c]; res.OK() {
			out = append(out, res.Samples...)
		}
	}
	return out
}

// Failed lists the categories whose fetch failed, in category order.
func (r Results) Failed() []models.Category {
	var out []models.Category
	for _, c := range r.order() {
		if !r[c].OK() {
			out = append(out, c)
		}
	}
	return out
}

// Succeeded lists the categories fetched successfully, in category order.
func (r Results) Succeeded() []models.Category {
	var out []models.Category
	for _, c := range r.order() {
		if r[c].OK() {
			out = append(out, c)
		}
	}
	return out
}

// SampleCount is the total number of samples across successful categories.
func (r Results) SampleCount() int {
	n := 0
	for _, res := range r {
		if res.OK() {
			n += len(res.Samples)
		}
	}
	return n
}

// order returns the present categories, known categories first in their canonical order.
func (r Results) order() []models.Category {
	out := make([]models.Category, 0, len(r))
	seen := make(map[models.Category]bool, len(r))
	for _, c := range models.AllCategories() {
		if _, ok := r[c]; ok {
			out = append(out, c)
			seen[c] = true
		}
	}
	for c := range r {
		if !seen[c] {
			out = append(out, c)
		}
	}
	return out
}

// outcome classifies a fetch error for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCategoryUnavailable):
		return "unavailable"
	case errors.Is(err, ErrPermissionDenied):
		return "denied"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
