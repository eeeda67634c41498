// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package source

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/healthsync/internal/models"
)

// StaticProvider serves a fixed set of samples from memory. It ignores since;
// older samples are removed later by the delta filter.
type StaticProvider struct {
	category models.Category

	mu      sync.RWMutex
	samples []models.RawSample
	err     error
	delay   time.Duration

	calls atomic.Int32
}

// NewStaticProvider returns a provider for category serving samples.
func NewStaticProvider(category models.Category, samples ...models.RawSample) *StaticProvider {
	return &StaticProvider{category: category, samples: samples}
}

// WithError makes every Fetch fail with err.
func (p *StaticProvider) WithError(err error) *StaticProvider {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
	return p
}

// WithDelay makes Fetch wait d (or until ctx is done) before answering.
func (p *StaticProvider) WithDelay(d time.Duration) *StaticProvider {
	p.mu.Lock()
	p.delay = d
	p.mu.Unlock()
	return p
}

// SetSamples replaces the served samples.
func (p *StaticProvider) SetSamples(samples ...models.RawSample) {
	p.mu.Lock()
	p.samples = samples
	p.mu.Unlock()
}

// Calls returns the number of Fetch invocations.
func (p *StaticProvider) Calls() int {
	return int(p.calls.Load())
}

func (p *StaticProvider) Category() models.Category {
	return p.category
}

func (p *StaticProvider) Fetch(ctx context.Context, _ *time.Time) ([]models.RawSample, error) {
	p.calls.Add(1)

	p.mu.RLock()
	delay, err := p.delay, p.err
	samples := append([]models.RawSample(nil), p.samples...)
	p.mu.RUnlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if err != nil {
		return nil, err
	}
	return samples, nil
}
