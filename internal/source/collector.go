// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/healthsync/internal/logging"
	"github.com/tomtom215/healthsync/internal/metrics"
	"github.com/tomtom215/healthsync/internal/models"
)

// DefaultCategoryTimeout bounds each category fetch.
const DefaultCategoryTimeout = 20 * time.Second

// Collector fans out over the registered providers.
type Collector struct {
	mu        sync.RWMutex
	providers map[models.Category]Provider
	timeout   time.Duration
}

// NewCollector creates a collector. A zero timeout uses DefaultCategoryTimeout.
func NewCollector(timeout time.Duration, providers ...Provider) *Collector {
	if timeout <= 0 {
		timeout = DefaultCategoryTimeout
	}
	c := &Collector{
		providers: make(map[models.Category]Provider, len(providers)),
		timeout:   timeout,
	}
	for _, p := range providers {
		c.Register(p)
	}
	return c
}

// Register adds or replaces the provider for its category.
func (c *Collector) Register(p Provider) {
	c.mu.Lock()
	c.providers[p.Category()] = p
	c.mu.Unlock()
}

// Categories returns the categories that have a provider.
func (c *Collector) Categories() []models.Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.Category
	for _, cat := range models.AllCategories() {
		if _, ok := c.providers[cat]; ok {
			out = append(out, cat)
		}
	}
	return out
}

// Collect fetches every requested category with no checkpoint.
func (c *Collector) Collect(ctx context.Context, categories []models.Category) Results {
	return c.CollectSince(ctx, categories, nil)
}

// CollectSince fetches every requested category concurrently and waits for all
// of them. A category failure is recorded in its result and never affects the
// others. Each fetch is bounded by the category timeout and by ctx.
func (c *Collector) CollectSince(ctx context.Context, categories []models.Category, since *time.Time) Results {
	type entry struct {
		category models.Category
		result   CategoryResult
	}

	unique := dedupe(categories)
	entries := make(chan entry, len(unique))

	var wg sync.WaitGroup
	for _, cat := range unique {
		c.mu.RLock()
		p, ok := c.providers[cat]
		c.mu.RUnlock()

		if !ok {
			metrics.RecordSourceFetch(string(cat), outcome(ErrCategoryUnavailable), 0, 0)
			entries <- entry{cat, CategoryResult{Err: &CategoryError{Category: cat, Err: ErrCategoryUnavailable}}}
			continue
		}

		wg.Add(1)
		go func(cat models.Category, p Provider) {
			defer wg.Done()
			entries <- entry{cat, c.fetch(ctx, cat, p, since)}
		}(cat, p)
	}

	wg.Wait()
	close(entries)

	results := make(Results, len(unique))
	for e := range entries {
		results[e.category] = e.result
	}
	return results
}

// fetch runs one provider under the category timeout. The provider runs in its
// own goroutine so a provider that ignores its context cannot hold up the join.
func (c *Collector) fetch(ctx context.Context, cat models.Category, p Provider, since *time.Time) CategoryResult {
	start := time.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type fetched struct {
		samples []models.RawSample
		err     error
	}
	done := make(chan fetched, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetched{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		samples, err := p.Fetch(fetchCtx, since)
		done <- fetched{samples: samples, err: err}
	}()

	var res CategoryResult
	select {
	case f := <-done:
		res = CategoryResult{Samples: f.samples, Err: f.err}
	case <-fetchCtx.Done():
		res = CategoryResult{Err: fetchCtx.Err()}
	}

	if res.Err != nil {
		res.Samples = nil
		res.Err = &CategoryError{Category: cat, Err: res.Err}
		logging.Ctx(ctx).Warn().
			Err(res.Err).
			Str("category", string(cat)).
			Msg("Category fetch failed")
	}

	metrics.RecordSourceFetch(string(cat), outcome(res.Err), len(res.Samples), time.Since(start))
	return res
}

func dedupe(categories []models.Category) []models.Category {
	seen := make(map[models.Category]bool, len(categories))
	out := make([]models.Category, 0, len(categories))
	for _, c := range categories {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
