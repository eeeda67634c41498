// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package main

import (
	"time"

	"github.com/tomtom215/healthsync/internal/config"
	"github.com/tomtom215/healthsync/internal/logging"
	"github.com/tomtom215/healthsync/internal/models"
	"github.com/tomtom215/healthsync/internal/source"
)

// initCollector registers one provider per configured category.
//
// FIT activity files serve heart_rate and workouts; the JSON export directory
// serves every remaining category. A category with neither is left
// unregistered and fails per run as unavailable, which never blocks the
// other categories.
func initCollector(sources *config.SourcesConfig, categories []models.Category, timeout time.Duration) *source.Collector {
	collector := source.NewCollector(timeout)

	for _, cat := range categories {
		if sources.FITDir != "" {
			if p, err := source.NewFITProvider(sources.FITDir, cat); err == nil {
				collector.Register(p)
				logging.Info().Str("category", string(cat)).Str("dir", sources.FITDir).Msg("FIT provider registered")
				continue
			}
		}
		if sources.ExportDir != "" {
			p := source.NewJSONExportProvider(sources.ExportDir, cat)
			collector.Register(p)
			logging.Info().Str("category", string(cat)).Str("path", p.Path()).Msg("JSON export provider registered")
			continue
		}
		logging.Warn().Str("category", string(cat)).Msg("No provider configured for category")
	}

	return collector
}
