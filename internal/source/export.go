// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/healthsync/internal/models"
)

// JSONExportProvider reads <dir>/<category>.json, a JSON array of raw samples
// as written by a health-data export.
type JSONExportProvider struct {
	dir      string
	category models.Category
}

// NewJSONExportProvider returns a provider for category reading from dir.
func NewJSONExportProvider(dir string, category models.Category) *JSONExportProvider {
	return &JSONExportProvider{dir: dir, category: category}
}

// Path is the export file this provider reads.
func (p *JSONExportProvider) Path() string {
	return filepath.Join(p.dir, string(p.category)+".json")
}

func (p *JSONExportProvider) Category() models.Category {
	return p.category
}

// Fetch returns the exported samples recorded after since.
func (p *JSONExportProvider) Fetch(ctx context.Context, since *time.Time) ([]models.RawSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p.Path())
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrCategoryUnavailable, p.Path())
	case errors.Is(err, fs.ErrPermission):
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, p.Path())
	case err != nil:
		return nil, fmt.Errorf("read export: %w", err)
	}

	var raw []models.RawSample
	if err := json.UnmarshalContext(ctx, data, &raw); err != nil {
		return nil, fmt.Errorf("decode export %s: %w", p.Path(), err)
	}

	samples := make([]models.RawSample, 0, len(raw))
	for _, s := range raw {
		if since != nil && !s.Timestamp().After(*since) {
			continue
		}
		s.Category = p.category
		samples = append(samples, s)
	}
	return samples, nil
}
