// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

// Package normalize maps category-specific raw samples to UnifiedMetric
// records and provides the JSON codec used on the wire.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tomtom215/healthsync/internal/logging"
	"github.com/tomtom215/healthsync/internal/metrics"
	"github.com/tomtom215/healthsync/internal/models"
	"github.com/tomtom215/healthsync/internal/source"
)

// Reasons a sample cannot be mapped.
var (
	ErrMissingType      = errors.New("metric type cannot be extracted")
	ErrInvalidValue     = errors.New("value is not a finite number")
	ErrMissingUnit      = errors.New("unit is missing")
	ErrInvalidSource    = errors.New("source type is invalid")
	ErrMissingTimestamp = errors.New("timestamp is missing")
)

// Output is the result of normalizing one collection.
type Output struct {
	Metrics []models.UnifiedMetric
	Dropped int
}

// Normalizer maps raw samples to UnifiedMetric. It holds no state; the same
// input always produces the same output.
type Normalizer struct{}

// New returns a Normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Normalize maps every successful category of results, in category order.
// Samples whose required fields cannot be extracted are counted in Dropped.
func (n *Normalizer) Normalize(results source.Results) Output {
	samples := results.Samples()
	out := Output{Metrics: make([]models.UnifiedMetric, 0, len(samples))}

	for i := range samples {
		m, err := n.Sample(samples[i])
		if err != nil {
			out.Dropped++
			logging.Debug().
				Err(err).
				Str("category", string(samples[i].Category)).
				Msg("Dropping raw sample")
			continue
		}
		out.Metrics = append(out.Metrics, m)
	}

	metrics.RecordNormalizeDropped(out.Dropped)
	return out
}

// Sample maps a single raw sample.
func (n *Normalizer) Sample(s models.RawSample) (models.UnifiedMetric, error) {
	metricType, err := MetricType(s)
	if err != nil {
		return models.UnifiedMetric{}, err
	}
	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return models.UnifiedMetric{}, ErrInvalidValue
	}
	unit := strings.TrimSpace(s.Unit)
	if unit == "" {
		return models.UnifiedMetric{}, ErrMissingUnit
	}
	if !s.Source.Valid() {
		return models.UnifiedMetric{}, fmt.Errorf("%w: %q", ErrInvalidSource, s.Source)
	}
	ts := s.Timestamp()
	if ts.IsZero() {
		return models.UnifiedMetric{}, ErrMissingTimestamp
	}

	return models.UnifiedMetric{
		MetricType: metricType,
		Value:      s.Value,
		Unit:       unit,
		SourceType: s.Source,
		RecordedAt: ts.UTC().Truncate(time.Millisecond),
		SourceApp:  models.StringPtr(s.SourceApp),
		DeviceName: models.StringPtr(s.DeviceName),
		Metadata:   metadata(s),
	}, nil
}

// MetricType derives "<category>" or "<category>.<kind>".
//
// Steps and heart rate are single-kind categories. Workouts, nutrition and
// sleep need a kind, taken from Kind or from the category's own field.
func MetricType(s models.RawSample) (string, error) {
	category, err := models.ParseCategory(string(s.Category))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingType, err)
	}

	var kind string
	switch category {
	case models.CategorySteps, models.CategoryHeartRate:
		return string(category), nil
	case models.CategoryWorkouts:
		kind = firstNonEmpty(s.Kind, s.ActivityName)
	case models.CategoryNutrition:
		kind = firstNonEmpty(s.Kind, s.Nutrient)
	case models.CategorySleep:
		kind = firstNonEmpty(s.Kind, s.SleepStage)
	}

	kind = normalizeKind(kind)
	if kind == "" {
		return "", fmt.Errorf("%w: %s sample has no kind", ErrMissingType, category)
	}
	return string(category) + "." + kind, nil
}

func metadata(s models.RawSample) map[string]interface{} {
	md := make(map[string]interface{}, len(s.Metadata)+4)
	for k, v := range s.Metadata {
		md[k] = v
	}
	if s.DurationSeconds > 0 {
		md["duration_seconds"] = s.DurationSeconds
	}
	if s.DistanceMeters > 0 {
		md["distance_meters"] = s.DistanceMeters
	}
	if s.ActivityName != "" {
		md["activity_name"] = s.ActivityName
	}
	if s.SleepStage != "" {
		md["sleep_stage"] = s.SleepStage
	}
	if s.Nutrient != "" {
		md["nutrient"] = s.Nutrient
	}
	if len(md) == 0 {
		return nil
	}
	return md
}

func normalizeKind(kind string) string {
	kind = strings.ToLower(strings.TrimSpace(kind))
	return strings.Join(strings.Fields(strings.NewReplacer("-", " ", ".", " ").Replace(kind)), "_")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
