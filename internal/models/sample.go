// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package models

import (
	"fmt"
	"strings"
	"time"
)

// Category is a named class of health sample.
type Category string

const (
	CategorySteps     Category = "steps"
	CategoryHeartRate Category = "heart_rate"
	CategoryWorkouts  Category = "workouts"
	CategoryNutrition Category = "nutrition"
	CategorySleep     Category = "sleep"
)

// AllCategories returns every supported category in pipeline order.
func AllCategories() []Category {
	return []Category{
		CategorySteps,
		CategoryHeartRate,
		CategoryWorkouts,
		CategoryNutrition,
		CategorySleep,
	}
}

// ParseCategory converts a configuration or API value into a Category.
// Hyphenated forms ("heart-rate", "step-count") are accepted.
func ParseCategory(v string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "steps", "step_count", "step-count":
		return CategorySteps, nil
	case "heart_rate", "heart-rate", "heartrate":
		return CategoryHeartRate, nil
	case "workouts", "workout":
		return CategoryWorkouts, nil
	case "nutrition":
		return CategoryNutrition, nil
	case "sleep":
		return CategorySleep, nil
	default:
		return "", fmt.Errorf("unknown category %q", v)
	}
}

// RawSample is a category-specific reading as yielded by a source provider,
// before normalization.
type RawSample struct {
	Category   Category               `json:"category"`
	Kind       string                 `json:"kind,omitempty"` // Source type identifier, e.g. "running", "protein", "deep"
	Value      float64                `json:"value"`
	Unit       string                 `json:"unit"`
	Start      time.Time              `json:"start"`
	End        time.Time              `json:"end,omitempty"`
	Source     SourceType             `json:"source"`
	SourceApp  string                 `json:"source_app,omitempty"`
	DeviceName string                 `json:"device_name,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`

	// Workout extras
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	DistanceMeters  float64 `json:"distance_meters,omitempty"`
	ActivityName    string  `json:"activity_name,omitempty"`

	// Sleep extras
	SleepStage string `json:"sleep_stage,omitempty"`

	// Nutrition extras
	Nutrient string `json:"nutrient,omitempty"`
}

// Timestamp returns the instant the sample should be recorded at: the end of
// the sample interval, or its start when no end was reported.
func (s RawSample) Timestamp() time.Time {
	if !s.End.IsZero() {
		return s.End
	}
	return s.Start
}
