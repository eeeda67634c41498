// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package models

import (
	"fmt"
	"time"
)

// SourceType identifies where a health reading originated.
type SourceType string

const (
	SourceDeviceAPI  SourceType = "device-api"
	SourceManual     SourceType = "manual"
	SourceThirdParty SourceType = "third-party"
)

// Valid reports whether s is one of the known source types.
func (s SourceType) Valid() bool {
	switch s {
	case SourceDeviceAPI, SourceManual, SourceThirdParty:
		return true
	default:
		return false
	}
}

// ParseSourceType converts a wire value into a SourceType.
func ParseSourceType(v string) (SourceType, error) {
	s := SourceType(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown source type %q", v)
	}
	return s, nil
}

// UnifiedMetric is the normalized, source-agnostic record shape used by every
// stage after normalization and sent to the remote service as-is.
//
// Values are treated as immutable: stages copy and replace records, they never
// edit fields of a record they did not construct.
type UnifiedMetric struct {
	MetricType string                 `json:"metric_type"`
	Value      float64                `json:"value"`
	Unit       string                 `json:"unit"`
	SourceType SourceType             `json:"source_type"`
	RecordedAt time.Time              `json:"recorded_at"`          // ISO-8601, UTC
	SourceApp  *string                `json:"source_app,omitempty"` // Bundle or app name reported by the source
	DeviceName *string                `json:"device_name,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Equal reports whether two metrics carry the same values field for field.
// Timestamps are compared by instant, metadata with EqualMetadata.
func (m UnifiedMetric) Equal(o UnifiedMetric) bool {
	if m.MetricType != o.MetricType || m.Value != o.Value || m.Unit != o.Unit || m.SourceType != o.SourceType {
		return false
	}
	if !m.RecordedAt.Equal(o.RecordedAt) {
		return false
	}
	if !equalOptional(m.SourceApp, o.SourceApp) || !equalOptional(m.DeviceName, o.DeviceName) {
		return false
	}
	return EqualMetadata(m.Metadata, o.Metadata)
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// LatestRecordedAt returns the maximum RecordedAt in batch.
// The second return value is false for an empty batch.
func LatestRecordedAt(batch []UnifiedMetric) (time.Time, bool) {
	var latest time.Time
	for i := range batch {
		if batch[i].RecordedAt.After(latest) {
			latest = batch[i].RecordedAt
		}
	}
	return latest, len(batch) > 0
}
