// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/tomtom215/healthsync/internal/models"
)

// Config holds all application configuration loaded from defaults, an optional
// YAML file, and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Pipeline:
//     - Sync: Scheduling, tolerance, expiration and category selection
//     - Upload: Remote endpoint, credentials, batching and pacing
//     - Sources: Directories the FIT and JSON export providers read from
//
//  2. Infrastructure:
//     - Store: BadgerDB checkpoint storage
//     - Events: Watermill event transport (in-process or NATS)
//     - Server: HTTP status API
//
//  3. Observability:
//     - Logging: Log levels and output formats
type Config struct {
	Sync    SyncConfig    `koanf:"sync"`
	Upload  UploadConfig  `koanf:"upload"`
	Store   StoreConfig   `koanf:"store"`
	Sources SourcesConfig `koanf:"sources"`
	Events  EventsConfig  `koanf:"events"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// SyncConfig controls the background synchronization pipeline.
type SyncConfig struct {
	// Interval is how often the scheduler checks for due task requests.
	Interval time.Duration `koanf:"interval" validate:"gt=0"`

	// RescheduleOffset is the earliest-begin offset for the next background run.
	RescheduleOffset time.Duration `koanf:"reschedule_offset" validate:"gte=1s"`

	// ConflictTolerance is the window inside which two records of the same
	// metric type are treated as the same observation.
	ConflictTolerance time.Duration `koanf:"conflict_tolerance"`

	// ExpirationWindow bounds a single background invocation.
	ExpirationWindow time.Duration `koanf:"expiration_window" validate:"gt=0"`

	// CategoryTimeout bounds each category fetch during collection.
	CategoryTimeout time.Duration `koanf:"category_timeout" validate:"gt=0"`

	Categories     []string `koanf:"categories" validate:"min=1,dive,healthcategory"`
	TaskIdentifier string   `koanf:"task_identifier" validate:"required"`
	RunOnStartup   bool     `koanf:"run_on_startup"`
}

// UploadConfig configures the remote sync endpoint.
type UploadConfig struct {
	BaseURL           string        `koanf:"base_url" validate:"required"`
	BatchPath         string        `koanf:"batch_path" validate:"required,startswith=/"`
	Token             string        `koanf:"token"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxBatchSize      int           `koanf:"max_batch_size" validate:"gte=1,lte=10000"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gt=0"`
	Burst             int           `koanf:"burst" validate:"gte=1"`
}

// StoreConfig configures checkpoint persistence.
type StoreConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`

	// GCInterval is how often BadgerDB value log GC runs. Zero disables it.
	GCInterval time.Duration `koanf:"gc_interval" validate:"gte=0"`
}

// SourcesConfig points the file-backed providers at their data.
// Empty directories disable the corresponding provider.
type SourcesConfig struct {
	FITDir    string `koanf:"fit_dir"`
	ExportDir string `koanf:"export_dir"`
}

// EventsConfig configures sync outcome events.
// An empty NATSURL selects the in-process GoChannel transport unless
// EmbeddedNATS starts a server inside the process.
type EventsConfig struct {
	Enabled      bool   `koanf:"enabled"`
	NATSURL      string `koanf:"nats_url"`
	TopicPrefix  string `koanf:"topic_prefix" validate:"required"`
	EmbeddedNATS bool   `koanf:"embedded_nats"`
	EmbeddedHost string `koanf:"embedded_host"`
	EmbeddedPort int    `koanf:"embedded_port" validate:"gte=-1,lte=65535"`
}

// ServerConfig configures the HTTP status API.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	TriggerRateLimit  int           `koanf:"trigger_rate_limit" validate:"gte=1"`
	TriggerRateWindow time.Duration `koanf:"trigger_rate_window" validate:"gt=0"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LoggingConfig mirrors logging.Config for the koanf layers.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// CategoryList parses Categories. Validation has already rejected unknown
// names, so an error here means Validate was skipped.
func (s SyncConfig) CategoryList() ([]models.Category, error) {
	out := make([]models.Category, 0, len(s.Categories))
	for _, name := range s.Categories {
		c, err := models.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("sync.categories: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Load reads configuration from defaults, config file and environment.
//
// See LoadWithKoanf() for the underlying implementation.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
