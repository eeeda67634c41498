// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/healthsync/internal/models"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/healthsync/config.yaml",
	"/etc/healthsync/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultTaskIdentifier is the scheduler identifier of the background sync task.
const DefaultTaskIdentifier = "com.healthsync.background-sync"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	categories := make([]string, 0, len(models.AllCategories()))
	for _, c := range models.AllCategories() {
		categories = append(categories, string(c))
	}

	return &Config{
		Sync: SyncConfig{
			Interval:          time.Second,
			RescheduleOffset:  15 * time.Minute,
			ConflictTolerance: 60 * time.Second,
			ExpirationWindow:  30 * time.Second,
			CategoryTimeout:   20 * time.Second,
			Categories:        categories,
			TaskIdentifier:    DefaultTaskIdentifier,
			RunOnStartup:      true,
		},
		Upload: UploadConfig{
			BaseURL:           "",
			BatchPath:         "/api/v1/health/sync",
			Token:             "",
			Timeout:           30 * time.Second,
			MaxBatchSize:      500,
			RequestsPerSecond: 5,
			Burst:             1,
		},
		Store: StoreConfig{
			Path:       "/data/healthsync",
			InMemory:   false,
			GCInterval: 10 * time.Minute,
		},
		Sources: SourcesConfig{},
		Events: EventsConfig{
			Enabled:      true,
			NATSURL:      "", // in-process GoChannel
			TopicPrefix:  "healthsync",
			EmbeddedNATS: false,
			EmbeddedHost: "127.0.0.1",
			EmbeddedPort: 4222,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8787,
			Timeout:           30 * time.Second,
			CORSOrigins:       []string{"*"},
			TriggerRateLimit:  10,
			TriggerRateWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// UPLOAD_BASE_URL -> upload.base_url
	// SYNC_RESCHEDULE_OFFSET -> sync.reschedule_offset
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"sync.categories",
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings while the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
var envMappings = map[string]string{
	// Sync pipeline
	"sync_interval":           "sync.interval",
	"sync_reschedule_offset":  "sync.reschedule_offset",
	"sync_conflict_tolerance": "sync.conflict_tolerance",
	"sync_expiration_window":  "sync.expiration_window",
	"sync_category_timeout":   "sync.category_timeout",
	"sync_categories":         "sync.categories",
	"sync_task_identifier":    "sync.task_identifier",
	"sync_run_on_startup":     "sync.run_on_startup",

	// Upload endpoint
	"upload_base_url":            "upload.base_url",
	"upload_batch_path":          "upload.batch_path",
	"upload_token":               "upload.token",
	"upload_timeout":             "upload.timeout",
	"upload_max_batch_size":      "upload.max_batch_size",
	"upload_requests_per_second": "upload.requests_per_second",
	"upload_burst":               "upload.burst",

	// Store
	"store_path":        "store.path",
	"store_in_memory":   "store.in_memory",
	"store_gc_interval": "store.gc_interval",

	// Sources
	"fit_dir":    "sources.fit_dir",
	"export_dir": "sources.export_dir",

	// Events
	"events_enabled":      "events.enabled",
	"nats_url":            "events.nats_url",
	"events_topic_prefix": "events.topic_prefix",
	"nats_embedded":       "events.embedded_nats",
	"nats_embedded_host":  "events.embedded_host",
	"nats_embedded_port":  "events.embedded_port",

	// Server
	"http_port":           "server.port",
	"http_host":           "server.host",
	"http_timeout":        "server.timeout",
	"cors_origins":        "server.cors_origins",
	"trigger_rate_limit":  "server.trigger_rate_limit",
	"trigger_rate_window": "server.trigger_rate_window",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - UPLOAD_TOKEN -> upload.token
//   - SYNC_RESCHEDULE_OFFSET -> sync.reschedule_offset
//   - STORE_PATH -> store.path
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}

	// Unmapped keys are skipped so unrelated environment variables
	// never leak into the configuration.
	return ""
}
