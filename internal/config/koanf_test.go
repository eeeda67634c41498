// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/healthsync/internal/models"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()

	if cfg.Sync.RescheduleOffset != 15*time.Minute {
		t.Errorf("Sync.RescheduleOffset = %v, want 15m", cfg.Sync.RescheduleOffset)
	}
	if cfg.Sync.ConflictTolerance != 60*time.Second {
		t.Errorf("Sync.ConflictTolerance = %v, want 60s", cfg.Sync.ConflictTolerance)
	}
	if cfg.Sync.ExpirationWindow != 30*time.Second {
		t.Errorf("Sync.ExpirationWindow = %v, want 30s", cfg.Sync.ExpirationWindow)
	}
	if cfg.Sync.CategoryTimeout != 20*time.Second {
		t.Errorf("Sync.CategoryTimeout = %v, want 20s", cfg.Sync.CategoryTimeout)
	}
	if len(cfg.Sync.Categories) != len(models.AllCategories()) {
		t.Errorf("Sync.Categories = %v, want all categories", cfg.Sync.Categories)
	}
	if cfg.Sync.TaskIdentifier != DefaultTaskIdentifier {
		t.Errorf("Sync.TaskIdentifier = %q", cfg.Sync.TaskIdentifier)
	}
	if cfg.Upload.BaseURL != "" {
		t.Errorf("Upload.BaseURL should be empty by default, got %q", cfg.Upload.BaseURL)
	}
	if cfg.Upload.MaxBatchSize != 500 {
		t.Errorf("Upload.MaxBatchSize = %d, want 500", cfg.Upload.MaxBatchSize)
	}
	if !cfg.Events.Enabled || cfg.Events.NATSURL != "" {
		t.Errorf("Events should default to enabled in-process transport, got %+v", cfg.Events)
	}
	if cfg.Server.Port != 8787 {
		t.Errorf("Server.Port = %d, want 8787", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

// TestEnvTransformFunc verifies environment variable name transformations
func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"SYNC_RESCHEDULE_OFFSET", "sync.reschedule_offset"},
		{"SYNC_CONFLICT_TOLERANCE", "sync.conflict_tolerance"},
		{"SYNC_CATEGORIES", "sync.categories"},
		{"UPLOAD_BASE_URL", "upload.base_url"},
		{"UPLOAD_TOKEN", "upload.token"},
		{"STORE_PATH", "store.path"},
		{"FIT_DIR", "sources.fit_dir"},
		{"NATS_URL", "events.nats_url"},
		{"HTTP_PORT", "server.port"},
		{"CORS_ORIGINS", "server.cors_origins"},
		{"LOG_LEVEL", "logging.level"},
		{"log_format", "logging.format"},

		// Unmapped keys are dropped
		{"HOME", ""},
		{"PATH", ""},
		{"UPLOAD_SECRET_SAUCE", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.input); got != tt.expected {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestLoadWithKoanf_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("UPLOAD_BASE_URL", "https://health.example.com")
	t.Setenv("UPLOAD_TOKEN", "secret-token")
	t.Setenv("SYNC_RESCHEDULE_OFFSET", "30m")
	t.Setenv("SYNC_CONFLICT_TOLERANCE", "90s")
	t.Setenv("SYNC_CATEGORIES", "steps, sleep")
	t.Setenv("STORE_IN_MEMORY", "true")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("NATS_EMBEDDED", "true")
	t.Setenv("NATS_EMBEDDED_PORT", "-1")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Upload.BaseURL != "https://health.example.com" {
		t.Errorf("Upload.BaseURL = %q", cfg.Upload.BaseURL)
	}
	if cfg.Upload.Token != "secret-token" {
		t.Errorf("Upload.Token = %q", cfg.Upload.Token)
	}
	if cfg.Sync.RescheduleOffset != 30*time.Minute {
		t.Errorf("Sync.RescheduleOffset = %v, want 30m", cfg.Sync.RescheduleOffset)
	}
	if cfg.Sync.ConflictTolerance != 90*time.Second {
		t.Errorf("Sync.ConflictTolerance = %v, want 90s", cfg.Sync.ConflictTolerance)
	}
	if strings.Join(cfg.Sync.Categories, ",") != "steps,sleep" {
		t.Errorf("Sync.Categories = %v, want [steps sleep]", cfg.Sync.Categories)
	}
	if !cfg.Store.InMemory {
		t.Error("Store.InMemory should be true")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if !cfg.Events.EmbeddedNATS || cfg.Events.EmbeddedPort != -1 || cfg.Events.EmbeddedHost != "127.0.0.1" {
		t.Errorf("embedded NATS = %v %s:%d", cfg.Events.EmbeddedNATS, cfg.Events.EmbeddedHost, cfg.Events.EmbeddedPort)
	}

	categories, err := cfg.Sync.CategoryList()
	if err != nil {
		t.Fatalf("CategoryList() error = %v", err)
	}
	if len(categories) != 2 || categories[0] != models.CategorySteps || categories[1] != models.CategorySleep {
		t.Errorf("CategoryList() = %v", categories)
	}
}

func TestLoadWithKoanf_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
sync:
  reschedule_offset: 20m
  categories:
    - heart_rate
    - workouts
upload:
  base_url: http://127.0.0.1:8080
  max_batch_size: 50
store:
  in_memory: true
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	// Environment wins over the file.
	t.Setenv("UPLOAD_MAX_BATCH_SIZE", "75")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Sync.RescheduleOffset != 20*time.Minute {
		t.Errorf("Sync.RescheduleOffset = %v, want 20m", cfg.Sync.RescheduleOffset)
	}
	if strings.Join(cfg.Sync.Categories, ",") != "heart_rate,workouts" {
		t.Errorf("Sync.Categories = %v", cfg.Sync.Categories)
	}
	if cfg.Upload.MaxBatchSize != 75 {
		t.Errorf("Upload.MaxBatchSize = %d, want 75", cfg.Upload.MaxBatchSize)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// Untouched values keep their defaults.
	if cfg.Sync.ConflictTolerance != 60*time.Second {
		t.Errorf("Sync.ConflictTolerance = %v, want 60s", cfg.Sync.ConflictTolerance)
	}
}

func TestLoadWithKoanf_MissingBaseURL(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("UPLOAD_BASE_URL", "")
	t.Setenv("STORE_IN_MEMORY", "true")

	if _, err := LoadWithKoanf(); err == nil {
		t.Fatal("expected validation error for missing base URL")
	}
}

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Upload.BaseURL = "https://health.example.com"
	return cfg
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults with base url", func(*Config) {}, ""},
		{"unknown category", func(c *Config) { c.Sync.Categories = []string{"glucose"} }, "Categories"},
		{"empty categories", func(c *Config) { c.Sync.Categories = nil }, "Categories"},
		{"negative tolerance", func(c *Config) { c.Sync.ConflictTolerance = -time.Second }, "SYNC_CONFLICT_TOLERANCE"},
		{"zero tolerance", func(c *Config) { c.Sync.ConflictTolerance = 0 }, ""},
		{"category timeout beyond expiration", func(c *Config) { c.Sync.CategoryTimeout = time.Minute }, "SYNC_CATEGORY_TIMEOUT"},
		{"expiration beyond reschedule", func(c *Config) {
			c.Sync.RescheduleOffset = 10 * time.Second
		}, "SYNC_EXPIRATION_WINDOW"},
		{"base url with path", func(c *Config) { c.Upload.BaseURL = "https://health.example.com/api" }, "UPLOAD_BASE_URL"},
		{"base url bad scheme", func(c *Config) { c.Upload.BaseURL = "ftp://health.example.com" }, "UPLOAD_BASE_URL"},
		{"plain http to a remote host", func(c *Config) { c.Upload.BaseURL = "http://health.example.com" }, "UPLOAD_BASE_URL"},
		{"plain http to loopback", func(c *Config) { c.Upload.BaseURL = "http://127.0.0.1:8080" }, ""},
		{"plain http to localhost", func(c *Config) { c.Upload.BaseURL = "http://localhost:8080/" }, ""},
		{"credentials in base url", func(c *Config) { c.Upload.BaseURL = "https://user:pw@health.example.com" }, "UPLOAD_TOKEN"},
		{"base url with query", func(c *Config) { c.Upload.BaseURL = "https://health.example.com?x=1" }, "UPLOAD_BASE_URL"},
		{"batch path without slash", func(c *Config) { c.Upload.BatchPath = "sync" }, "BatchPath"},
		{"batch size too large", func(c *Config) { c.Upload.MaxBatchSize = 20000 }, "MaxBatchSize"},
		{"store path required", func(c *Config) { c.Store.Path = "" }, "STORE_PATH"},
		{"store path optional in memory", func(c *Config) {
			c.Store.Path = ""
			c.Store.InMemory = true
		}, ""},
		{"bad nats url", func(c *Config) { c.Events.NATSURL = "http://nats:4222" }, "NATS_URL"},
		{"good nats url", func(c *Config) { c.Events.NATSURL = "nats://nats:4222" }, ""},
		{"nats server list", func(c *Config) { c.Events.NATSURL = "nats://a:4222, tls://b:4443" }, ""},
		{"nats server list with empty entry", func(c *Config) { c.Events.NATSURL = "nats://a:4222,," }, "NATS_URL"},
		{"nats bad port", func(c *Config) { c.Events.NATSURL = "nats://a:70000" }, "NATS_URL"},
		{"embedded nats", func(c *Config) { c.Events.EmbeddedNATS = true }, ""},
		{"embedded nats with external url", func(c *Config) {
			c.Events.EmbeddedNATS = true
			c.Events.NATSURL = "nats://nats:4222"
		}, "mutually exclusive"},
		{"embedded nats without port", func(c *Config) {
			c.Events.EmbeddedNATS = true
			c.Events.EmbeddedPort = 0
		}, "NATS_EMBEDDED_PORT"},
		{"nats url ignored when disabled", func(c *Config) {
			c.Events.Enabled = false
			c.Events.NATSURL = "http://nats:4222"
		}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "Port"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "Level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "Format"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestServerConfigAddr(t *testing.T) {
	t.Parallel()

	s := ServerConfig{Host: "127.0.0.1", Port: 8787}
	if got := s.Addr(); got != "127.0.0.1:8787" {
		t.Errorf("Addr() = %q", got)
	}
}
