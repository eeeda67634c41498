// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package config

import (
	"fmt"

	"github.com/tomtom215/healthsync/internal/validation"
)

// Validate checks that required configuration is present and valid.
// Struct tags are checked first, then the cross-field rules.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	if err := c.validateSync(); err != nil {
		return err
	}

	if err := c.validateUpload(); err != nil {
		return err
	}

	if err := c.validateStore(); err != nil {
		return err
	}

	return c.validateEvents()
}

// validateSync checks the relationships between the pipeline durations.
func (c *Config) validateSync() error {
	if c.Sync.ConflictTolerance < 0 {
		return fmt.Errorf("SYNC_CONFLICT_TOLERANCE must not be negative")
	}
	if c.Sync.CategoryTimeout > c.Sync.ExpirationWindow {
		return fmt.Errorf("SYNC_CATEGORY_TIMEOUT (%s) must not exceed SYNC_EXPIRATION_WINDOW (%s)",
			c.Sync.CategoryTimeout, c.Sync.ExpirationWindow)
	}
	if c.Sync.ExpirationWindow >= c.Sync.RescheduleOffset {
		return fmt.Errorf("SYNC_EXPIRATION_WINDOW (%s) must be shorter than SYNC_RESCHEDULE_OFFSET (%s)",
			c.Sync.ExpirationWindow, c.Sync.RescheduleOffset)
	}
	return nil
}

func (c *Config) validateUpload() error {
	if err := validateUploadBaseURL(c.Upload.BaseURL); err != nil {
		return fmt.Errorf("UPLOAD_BASE_URL is invalid: %w", err)
	}
	return nil
}

func (c *Config) validateStore() error {
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required unless STORE_IN_MEMORY=true")
	}
	return nil
}

// validateEvents validates the NATS URL when one is configured.
func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	if c.Events.EmbeddedNATS {
		if c.Events.NATSURL != "" {
			return fmt.Errorf("NATS_URL and NATS_EMBEDDED=true are mutually exclusive")
		}
		if c.Events.EmbeddedPort == 0 {
			return fmt.Errorf("NATS_EMBEDDED_PORT must be set, or -1 for a random port")
		}
		return nil
	}
	if c.Events.NATSURL == "" {
		return nil
	}
	if err := validateNATSServers(c.Events.NATSURL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	return nil
}
