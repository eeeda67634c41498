// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package logging

import (
	"github.com/rs/zerolog"
)

// NATSLogger implements the nats-server logger interface on top of zerolog.
// Fatalf logs at error level and leaves exiting to the caller.
type NATSLogger struct {
	logger zerolog.Logger
}

// NewNATSLogger returns a NATS server logger tagged with component=nats.
func NewNATSLogger() *NATSLogger {
	return &NATSLogger{logger: Component("nats")}
}

// NewNATSLoggerWithLogger wraps a specific zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewNATSLoggerWithLogger(logger zerolog.Logger) *NATSLogger {
	return &NATSLogger{logger: logger}
}

func (n *NATSLogger) Noticef(format string, v ...interface{}) { n.logger.Info().Msgf(format, v...) }
func (n *NATSLogger) Warnf(format string, v ...interface{})   { n.logger.Warn().Msgf(format, v...) }
func (n *NATSLogger) Fatalf(format string, v ...interface{})  { n.logger.Error().Msgf(format, v...) }
func (n *NATSLogger) Errorf(format string, v ...interface{})  { n.logger.Error().Msgf(format, v...) }
func (n *NATSLogger) Debugf(format string, v ...interface{})  { n.logger.Debug().Msgf(format, v...) }
func (n *NATSLogger) Tracef(format string, v ...interface{})  { n.logger.Trace().Msgf(format, v...) }
