// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// validateUploadBaseURL checks the remote service root that UPLOAD_BATCH_PATH
// is appended to. The bearer token goes out with every batch, so plain http
// is accepted for loopback hosts only.
func validateUploadBaseURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}

	if u.Hostname() == "" {
		return fmt.Errorf("host is required (e.g., https://health.example.com)")
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !isLoopback(u.Hostname()) {
			return fmt.Errorf("http is only allowed for loopback hosts, use https for %s", u.Host)
		}
	default:
		return fmt.Errorf("scheme must be https, or http for a loopback host, got: %q", u.Scheme)
	}

	if u.User != nil {
		return fmt.Errorf("credentials in the URL are not allowed, set UPLOAD_TOKEN instead")
	}
	if u.Path != "" && u.Path != "/" {
		return fmt.Errorf("should be base URL only, move %s into UPLOAD_BATCH_PATH", u.Path)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("should not contain a query or fragment")
	}
	return nil
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// validateNATSServers checks NATS_URL in the comma-separated server list form
// that nats.Connect accepts.
func validateNATSServers(rawURL string) error {
	for _, server := range strings.Split(rawURL, ",") {
		server = strings.TrimSpace(server)
		if server == "" {
			return fmt.Errorf("empty entry in server list %q", rawURL)
		}
		u, err := url.Parse(server)
		if err != nil {
			return fmt.Errorf("parse %q: %w", server, err)
		}
		switch u.Scheme {
		case "nats", "tls", "ws", "wss":
		default:
			return fmt.Errorf("%s: scheme must be nats, tls, ws, or wss, got: %q", server, u.Scheme)
		}
		if u.Hostname() == "" {
			return fmt.Errorf("%s: host is required (e.g., nats://localhost:4222)", server)
		}
		if p := u.Port(); p != "" {
			if n, err := strconv.Atoi(p); err != nil || n < 1 || n > 65535 {
				return fmt.Errorf("%s: invalid port %q", server, p)
			}
		}
	}
	return nil
}
