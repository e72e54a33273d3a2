// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads proxy configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the proxy's environment-driven configuration.
//
// The assist API token is held server-side only; it is injected into
// upstream requests and never surfaces to proxy clients.
type Config struct {
	// ListenAddr is the bind address for the HTTP server.
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8700"`

	// AssistAPIURL is the upstream API root, e.g. "http://intaste-api:8080".
	AssistAPIURL string `envconfig:"ASSIST_API_URL" required:"true"`

	// AssistAPIToken is the bearer token for upstream requests.
	AssistAPIToken string `envconfig:"ASSIST_API_TOKEN" required:"true"`

	// UpstreamTimeout bounds non-streaming upstream calls. Streams are
	// bounded by StreamTimeout instead.
	UpstreamTimeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"60s"`

	// StreamTimeout is the hard ceiling on one SSE stream.
	StreamTimeout time.Duration `envconfig:"STREAM_TIMEOUT" default:"5m"`

	// OTELEndpoint is the OTLP gRPC collector address for trace export.
	// The client dials lazily, so an absent collector only drops spans.
	OTELEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// LogDir enables file logging when set.
	LogDir string `envconfig:"LOG_DIR"`

	// LogJSON switches stderr logs to JSON.
	LogJSON bool `envconfig:"LOG_JSON"`
}

// Load reads configuration from INTASTE_PROXY_* environment variables
// and fails fast on missing required values.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("intaste_proxy", &cfg); err != nil {
		return nil, fmt.Errorf("load proxy config: %w", err)
	}
	cfg.AssistAPIURL = strings.TrimRight(cfg.AssistAPIURL, "/")
	return &cfg, nil
}
