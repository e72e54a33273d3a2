// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command intaste-proxy starts the assist SSE proxy.
//
// The proxy fronts the Intaste assist API for browser clients: it holds
// the API token server-side and relays streaming answers unbuffered.
//
// # Environment Variables
//
//   - ASSIST_API_URL: Upstream assist API root (required)
//   - ASSIST_API_TOKEN: Bearer token for upstream requests (required)
//   - INTASTE_PROXY_LISTEN_ADDR: Bind address (default ":8700")
//   - INTASTE_PROXY_STREAM_TIMEOUT: Per-stream ceiling (default "5m")
//   - INTASTE_PROXY_LOG_LEVEL: debug|info|warn|error (default "info")
//
// # Usage
//
//	go build -o intaste-proxy ./cmd/intaste-proxy
//	ASSIST_API_URL=http://intaste-api:8080 ASSIST_API_TOKEN=... ./intaste-proxy
package main

import (
	"log"

	"github.com/codelibs/intaste-go/services/proxy"
	"github.com/codelibs/intaste-go/services/proxy/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	svc, err := proxy.New(cfg)
	if err != nil {
		log.Fatalf("failed to create proxy: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("proxy error: %v", err)
	}
}
