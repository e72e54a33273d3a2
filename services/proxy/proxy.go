// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package proxy assembles the assist SSE proxy service.
//
// The proxy sits between browser frontends and the assist API. It holds
// the API token server-side, validates request shapes, relays SSE
// streams without buffering, and exposes health and metrics endpoints.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codelibs/intaste-go/pkg/logging"
	"github.com/codelibs/intaste-go/services/proxy/config"
	"github.com/codelibs/intaste-go/services/proxy/handlers"
	"github.com/codelibs/intaste-go/services/proxy/observability"
	"github.com/codelibs/intaste-go/services/proxy/routes"
)

// shutdownGrace is how long in-flight streams get to finish on SIGTERM.
const shutdownGrace = 15 * time.Second

// Service is a fully wired proxy ready to Run.
type Service struct {
	cfg         *config.Config
	logger      *logging.Logger
	engine      *gin.Engine
	stopTracing func(context.Context)
}

// New builds the service from config. Fails fast on unusable
// configuration so a misdeployed proxy never accepts traffic.
func New(cfg *config.Config) (*Service, error) {
	if cfg.AssistAPIURL == "" {
		return nil, errors.New("proxy: ASSIST_API_URL is required")
	}
	if cfg.AssistAPIToken == "" {
		return nil, errors.New("proxy: ASSIST_API_TOKEN is required")
	}

	logger := logging.New(logging.Config{
		Level:   parseLevel(cfg.LogLevel),
		LogDir:  cfg.LogDir,
		Service: "proxy",
		JSON:    cfg.LogJSON,
	})

	observability.InitMetrics()

	stopTracing, err := initTracer(context.Background(), cfg.OTELEndpoint)
	if err != nil {
		return nil, fmt.Errorf("proxy: init tracer: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	assistHandler := handlers.NewAssistHandler(handlers.AssistHandlerConfig{
		UpstreamURL:     cfg.AssistAPIURL,
		Token:           cfg.AssistAPIToken,
		UpstreamTimeout: cfg.UpstreamTimeout,
		StreamTimeout:   cfg.StreamTimeout,
	})
	routes.SetupRoutes(engine, assistHandler)

	return &Service{cfg: cfg, logger: logger, engine: engine, stopTracing: stopTracing}, nil
}

// Run serves until SIGINT/SIGTERM, then drains in-flight streams.
func (s *Service) Run() error {
	defer func() { _ = s.logger.Close() }()
	defer s.stopTracing(context.Background())

	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("proxy listening",
			"addr", s.cfg.ListenAddr,
			"upstream", s.cfg.AssistAPIURL,
			"token_present", s.cfg.AssistAPIToken != "",
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("proxy server: %w", err)
	case sig := <-stop:
		s.logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("proxy shutdown: %w", err)
	}
	return nil
}

// Engine exposes the router for tests.
func (s *Service) Engine() *gin.Engine {
	return s.engine
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
