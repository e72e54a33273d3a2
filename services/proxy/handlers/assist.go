// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the proxy's HTTP endpoints.
//
// The proxy fronts the assist API for browser clients: it injects the
// server-held bearer token, forwards SSE streams with per-chunk flushes,
// and keeps upstream error bodies from leaking internals.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/codelibs/intaste-go/pkg/assist"
	"github.com/codelibs/intaste-go/services/proxy/observability"
)

const tracerName = "github.com/codelibs/intaste-go/services/proxy"

// copyBufferSize is the chunk size for SSE pass-through copies. Small
// enough to keep first-event latency low, large enough to amortize
// syscalls.
const copyBufferSize = 4096

// errorBodyLimit bounds how much of an upstream error body is read.
const errorBodyLimit = 64 * 1024

// HTTPClient abstracts upstream execution for tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// AssistHandler proxies assist API endpoints.
//
// # Description
//
// Validates client requests, re-issues them upstream with the
// server-held token, and relays responses. The streaming endpoint
// copies raw SSE bytes with a flush per read so events reach the
// browser as they are produced; it never parses or rewrites upstream
// events.
type AssistHandler struct {
	upstreamURL   string
	token         string
	client        HTTPClient
	streamClient  HTTPClient
	streamTimeout time.Duration
}

// AssistHandlerConfig configures NewAssistHandler.
type AssistHandlerConfig struct {
	// UpstreamURL is the assist API root without a trailing slash.
	UpstreamURL string
	// Token is injected as the upstream bearer token.
	Token string
	// UpstreamTimeout bounds non-streaming upstream calls.
	UpstreamTimeout time.Duration
	// StreamTimeout is the ceiling on one SSE stream.
	StreamTimeout time.Duration
	// Client overrides both upstream transports (tests).
	Client HTTPClient
}

// NewAssistHandler builds the proxy handler.
func NewAssistHandler(cfg AssistHandlerConfig) *AssistHandler {
	h := &AssistHandler{
		upstreamURL:   cfg.UpstreamURL,
		token:         cfg.Token,
		streamTimeout: cfg.StreamTimeout,
	}
	if h.streamTimeout <= 0 {
		h.streamTimeout = 5 * time.Minute
	}
	if cfg.Client != nil {
		h.client = cfg.Client
		h.streamClient = cfg.Client
	} else {
		timeout := cfg.UpstreamTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		h.client = &http.Client{Timeout: timeout}
		h.streamClient = &http.Client{}
	}
	return h
}

// HandleQueryStream proxies POST /api/assist/query/stream.
//
// # Description
//
// Binds and validates the query request, opens the upstream SSE stream,
// and relays bytes until the upstream closes. Upstream failures before
// the first byte map to HTTP errors; failures after the stream is
// committed become a synthesized terminal SSE error event.
func (h *AssistHandler) HandleQueryStream(c *gin.Context) {
	endpoint := observability.EndpointQueryStream
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(c.Request.Context(), "proxy.assist.query_stream")
	defer span.End()

	start := time.Now()
	success := false
	if m := observability.DefaultMetrics; m != nil {
		defer func() {
			m.RecordRequest(endpoint, success)
			m.RecordStreamDuration(endpoint, time.Since(start).Seconds(), success)
		}()
	}

	req, ok := h.bindQueryRequest(c, endpoint, span)
	if !ok {
		return
	}
	span.SetAttributes(
		attribute.Int("query.length", len(req.Query)),
		attribute.Int("query.history_length", len(req.QueryHistory)),
	)

	ctx, cancel := context.WithTimeout(ctx, h.streamTimeout)
	defer cancel()

	traceID := ensureTraceID(c)
	upstreamReq, err := h.newUpstreamRequest(ctx, "/assist/query/stream", req, traceID)
	if err != nil {
		h.failJSON(c, endpoint, span, http.StatusInternalServerError, "PROXY_ERROR", "failed to build upstream request", err)
		return
	}
	upstreamReq.Header.Set("Accept", "text/event-stream")

	upstreamStart := time.Now()
	resp, err := h.streamClient.Do(upstreamReq)
	if err != nil {
		h.failJSON(c, endpoint, span, http.StatusBadGateway, "UPSTREAM_ERROR", "assist service unavailable", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()
	if m := observability.DefaultMetrics; m != nil {
		m.RecordUpstreamLatency(endpoint, time.Since(upstreamStart).Seconds())
	}

	if resp.StatusCode != http.StatusOK {
		h.relayUpstreamError(c, endpoint, span, resp)
		return
	}

	SetSSEHeaders(c.Writer)
	out, err := newSSEFlusher(c.Writer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "SSE setup failed")
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeStreamUnsupported)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": "PROXY_ERROR", "message": "streaming not supported"})
		return
	}

	if m := observability.DefaultMetrics; m != nil {
		m.StreamStarted(endpoint)
		defer m.StreamEnded(endpoint)
	}

	events, copyErr := h.copyStream(ctx, out, resp.Body)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordStreamEvents(endpoint, events)
	}
	span.SetAttributes(attribute.Int("stream.events", events))

	if copyErr != nil {
		span.RecordError(copyErr)
		switch {
		case errors.Is(copyErr, context.Canceled) || errors.Is(copyErr, errClientGone):
			// Client went away; nothing left to tell it.
			span.SetStatus(codes.Error, "client disconnected")
			if m := observability.DefaultMetrics; m != nil {
				m.RecordError(endpoint, observability.ErrorCodeClientDisconnect)
			}
			slog.Info("client disconnected mid-stream", "traceId", traceID, "events", events)
		default:
			span.SetStatus(codes.Error, "upstream stream failed")
			if m := observability.DefaultMetrics; m != nil {
				m.RecordError(endpoint, observability.ErrorCodeUpstream)
			}
			slog.Error("upstream stream failed", "traceId", traceID, "error", copyErr, "events", events)
			_ = out.WriteErrorEvent("UPSTREAM_ERROR", "The assist service was interrupted. Please try again.")
		}
		return
	}

	success = true
	span.SetStatus(codes.Ok, "stream completed")
	slog.Debug("stream proxied", "traceId", traceID, "events", events, "durationMs", time.Since(start).Milliseconds())
}

// HandleQuery proxies POST /api/assist/query.
func (h *AssistHandler) HandleQuery(c *gin.Context) {
	endpoint := observability.EndpointQuery
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(c.Request.Context(), "proxy.assist.query")
	defer span.End()

	success := false
	if m := observability.DefaultMetrics; m != nil {
		defer func() { m.RecordRequest(endpoint, success) }()
	}

	req, ok := h.bindQueryRequest(c, endpoint, span)
	if !ok {
		return
	}
	success = h.forwardJSON(c, ctx, endpoint, span, "/assist/query", req)
}

// HandleFeedback proxies POST /api/assist/feedback.
func (h *AssistHandler) HandleFeedback(c *gin.Context) {
	endpoint := observability.EndpointFeedback
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(c.Request.Context(), "proxy.assist.feedback")
	defer span.End()

	success := false
	if m := observability.DefaultMetrics; m != nil {
		defer func() { m.RecordRequest(endpoint, success) }()
	}

	var req assist.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.failJSON(c, endpoint, span, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body", err)
		return
	}
	if err := req.Validate(); err != nil {
		h.failJSON(c, endpoint, span, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), err)
		return
	}
	success = h.forwardJSON(c, ctx, endpoint, span, "/assist/feedback", &req)
}

// =============================================================================
// Internals
// =============================================================================

// errClientGone marks a write failure toward the proxy client.
var errClientGone = errors.New("client connection lost")

// bindQueryRequest binds and validates the shared query request body.
func (h *AssistHandler) bindQueryRequest(c *gin.Context, endpoint observability.Endpoint, span trace.Span) (*assist.QueryRequest, bool) {
	var req assist.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.failJSON(c, endpoint, span, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body", err)
		return nil, false
	}
	if err := req.Validate(); err != nil {
		h.failJSON(c, endpoint, span, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), err)
		return nil, false
	}
	return &req, true
}

// failJSON records a failure and answers the client with a structured
// error document.
func (h *AssistHandler) failJSON(c *gin.Context, endpoint observability.Endpoint, span trace.Span, status int, code, message string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, code)
	if m := observability.DefaultMetrics; m != nil {
		switch code {
		case "VALIDATION_ERROR":
			m.RecordError(endpoint, observability.ErrorCodeValidation)
		case "UPSTREAM_ERROR":
			m.RecordError(endpoint, observability.ErrorCodeUpstream)
		default:
			m.RecordError(endpoint, observability.ErrorCodeInternal)
		}
	}
	slog.Warn("proxy request failed", "endpoint", string(endpoint), "code", code, "error", err)
	c.JSON(status, gin.H{"code": code, "message": message})
}

// relayUpstreamError mirrors an upstream non-200 before any streaming
// started. Structured upstream error bodies pass through; anything else
// is replaced with a generic document so internals stay hidden.
func (h *AssistHandler) relayUpstreamError(c *gin.Context, endpoint observability.Endpoint, span trace.Span, resp *http.Response) {
	span.SetStatus(codes.Error, fmt.Sprintf("upstream status %d", resp.StatusCode))
	span.SetAttributes(attribute.Int("upstream.status", resp.StatusCode))
	if m := observability.DefaultMetrics; m != nil {
		m.RecordError(endpoint, observability.ErrorCodeUpstreamStatus)
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	var doc struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	}
	if json.Unmarshal(body, &doc) == nil && doc.Code != "" {
		c.JSON(resp.StatusCode, doc)
		return
	}
	c.JSON(resp.StatusCode, gin.H{
		"code":    assist.CodeHTTPError,
		"message": fmt.Sprintf("HTTP %d", resp.StatusCode),
	})
}

// forwardJSON relays a validated request body upstream and mirrors the
// JSON response. Returns true when the upstream answered successfully.
func (h *AssistHandler) forwardJSON(c *gin.Context, ctx context.Context, endpoint observability.Endpoint, span trace.Span, path string, body any) bool {
	traceID := ensureTraceID(c)
	upstreamReq, err := h.newUpstreamRequest(ctx, path, body, traceID)
	if err != nil {
		h.failJSON(c, endpoint, span, http.StatusInternalServerError, "PROXY_ERROR", "failed to build upstream request", err)
		return false
	}

	start := time.Now()
	resp, err := h.client.Do(upstreamReq)
	if err != nil {
		h.failJSON(c, endpoint, span, http.StatusBadGateway, "UPSTREAM_ERROR", "assist service unavailable", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	if m := observability.DefaultMetrics; m != nil {
		m.RecordUpstreamLatency(endpoint, time.Since(start).Seconds())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.relayUpstreamError(c, endpoint, span, resp)
		return false
	}

	span.SetStatus(codes.Ok, "forwarded")
	c.DataFromReader(resp.StatusCode, resp.ContentLength, "application/json", resp.Body, nil)
	return true
}

// newUpstreamRequest builds an authorized upstream POST.
func (h *AssistHandler) newUpstreamRequest(ctx context.Context, path string, body any, traceID string) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal upstream body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.upstreamURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set(assist.HeaderTraceID, traceID)
	return req, nil
}

// copyStream relays SSE bytes from upstream to the client, flushing
// every read. Returns the number of complete SSE messages forwarded.
func (h *AssistHandler) copyStream(ctx context.Context, out *sseFlusher, in io.Reader) (int, error) {
	buf := make([]byte, copyBufferSize)
	events := 0

	for {
		select {
		case <-ctx.Done():
			return events, ctx.Err()
		default:
		}

		n, readErr := in.Read(buf)
		if n > 0 {
			events += bytes.Count(buf[:n], []byte("\n\n"))
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return events, fmt.Errorf("%w: %v", errClientGone, writeErr)
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return events, nil
			}
			if ctx.Err() != nil {
				return events, ctx.Err()
			}
			return events, fmt.Errorf("read upstream: %w", readErr)
		}
	}
}

// ensureTraceID propagates the client's trace id or mints one.
func ensureTraceID(c *gin.Context) string {
	if id := c.GetHeader(assist.HeaderTraceID); id != "" {
		return id
	}
	return uuid.NewString()
}
