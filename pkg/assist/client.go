// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// HeaderTraceID carries a per-request correlation id end to end.
	HeaderTraceID = "X-Intaste-Trace-Id"

	streamPath   = "/assist/query/stream"
	queryPath    = "/assist/query"
	feedbackPath = "/assist/feedback"

	// defaultTimeout bounds non-streaming calls. Streaming requests get
	// no overall deadline; the caller's context governs them.
	defaultTimeout = 60 * time.Second
)

// =============================================================================
// INTERFACES
// =============================================================================

// HTTPClient abstracts HTTP execution for mock injection in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// =============================================================================
// CLIENT
// =============================================================================

// Config configures an assist API client.
type Config struct {
	// BaseURL is the API root, e.g. "https://search.example.com/api".
	BaseURL string
	// Token is the bearer token for the Authorization header. The
	// client refuses to issue requests without one.
	Token string
	// HTTPClient overrides the transport. Nil selects a default client
	// with a 60s timeout for non-streaming calls and no deadline for
	// streams.
	HTTPClient HTTPClient
}

// Client talks to the Intaste assist API.
//
// # Description
//
// Provides the streaming query endpoint (typed SSE events via a
// handler), the non-streaming query endpoint, and turn feedback. A
// missing token or base URL fails before any network activity. All
// methods are safe for concurrent use.
//
// # Examples
//
//	c := assist.NewClient(assist.Config{BaseURL: url, Token: tok})
//	err := c.QueryStream(ctx, &assist.QueryRequest{Query: "setup guide"},
//	    func(ev assist.Event) error { ...; return nil })
type Client struct {
	baseURL   string
	token     string
	http      HTTPClient
	streaming HTTPClient
	reader    StreamReader
}

// NewClient builds a client from cfg. Configuration problems surface on
// the first call, not here, so construction never fails.
func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		reader:  NewStreamReader(),
	}
	if cfg.HTTPClient != nil {
		c.http = cfg.HTTPClient
		c.streaming = cfg.HTTPClient
	} else {
		c.http = &http.Client{Timeout: defaultTimeout}
		c.streaming = &http.Client{}
	}
	return c
}

// checkConfig rejects unusable configuration before any request is built.
func (c *Client) checkConfig() error {
	if c.token == "" {
		return ErrNoToken
	}
	if c.baseURL == "" {
		return ErrNoBaseURL
	}
	return nil
}

// QueryStream issues a streaming query and dispatches each event to
// handler in arrival order.
//
// # Description
//
// POSTs to /assist/query/stream and reads the SSE response. Returns nil
// after a terminal complete or error event (a stream-level error event
// is delivered to the handler, not converted to a Go error; the caller
// decides how to surface it). Non-2xx responses return *APIError.
// Context cancellation aborts the stream and closes the connection.
//
// # Inputs
//
//   - ctx: Governs the whole exchange including the read loop.
//   - req: Validated query request.
//   - handler: Receives each event; a non-nil return aborts the stream.
//
// # Outputs
//
//   - error: ErrNoToken/ErrNoBaseURL, validation error, *APIError,
//     transport error, handler error, or ErrTruncatedStream.
func (c *Client) QueryStream(ctx context.Context, req *QueryRequest, handler EventHandler) error {
	if err := c.checkConfig(); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	httpReq, traceID, err := c.newRequest(ctx, streamPath, req)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	slog.Debug("starting assist stream",
		"traceId", traceID,
		"queryLen", len(req.Query),
		"historyLen", len(req.QueryHistory),
	)

	resp, err := c.streaming.Do(httpReq)
	if err != nil {
		return fmt.Errorf("execute stream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}

	if err := c.reader.Read(ctx, resp.Body, handler); err != nil {
		return err
	}

	slog.Debug("assist stream finished", "traceId", traceID)
	return nil
}

// Query issues a non-streaming query and returns the full answer.
func (c *Client) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	if err := c.checkConfig(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	httpReq, _, err := c.newRequest(ctx, queryPath, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute query request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp)
	}

	var out QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	return &out, nil
}

// Feedback records an up/down rating for a completed turn.
func (c *Client) Feedback(ctx context.Context, req *FeedbackRequest) error {
	if err := c.checkConfig(); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	httpReq, _, err := c.newRequest(ctx, feedbackPath, req)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("execute feedback request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// newRequest builds an authorized JSON POST with a fresh trace id.
func (c *Client) newRequest(ctx context.Context, path string, body any) (*http.Request, string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	traceID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set(HeaderTraceID, traceID)
	return httpReq, traceID, nil
}
