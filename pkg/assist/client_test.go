// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assist

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trippedClient fails the test if any request reaches it.
type trippedClient struct{ t *testing.T }

func (c *trippedClient) Do(*http.Request) (*http.Response, error) {
	c.t.Fatal("network must not be touched")
	return nil, nil
}

func TestClient_NoTokenFailsBeforeNetwork(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://example.com/api", HTTPClient: &trippedClient{t: t}})

	err := c.QueryStream(context.Background(), &QueryRequest{Query: "q"}, func(Event) error { return nil })
	require.ErrorIs(t, err, ErrNoToken)

	_, err = c.Query(context.Background(), &QueryRequest{Query: "q"})
	require.ErrorIs(t, err, ErrNoToken)
}

func TestClient_NoBaseURLFailsBeforeNetwork(t *testing.T) {
	c := NewClient(Config{Token: "tok", HTTPClient: &trippedClient{t: t}})
	err := c.QueryStream(context.Background(), &QueryRequest{Query: "q"}, func(Event) error { return nil })
	require.ErrorIs(t, err, ErrNoBaseURL)
}

func TestClient_ValidationFailsBeforeNetwork(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://example.com", Token: "tok", HTTPClient: &trippedClient{t: t}})

	cases := []*QueryRequest{
		{Query: ""},
		{Query: strings.Repeat("x", MaxQueryLength+1)},
		{Query: "q", SessionID: "not-a-uuid"},
		{Query: "q", QueryHistory: make([]string, MaxHistoryEntries+1)},
	}
	for _, req := range cases {
		err := c.QueryStream(context.Background(), req, func(Event) error { return nil })
		assert.Error(t, err)
	}
}

func TestClient_QueryStream(t *testing.T) {
	var gotAuth, gotAccept, gotTrace string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotTrace = r.Header.Get(HeaderTraceID)

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(canonicalStream()))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Token: "secret"})

	var answer strings.Builder
	var complete *CompletePayload
	err := c.QueryStream(context.Background(), &QueryRequest{Query: "hello"}, func(ev Event) error {
		switch ev.Kind {
		case EventChunk:
			answer.WriteString(ev.Chunk.Text)
		case EventComplete:
			complete = ev.Complete
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "text/event-stream", gotAccept)
	assert.NotEmpty(t, gotTrace)
	assert.Equal(t, "Hello world", answer.String())
	require.NotNil(t, complete)
	assert.Equal(t, "s1", complete.Session.ID)
}

func TestClient_UnparseableErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<html>Internal Server Error</html>"))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Token: "tok"})
	err := c.QueryStream(context.Background(), &QueryRequest{Query: "q"}, func(Event) error { return nil })

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, CodeHTTPError, apiErr.Code)
	assert.Equal(t, "HTTP 500", apiErr.Message)
}

func TestClient_StructuredErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"code":"RATE_LIMITED","message":"Too many requests","details":{"retry_after":30}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Token: "tok"})
	_, err := c.Query(context.Background(), &QueryRequest{Query: "q"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, "RATE_LIMITED", apiErr.Code)
	assert.Equal(t, "Too many requests", apiErr.Message)
	assert.EqualValues(t, 30, apiErr.Details["retry_after"])
}

func TestClient_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assist/query", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"answer":{"text":"full answer","suggested_questions":["q1"]},` +
			`"citations":[{"id":1,"title":"T","url":"https://e.com"}],` +
			`"session":{"id":"abc","turn":2},` +
			`"timings":{"llm_ms":5,"search_ms":6,"total_ms":11}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Token: "tok"})
	resp, err := c.Query(context.Background(), &QueryRequest{Query: "q"})
	require.NoError(t, err)

	assert.Equal(t, "full answer", resp.Answer.Text)
	assert.Equal(t, 2, resp.Session.Turn)
	require.Len(t, resp.Citations, 1)
	assert.Equal(t, "T", resp.Citations[0].Title)
}

func TestClient_Feedback(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Token: "tok"})
	err := c.Feedback(context.Background(), &FeedbackRequest{
		SessionID: "0a418a2e-8bf2-4a52-a3b3-9e80f2f640a1",
		Turn:      1,
		Rating:    RatingUp,
	})
	require.NoError(t, err)
	assert.Equal(t, "/assist/feedback", gotPath)
}

func TestClient_FeedbackRejectsBadRating(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://example.com", Token: "tok", HTTPClient: &trippedClient{t: t}})
	err := c.Feedback(context.Background(), &FeedbackRequest{
		SessionID: "0a418a2e-8bf2-4a52-a3b3-9e80f2f640a1",
		Turn:      1,
		Rating:    "sideways",
	})
	assert.Error(t, err)
}

func TestClient_StreamErrorEventIsDelivered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("event: error\ndata: {\"code\":\"SERVICE_ERROR\",\"message\":\"Service temporarily unavailable. Please try again later.\"}\n\n"))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Token: "tok"})
	var got *ErrorPayload
	err := c.QueryStream(context.Background(), &QueryRequest{Query: "q"}, func(ev Event) error {
		if ev.Kind == EventError {
			got = ev.Error
		}
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "SERVICE_ERROR", got.Code)
}

func TestClient_ContextCancellationAbortsStream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- NewClient(Config{BaseURL: srv.URL, Token: "tok"}).
			QueryStream(ctx, &QueryRequest{Query: "q"}, func(Event) error { return nil })
	}()

	cancel()
	err := <-errCh
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || strings.Contains(err.Error(), "context canceled"),
		"expected cancellation error, got %v", err)
}
