// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrStreamingNotSupported indicates the response writer cannot flush,
// so SSE cannot work through it.
var ErrStreamingNotSupported = errors.New("response writer does not support streaming")

// SetSSEHeaders prepares a response for Server-Sent Events.
//
// no-transform keeps intermediaries from buffering or re-encoding the
// stream; X-Accel-Buffering disables nginx proxy buffering.
func SetSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// sseFlusher pairs a writer with its flusher for immediate delivery.
type sseFlusher struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEFlusher verifies the writer supports streaming.
func newSSEFlusher(w http.ResponseWriter) (*sseFlusher, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingNotSupported
	}
	return &sseFlusher{w: w, flusher: flusher}, nil
}

// Write forwards raw upstream bytes and flushes them to the client.
func (s *sseFlusher) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if n > 0 {
		s.flusher.Flush()
	}
	return n, err
}

// WriteErrorEvent synthesizes a terminal SSE error message. Used when
// the upstream dies mid-stream and the HTTP status is already committed.
func (s *sseFlusher) WriteErrorEvent(code, message string) error {
	payload, err := json.Marshal(map[string]string{"code": code, "message": message})
	if err != nil {
		return fmt.Errorf("marshal error event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: error\ndata: %s\n\n", payload); err != nil {
		return fmt.Errorf("write error event: %w", err)
	}
	s.flusher.Flush()
	return nil
}
