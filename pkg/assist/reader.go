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
	"fmt"
	"io"
)

// readBufferSize is the per-read chunk size for stream consumption.
const readBufferSize = 4096

// ErrTruncatedStream indicates the connection closed before a terminal
// (complete or error) event arrived.
var ErrTruncatedStream = errors.New("assist: stream ended without a terminal event")

// EventHandler consumes one decoded stream event. Returning a non-nil
// error aborts the stream and propagates the error to the caller.
type EventHandler func(Event) error

// StreamReader consumes an SSE byte stream and dispatches typed events.
//
// # Description
//
// Read pulls bytes from r, frames them into SSE messages, and invokes
// the handler for each decodable event in arrival order. It returns nil
// after a terminal event, ctx.Err() on cancellation, the handler's error
// if the handler aborts, and ErrTruncatedStream when the stream ends
// early.
//
// # Limitations
//
//   - A blocked Read on r is released by cancellation only when r is
//     tied to the same context (true for HTTP response bodies created
//     with NewRequestWithContext).
type StreamReader interface {
	Read(ctx context.Context, r io.Reader, handler EventHandler) error
}

// NewStreamReader returns the default SSE stream reader.
func NewStreamReader() StreamReader {
	return &sseStreamReader{}
}

type sseStreamReader struct{}

// Compile-time interface check.
var _ StreamReader = (*sseStreamReader)(nil)

func (s *sseStreamReader) Read(ctx context.Context, r io.Reader, handler EventHandler) error {
	dec := &sseDecoder{}
	buf := make([]byte, readBufferSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			for _, ev := range dec.Feed(buf[:n]) {
				if err := handler(ev); err != nil {
					return err
				}
				if ev.IsTerminal() {
					return nil
				}
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				// A clean close without complete/error still means the
				// answer is unusable.
				return ErrTruncatedStream
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read stream: %w", readErr)
		}
	}
}
