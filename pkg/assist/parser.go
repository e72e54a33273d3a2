// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assist

import (
	"bytes"
	"strings"
)

// messageDelimiter separates SSE messages on the wire.
var messageDelimiter = []byte("\n\n")

// =============================================================================
// SSE decoder
// =============================================================================

// sseDecoder incrementally extracts typed events from raw SSE bytes.
//
// # Description
//
// Buffers incoming bytes and splits on the blank-line message delimiter.
// Because framing operates on bytes, a read boundary may fall anywhere,
// including inside a multi-byte UTF-8 sequence; the partial tail stays in
// the buffer until its message completes. A message produces an event
// only when it carries both an event name and JSON-decodable data;
// comment lines and malformed messages are dropped silently.
//
// # Limitations
//
//   - Not safe for concurrent use. Each stream owns one decoder.
//
// # Assumptions
//
//   - The server terminates messages with "\n\n" ("\r\n" line endings
//     are tolerated).
type sseDecoder struct {
	buf []byte
}

// Feed appends raw bytes and returns all newly completed events.
//
// Carriage returns are dropped on ingest so CRLF streams frame on the
// same "\n\n" delimiter. Raw CR bytes cannot occur inside the JSON
// payload lines (JSON forbids unescaped control characters), so the
// filtering is lossless.
func (d *sseDecoder) Feed(p []byte) []Event {
	for _, b := range p {
		if b != '\r' {
			d.buf = append(d.buf, b)
		}
	}

	var events []Event
	for {
		idx := bytes.Index(d.buf, messageDelimiter)
		if idx < 0 {
			break
		}
		raw := string(d.buf[:idx])
		d.buf = d.buf[idx+len(messageDelimiter):]

		if ev, ok := parseMessage(raw); ok {
			events = append(events, ev)
		}
	}
	return events
}

// parseMessage decodes one complete SSE message into a typed event.
//
// Multiple data lines are joined with newlines per the SSE format.
// Messages missing either field, carrying an unknown event name, or
// holding undecodable JSON return ok=false.
func parseMessage(raw string) (Event, bool) {
	var name string
	var data []string

	for _, line := range strings.Split(raw, "\n") {
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, ":"):
			// Comment / keepalive line.
			continue
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimPrefix(strings.TrimPrefix(line, "event:"), " ")
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	if name == "" || len(data) == 0 {
		return Event{}, false
	}
	return decodeEvent(name, []byte(strings.Join(data, "\n")))
}
