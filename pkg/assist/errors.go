// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrNoToken is returned before any network activity when the client has
// no API token configured.
var ErrNoToken = errors.New("assist: no API token configured")

// ErrNoBaseURL is returned before any network activity when the client
// has no base URL configured.
var ErrNoBaseURL = errors.New("assist: no base URL configured")

// CodeHTTPError is the synthesized code for non-2xx responses whose body
// is not a structured error document.
const CodeHTTPError = "HTTP_ERROR"

// APIError is a structured error response from the assist API.
//
// # Description
//
// Carries the HTTP status plus the server's stable error code and
// display message. When the response body cannot be parsed as an error
// document, Code is CodeHTTPError and Message is "HTTP <status>". Use
// errors.As to recover it from wrapped errors.
type APIError struct {
	Status  int            `json:"-"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assist: %s (%d): %s", e.Code, e.Status, e.Message)
}

// newAPIError builds an APIError for a non-2xx response.
//
// The body is read in full (bounded) and parsed as {code, message,
// details}; unparseable or codeless bodies fall back to the synthesized
// HTTP_ERROR form so callers always see a usable code and message.
func newAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{
		Status:  resp.StatusCode,
		Code:    CodeHTTPError,
		Message: fmt.Sprintf("HTTP %d", resp.StatusCode),
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil || len(body) == 0 {
		return apiErr
	}

	var parsed struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	}
	if json.Unmarshal(body, &parsed) != nil || parsed.Code == "" {
		return apiErr
	}

	apiErr.Code = parsed.Code
	if parsed.Message != "" {
		apiErr.Message = parsed.Message
	}
	apiErr.Details = parsed.Details
	return apiErr
}

// StreamError is a terminal error event surfaced through the stream
// itself rather than the HTTP layer.
type StreamError struct {
	Code    string
	Message string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("assist: stream error %s: %s", e.Code, e.Message)
}
