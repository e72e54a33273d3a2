// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assist

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// MaxQueryLength is the server-enforced bound on a single query string.
const MaxQueryLength = 4096

// MaxHistoryEntries bounds the conversational context sent with a query.
const MaxHistoryEntries = 10

var validate = validator.New()

// QueryOptions tunes answer composition.
type QueryOptions struct {
	// MaxSuggested caps the number of follow-up questions (server
	// default 3).
	MaxSuggested int `json:"max_suggested,omitempty" validate:"omitempty,min=0,max=3"`
	// Language selects display-text language (e.g. "en", "ja").
	Language string `json:"language,omitempty" validate:"omitempty,len=2"`
}

// QueryRequest is the body of both query endpoints.
type QueryRequest struct {
	Query        string        `json:"query" validate:"required,min=1,max=4096"`
	SessionID    string        `json:"session_id,omitempty" validate:"omitempty,uuid4"`
	QueryHistory []string      `json:"query_history,omitempty" validate:"omitempty,max=10,dive,max=4096"`
	Options      *QueryOptions `json:"options,omitempty"`
}

// Validate checks the request against the server's documented limits so
// malformed requests fail locally instead of with a 422 round trip.
func (r *QueryRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid query request: %w", err)
	}
	if r.Options != nil {
		if err := validate.Struct(r.Options); err != nil {
			return fmt.Errorf("invalid query options: %w", err)
		}
	}
	return nil
}

// QueryResponse is the non-streaming answer envelope.
type QueryResponse struct {
	Answer    Answer     `json:"answer"`
	Citations []Citation `json:"citations"`
	Session   Session    `json:"session"`
	Timings   Timings    `json:"timings"`
	Notice    *Notice    `json:"notice,omitempty"`
}

// Rating values accepted by the feedback endpoint.
const (
	RatingUp   = "up"
	RatingDown = "down"
)

// FeedbackRequest records a thumbs rating for one conversation turn.
type FeedbackRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid4"`
	Turn      int    `json:"turn" validate:"required,min=1"`
	Rating    string `json:"rating" validate:"required,oneof=up down"`
	Comment   string `json:"comment,omitempty" validate:"omitempty,max=500"`
}

// Validate checks the feedback payload against server limits.
func (r *FeedbackRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid feedback request: %w", err)
	}
	return nil
}
