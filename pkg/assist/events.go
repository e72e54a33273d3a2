// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package assist is the Go client SDK for the Intaste assist API.
//
// It provides an HTTP client for the streaming and non-streaming query
// endpoints, an SSE reader that turns the wire stream into typed events,
// and the request/response types shared with the server.
package assist

import "encoding/json"

// ============================================================================
// Event kinds
// ============================================================================

// EventKind discriminates the assist stream event union.
type EventKind string

const (
	EventStart     EventKind = "start"
	EventStatus    EventKind = "status"
	EventIntent    EventKind = "intent"
	EventCitations EventKind = "citations"
	EventChunk     EventKind = "chunk"
	EventRelevance EventKind = "relevance"
	EventRetry     EventKind = "retry"
	EventComplete  EventKind = "complete"
	EventError     EventKind = "error"
)

// Phase identifies a pipeline stage reported by status events.
type Phase string

const (
	PhaseIntent    Phase = "intent"
	PhaseSearch    Phase = "search"
	PhaseRelevance Phase = "relevance"
	PhaseCompose   Phase = "compose"
)

// ============================================================================
// Shared data types
// ============================================================================

// Citation is one search hit backing the composed answer.
//
// IDs are 1-based and stable within a single response; the answer text
// references them as [1], [2], ... markers.
type Citation struct {
	ID             int            `json:"id"`
	Title          string         `json:"title"`
	Snippet        string         `json:"snippet,omitempty"`
	URL            string         `json:"url"`
	Score          *float64       `json:"score,omitempty"`
	RelevanceScore *float64       `json:"relevance_score,omitempty"`
	Meta           map[string]any `json:"meta,omitempty"`
}

// Session identifies a conversation and its turn counter.
type Session struct {
	ID   string `json:"id"`
	Turn int    `json:"turn"`
}

// Answer is the composed answer with optional follow-up suggestions.
type Answer struct {
	Text               string   `json:"text"`
	SuggestedQuestions []string `json:"suggested_questions,omitempty"`
}

// Timings reports server-side latency for each pipeline stage, in
// milliseconds. Intent and compose are only present on streaming
// completions.
type Timings struct {
	LLMMs     int `json:"llm_ms"`
	SearchMs  int `json:"search_ms"`
	TotalMs   int `json:"total_ms"`
	IntentMs  int `json:"intent_ms,omitempty"`
	ComposeMs int `json:"compose_ms,omitempty"`
}

// Notice flags a degraded (fallback) answer and the reason for it.
type Notice struct {
	Fallback bool   `json:"fallback"`
	Reason   string `json:"reason,omitempty"`
}

// ============================================================================
// Event payloads
// ============================================================================

// StartPayload opens a stream. The message is display text in the
// requested language.
type StartPayload struct {
	Message string `json:"message"`
	Query   string `json:"query"`
}

// StatusPayload announces a pipeline phase transition.
type StatusPayload struct {
	Phase Phase `json:"phase"`
}

// IntentPayload carries the normalized query produced by intent
// extraction, along with optional search filters and follow-up questions.
type IntentPayload struct {
	NormalizedQuery string         `json:"normalized_query"`
	Filters         map[string]any `json:"filters,omitempty"`
	Followups       []string       `json:"followups,omitempty"`
	TimingMs        int            `json:"timing_ms"`
}

// CitationsPayload replaces the citation list wholesale.
type CitationsPayload struct {
	Count     int        `json:"count"`
	Citations []Citation `json:"citations"`
	TimingMs  int        `json:"timing_ms"`
}

// ChunkPayload is an incremental fragment of the composed answer.
type ChunkPayload struct {
	Text string `json:"text"`
}

// RelevancePayload summarizes the relevance evaluation pass.
type RelevancePayload struct {
	EvaluatedCount int     `json:"evaluated_count"`
	MaxScore       float64 `json:"max_score"`
	TimingMs       int     `json:"timing_ms"`
}

// RetryPayload signals a search retry with a refined query.
type RetryPayload struct {
	Attempt          int     `json:"attempt"`
	Reason           string  `json:"reason"`
	PreviousMaxScore float64 `json:"previous_max_score"`
}

// CompletePayload is the terminal success event. Its answer text is
// authoritative and replaces any accumulated chunk text.
type CompletePayload struct {
	Answer    Answer     `json:"answer"`
	Citations []Citation `json:"citations"`
	Session   Session    `json:"session"`
	Timings   Timings    `json:"timings"`
	Notice    *Notice    `json:"notice,omitempty"`
}

// ErrorPayload is the terminal failure event. Codes are stable
// identifiers (TIMEOUT, SERVICE_ERROR, PROCESSING_ERROR); messages are
// generic display text.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ============================================================================
// Event union
// ============================================================================

// Event is the tagged union of all assist stream events.
//
// Exactly the payload field matching Kind is non-nil. Consumers dispatch
// with a switch over Kind; IsTerminal reports whether the stream ends
// after this event.
type Event struct {
	Kind EventKind

	Start     *StartPayload
	Status    *StatusPayload
	Intent    *IntentPayload
	Citations *CitationsPayload
	Chunk     *ChunkPayload
	Relevance *RelevancePayload
	Retry     *RetryPayload
	Complete  *CompletePayload
	Error     *ErrorPayload
}

// IsTerminal reports whether no further events follow this one.
func (e Event) IsTerminal() bool {
	return e.Kind == EventComplete || e.Kind == EventError
}

// decodeEvent builds a typed Event from a wire event name and JSON data.
//
// Unknown event names and undecodable payloads return ok=false; the
// caller drops such messages without failing the stream.
func decodeEvent(name string, data []byte) (Event, bool) {
	var ev Event

	switch EventKind(name) {
	case EventStart:
		ev = Event{Kind: EventStart, Start: &StartPayload{}}
		return ev, json.Unmarshal(data, ev.Start) == nil
	case EventStatus:
		ev = Event{Kind: EventStatus, Status: &StatusPayload{}}
		return ev, json.Unmarshal(data, ev.Status) == nil
	case EventIntent:
		ev = Event{Kind: EventIntent, Intent: &IntentPayload{}}
		return ev, json.Unmarshal(data, ev.Intent) == nil
	case EventCitations:
		ev = Event{Kind: EventCitations, Citations: &CitationsPayload{}}
		return ev, json.Unmarshal(data, ev.Citations) == nil
	case EventChunk:
		ev = Event{Kind: EventChunk, Chunk: &ChunkPayload{}}
		return ev, json.Unmarshal(data, ev.Chunk) == nil
	case EventRelevance:
		ev = Event{Kind: EventRelevance, Relevance: &RelevancePayload{}}
		return ev, json.Unmarshal(data, ev.Relevance) == nil
	case EventRetry:
		ev = Event{Kind: EventRetry, Retry: &RetryPayload{}}
		return ev, json.Unmarshal(data, ev.Retry) == nil
	case EventComplete:
		ev = Event{Kind: EventComplete, Complete: &CompletePayload{}}
		return ev, json.Unmarshal(data, ev.Complete) == nil
	case EventError:
		ev = Event{Kind: EventError, Error: &ErrorPayload{}}
		return ev, json.Unmarshal(data, ev.Error) == nil
	default:
		return Event{}, false
	}
}
