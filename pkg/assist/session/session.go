// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session tracks the state of an assist conversation across
// streamed queries.
//
// A Session owns everything a renderer needs: the current lifecycle
// state, the accumulating answer, citations, progress scaffolding, and
// the bounded query history. All mutation happens behind a mutex, and a
// generation counter fences out events from superseded streams, so a new
// query can be fired without waiting for the previous stream to wind
// down.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/codelibs/intaste-go/pkg/assist"
)

// State is the lifecycle of the current query.
type State string

const (
	StateIdle      State = "idle"
	StateSending   State = "sending"
	StateStreaming State = "streaming"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// maxHistory bounds the retained query history.
const maxHistory = assist.MaxHistoryEntries

// maxTopResults bounds the "top results" progress summary.
const maxTopResults = 3

// Streamer is the client surface a Session depends on.
type Streamer interface {
	QueryStream(ctx context.Context, req *assist.QueryRequest, handler assist.EventHandler) error
}

// Failure describes why the current query failed.
type Failure struct {
	Code    string
	Message string
}

// Snapshot is a point-in-time copy of the session for rendering.
//
// Slices are copied; mutating a snapshot never races with the session.
type Snapshot struct {
	State State
	Phase assist.Phase

	// Thinking holds progress scaffolding (start message, normalized
	// query, retry notices) shown until the first answer chunk arrives.
	// Filters and TopResults are scaffolding too: the interpreted search
	// filters and the leading citation titles, cleared with Thinking.
	Thinking   string
	Filters    map[string]any
	TopResults []string

	Answer             string
	SuggestedQuestions []string
	Citations          []assist.Citation
	SelectedCitation   *int

	Session assist.Session
	Timings assist.Timings
	Notice  *assist.Notice
	Failure *Failure

	History   []string
	StartedAt time.Time
}

// Session is the conversation state machine.
type Session struct {
	mu     sync.Mutex
	client Streamer

	generation uint64
	state      State
	phase      assist.Phase
	thinking   string
	filters    map[string]any
	topResults []string

	answer             strings.Builder
	answerFinal        string
	suggested          []string
	citations          []assist.Citation
	selectedCitation   *int
	remote             assist.Session
	timings            assist.Timings
	notice             *assist.Notice
	failure            *Failure
	firstChunkReceived bool

	history   []string
	startedAt time.Time

	observer func(assist.Event)
}

// New creates an idle session backed by the given client.
func New(client Streamer) *Session {
	return &Session{client: client, state: StateIdle}
}

// SetObserver registers a callback invoked after each live event is
// folded into the session. Stale-generation events are not observed.
// The callback runs without the session lock held; it may call
// Snapshot.
func (s *Session) SetObserver(fn func(assist.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

// Send runs one streamed query to completion.
//
// # Description
//
// Resets per-query state, records the query in history, and blocks until
// the stream reaches a terminal event or fails. Calling Send again while
// a previous call is still draining is safe: the generation counter
// advances and events from the superseded stream are discarded.
//
// # Inputs
//
//   - ctx: Governs the stream; cancel it to abandon the query.
//   - query: The user's question.
//   - opts: Optional composition options, may be nil.
//
// # Outputs
//
//   - error: Configuration, validation, transport, or protocol error.
//     A stream-level error event yields a nil return with the session
//     in StateFailed; inspect Snapshot().Failure.
func (s *Session) Send(ctx context.Context, query string, opts *assist.QueryOptions) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.resetQueryStateLocked()
	s.state = StateSending
	s.startedAt = time.Now()
	s.pushHistoryLocked(query)

	req := &assist.QueryRequest{
		Query:        query,
		SessionID:    s.remote.ID,
		QueryHistory: s.historyContextLocked(query),
		Options:      opts,
	}
	s.mu.Unlock()

	err := s.client.QueryStream(ctx, req, func(ev assist.Event) error {
		if s.apply(gen, ev) {
			s.mu.Lock()
			obs := s.observer
			s.mu.Unlock()
			if obs != nil {
				obs(ev)
			}
		}
		return nil
	})
	if err != nil {
		s.failTransport(gen, err)
		return err
	}
	return nil
}

// apply folds one stream event into the session, discarding events from
// superseded generations. This is the single dispatch site for the
// event union. Returns false when the event was discarded as stale.
func (s *Session) apply(gen uint64, ev assist.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		// A newer Send superseded this stream.
		return false
	}

	switch ev.Kind {
	case assist.EventStart:
		s.state = StateStreaming
		s.thinking = ev.Start.Message

	case assist.EventStatus:
		s.state = StateStreaming
		s.phase = ev.Status.Phase

	case assist.EventIntent:
		s.thinking = ev.Intent.NormalizedQuery
		s.filters = ev.Intent.Filters
		s.suggested = ev.Intent.Followups

	case assist.EventCitations:
		// Wholesale replacement, never a merge.
		s.citations = ev.Citations.Citations
		s.reconcileSelectionLocked()
		if s.selectedCitation == nil && len(s.citations) > 0 {
			id := s.citations[0].ID
			s.selectedCitation = &id
		}
		s.topResults = topTitles(s.citations)

	case assist.EventChunk:
		if !s.firstChunkReceived {
			s.firstChunkReceived = true
			s.clearScaffoldingLocked()
		}
		s.answer.WriteString(ev.Chunk.Text)

	case assist.EventRelevance:
		// Progress display only; no state transition.

	case assist.EventRetry:
		s.thinking = ev.Retry.Reason

	case assist.EventComplete:
		c := ev.Complete
		s.answerFinal = c.Answer.Text
		s.suggested = c.Answer.SuggestedQuestions
		s.citations = c.Citations
		s.remote = c.Session
		s.timings = c.Timings
		s.notice = c.Notice
		s.clearScaffoldingLocked()
		s.reconcileSelectionLocked()
		s.state = StateCompleted

	case assist.EventError:
		s.failure = &Failure{Code: ev.Error.Code, Message: ev.Error.Message}
		s.clearScaffoldingLocked()
		s.state = StateFailed
	}
	return true
}

// failTransport marks the session failed for errors raised outside the
// event stream (config, transport, protocol).
func (s *Session) failTransport(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	code := "TRANSPORT_ERROR"
	var apiErr *assist.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.Code
	}
	s.failure = &Failure{Code: code, Message: err.Error()}
	s.clearScaffoldingLocked()
	s.state = StateFailed
}

// SelectCitation sets the active citation. Nil clears the selection.
// Valid in any state; ids not present in the current citation list are
// ignored.
func (s *Session) SelectCitation(id *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == nil {
		s.selectedCitation = nil
		return
	}
	for _, c := range s.citations {
		if c.ID == *id {
			v := *id
			s.selectedCitation = &v
			return
		}
	}
}

// Reset returns the session to idle, clearing the answer, citations, and
// failure but keeping the query history and remote session identity.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.resetQueryStateLocked()
	s.state = StateIdle
}

// Snapshot returns a render-safe copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:     s.state,
		Phase:     s.phase,
		Thinking:  s.thinking,
		Answer:    s.answerLocked(),
		Session:   s.remote,
		Timings:   s.timings,
		StartedAt: s.startedAt,
	}
	snap.SuggestedQuestions = append([]string(nil), s.suggested...)
	snap.Citations = append([]assist.Citation(nil), s.citations...)
	snap.TopResults = append([]string(nil), s.topResults...)
	snap.History = append([]string(nil), s.history...)
	if s.filters != nil {
		snap.Filters = make(map[string]any, len(s.filters))
		for k, v := range s.filters {
			snap.Filters[k] = v
		}
	}
	if s.selectedCitation != nil {
		v := *s.selectedCitation
		snap.SelectedCitation = &v
	}
	if s.notice != nil {
		n := *s.notice
		snap.Notice = &n
	}
	if s.failure != nil {
		f := *s.failure
		snap.Failure = &f
	}
	return snap
}

// History returns the retained queries, most recent first.
func (s *Session) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history...)
}

// =============================================================================
// Internal helpers (lock held)
// =============================================================================

// answerLocked prefers the authoritative complete text over accumulated
// chunks.
func (s *Session) answerLocked() string {
	if s.state == StateCompleted {
		return s.answerFinal
	}
	return s.answer.String()
}

// clearScaffoldingLocked drops the "thinking" display state once real
// output begins (or the query terminates).
func (s *Session) clearScaffoldingLocked() {
	s.thinking = ""
	s.filters = nil
	s.topResults = nil
}

// topTitles derives the short progress summary shown while citations
// arrive ahead of the answer text.
func topTitles(citations []assist.Citation) []string {
	n := len(citations)
	if n > maxTopResults {
		n = maxTopResults
	}
	out := make([]string, 0, n)
	for _, c := range citations[:n] {
		out = append(out, c.Title)
	}
	return out
}

func (s *Session) resetQueryStateLocked() {
	s.phase = ""
	s.thinking = ""
	s.filters = nil
	s.topResults = nil
	s.answer.Reset()
	s.answerFinal = ""
	s.suggested = nil
	s.citations = nil
	s.selectedCitation = nil
	s.timings = assist.Timings{}
	s.notice = nil
	s.failure = nil
	s.firstChunkReceived = false
}

// pushHistoryLocked records a query: distinct entries, most recent
// first, capped at maxHistory. Re-sending an existing query moves it to
// the front.
func (s *Session) pushHistoryLocked(query string) {
	for i, q := range s.history {
		if q == query {
			s.history = append(s.history[:i], s.history[i+1:]...)
			break
		}
	}
	s.history = append([]string{query}, s.history...)
	if len(s.history) > maxHistory {
		s.history = s.history[:maxHistory]
	}
}

// historyContextLocked is the conversational context for a request: the
// prior queries, excluding the one being sent.
func (s *Session) historyContextLocked(current string) []string {
	var out []string
	for _, q := range s.history {
		if q != current {
			out = append(out, q)
		}
	}
	return out
}

// reconcileSelectionLocked clears a selection whose id vanished from the
// replaced citation list.
func (s *Session) reconcileSelectionLocked() {
	if s.selectedCitation == nil {
		return
	}
	for _, c := range s.citations {
		if c.ID == *s.selectedCitation {
			return
		}
	}
	s.selectedCitation = nil
}
