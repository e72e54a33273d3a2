// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/codelibs/intaste-go/pkg/assist"
	"github.com/codelibs/intaste-go/pkg/sanitize"
)

// snippetWidth is the rune budget for one citation snippet line.
const snippetWidth = 160

var phaseLabels = map[assist.Phase]string{
	assist.PhaseIntent:    "understanding question",
	assist.PhaseSearch:    "searching",
	assist.PhaseRelevance: "checking relevance",
	assist.PhaseCompose:   "composing answer",
}

// renderer turns live events into terminal output: progress to stderr
// so answers stay pipeable, answer text to stdout.
type renderer struct {
	out io.Writer
	err io.Writer

	progressShown bool
	chunkSeen     bool
}

func newRenderer(out, err io.Writer) *renderer {
	return &renderer{out: out, err: err}
}

func (r *renderer) observe(ev assist.Event) {
	switch ev.Kind {
	case assist.EventStart:
		r.progress(ev.Start.Message)
	case assist.EventStatus:
		if label, ok := phaseLabels[ev.Status.Phase]; ok {
			r.progress(label + "...")
		}
	case assist.EventIntent:
		if ev.Intent.NormalizedQuery != "" {
			r.progress("searching: " + ev.Intent.NormalizedQuery)
		}
	case assist.EventCitations:
		r.progress(fmt.Sprintf("found %d results", ev.Citations.Count))
	case assist.EventRetry:
		r.progress(fmt.Sprintf("retrying (attempt %d): %s", ev.Retry.Attempt, ev.Retry.Reason))
	case assist.EventChunk:
		if !r.chunkSeen {
			r.chunkSeen = true
			r.clearProgress()
		}
		fmt.Fprint(r.out, ev.Chunk.Text)
	case assist.EventComplete:
		r.clearProgress()
		if !r.chunkSeen && ev.Complete.Answer.Text != "" {
			// No chunks arrived; print the authoritative answer.
			fmt.Fprint(r.out, ev.Complete.Answer.Text)
		}
		fmt.Fprintln(r.out)
	case assist.EventError:
		r.clearProgress()
	}
}

// progress rewrites a single status line on stderr.
func (r *renderer) progress(msg string) {
	fmt.Fprintf(r.err, "\r\033[K%s", msg)
	r.progressShown = true
}

func (r *renderer) clearProgress() {
	if r.progressShown {
		fmt.Fprint(r.err, "\r\033[K")
		r.progressShown = false
	}
}

// renderCitations prints numbered sources. Snippets come from search
// highlighting and may carry markup; they are sanitized and flattened
// to plain text before they touch the terminal.
func renderCitations(w io.Writer, citations []assist.Citation) {
	if len(citations) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for _, c := range citations {
		title := strings.TrimSpace(html.UnescapeString(sanitize.StripTags(c.Title)))
		if title == "" {
			title = c.URL
		}
		fmt.Fprintf(w, "  [%d] %s\n", c.ID, title)
		if sanitize.ValidURL(c.URL) {
			fmt.Fprintf(w, "      %s\n", c.URL)
		}
		if snippet := plainSnippet(c.Snippet, snippetWidth); snippet != "" {
			fmt.Fprintf(w, "      %s\n", snippet)
		}
	}
}

func renderSuggestions(w io.Writer, suggestions []string) {
	if len(suggestions) == 0 {
		return
	}
	fmt.Fprintln(w, "\nYou could also ask:")
	for _, q := range suggestions {
		fmt.Fprintf(w, "  - %s\n", q)
	}
}

func renderNotice(w io.Writer, notice *assist.Notice) {
	if notice == nil || !notice.Fallback {
		return
	}
	reason := notice.Reason
	if reason == "" {
		reason = "degraded mode"
	}
	fmt.Fprintf(w, "note: answer produced in fallback mode (%s)\n", reason)
}

// plainSnippet sanitizes, truncates, and strips highlight markup so the
// result is safe single-line terminal text.
func plainSnippet(s string, max int) string {
	truncated := sanitize.TruncateSnippet(s, max)
	plain := html.UnescapeString(sanitize.StripTags(truncated))
	plain = strings.Join(strings.Fields(plain), " ")
	return plain
}
