// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codelibs/intaste-go/pkg/assist"
)

func TestRenderer_ChunksGoToStdout(t *testing.T) {
	var out, errOut bytes.Buffer
	r := newRenderer(&out, &errOut)

	r.observe(assist.Event{Kind: assist.EventStart, Start: &assist.StartPayload{Message: "Searching..."}})
	r.observe(assist.Event{Kind: assist.EventStatus, Status: &assist.StatusPayload{Phase: assist.PhaseSearch}})
	r.observe(assist.Event{Kind: assist.EventChunk, Chunk: &assist.ChunkPayload{Text: "Hello "}})
	r.observe(assist.Event{Kind: assist.EventChunk, Chunk: &assist.ChunkPayload{Text: "world"}})
	r.observe(assist.Event{Kind: assist.EventComplete, Complete: &assist.CompletePayload{
		Answer: assist.Answer{Text: "Hello world"},
	}})

	assert.Equal(t, "Hello world\n", out.String())
	assert.Contains(t, errOut.String(), "Searching...")
	// The last write to stderr clears the progress line.
	assert.True(t, strings.HasSuffix(errOut.String(), "\r\033[K"))
}

func TestRenderer_CompleteWithoutChunksPrintsAnswer(t *testing.T) {
	var out, errOut bytes.Buffer
	r := newRenderer(&out, &errOut)

	r.observe(assist.Event{Kind: assist.EventComplete, Complete: &assist.CompletePayload{
		Answer: assist.Answer{Text: "full answer"},
	}})

	assert.Equal(t, "full answer\n", out.String())
}

func TestRenderCitations_SanitizesSnippetsAndURLs(t *testing.T) {
	var out bytes.Buffer
	renderCitations(&out, []assist.Citation{
		{
			ID:      1,
			Title:   "<em>Crawler</em> setup",
			Snippet: "Configure the <script>alert(1)</script><em>crawler</em> schedule",
			URL:     "https://fess.example.com/docs/crawler",
		},
		{
			ID:      2,
			Title:   "Bad link",
			Snippet: "text",
			URL:     "javascript:alert(1)",
		},
	})

	s := out.String()
	assert.Contains(t, s, "[1] Crawler setup")
	assert.Contains(t, s, "https://fess.example.com/docs/crawler")
	assert.Contains(t, s, "Configure the crawler schedule")
	assert.NotContains(t, s, "alert(1)")
	assert.NotContains(t, s, "javascript:")
	assert.Contains(t, s, "[2] Bad link")
}

func TestRenderCitations_Empty(t *testing.T) {
	var out bytes.Buffer
	renderCitations(&out, nil)
	assert.Empty(t, out.String())
}

func TestRenderSuggestions(t *testing.T) {
	var out bytes.Buffer
	renderSuggestions(&out, []string{"How do I schedule crawls?", "What is a thumbnail job?"})
	assert.Contains(t, out.String(), "- How do I schedule crawls?")
	assert.Contains(t, out.String(), "- What is a thumbnail job?")
}

func TestRenderNotice(t *testing.T) {
	var out bytes.Buffer
	renderNotice(&out, &assist.Notice{Fallback: true, Reason: "llm unavailable"})
	assert.Contains(t, out.String(), "llm unavailable")

	out.Reset()
	renderNotice(&out, nil)
	assert.Empty(t, out.String())

	renderNotice(&out, &assist.Notice{Fallback: false})
	assert.Empty(t, out.String())
}
