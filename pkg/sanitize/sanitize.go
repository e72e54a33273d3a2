// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sanitize cleans search-hit snippets before they are rendered.
//
// Snippets returned by the assist API carry highlight markup (em, strong,
// mark) produced by the search backend, but the backend indexes arbitrary
// web content, so a snippet must be treated as hostile input. This package
// reduces snippets to a small allow-list of inline tags and provides
// plain-text fallbacks for renderers that accept no markup at all.
package sanitize

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Ellipsis is appended to snippets shortened by TruncateSnippet.
const Ellipsis = "..."

// maxStripPasses bounds the fixed-point loop in StripTags. Ten passes is
// far beyond anything nested bracket tricks can require; the cap only
// guards against pathological inputs.
const maxStripPasses = 10

// snippetPolicy is the single allow-list shared by all Snippet calls.
// bluemonday policies are safe for concurrent use once built.
var snippetPolicy = buildSnippetPolicy()

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// buildSnippetPolicy constructs the highlight-markup allow-list.
//
// # Description
//
// Allows the inline highlight tags the search backend emits (em, strong,
// mark) plus anchors restricted to absolute http/https URLs with only
// href and title attributes. Every container whose content must never be
// rendered (script, style, iframe, object, embed, form and form controls)
// is deleted together with its content, not merely unwrapped. All other
// tags are stripped while their text is kept.
//
// # Outputs
//
//   - *bluemonday.Policy: Ready-to-use sanitization policy.
func buildSnippetPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements("em", "strong", "mark")

	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowURLSchemes("http", "https")
	p.RequireParseableURLs(true)

	// Dangerous containers lose their content entirely. Unwrapping a
	// script body would leak executable text into the rendered snippet.
	p.SkipElementsContent(
		"script", "style", "iframe", "object", "embed",
		"form", "input", "textarea", "select", "button", "option",
	)

	return p
}

// Snippet sanitizes highlight markup from a search-hit snippet.
//
// # Description
//
// Reduces the input to the em/strong/mark/a allow-list. Anchors keep only
// href and title; href values must be absolute http or https URLs or the
// attribute is dropped. Dangerous containers are removed with their
// content. The operation is idempotent: sanitizing an already-sanitized
// snippet returns it unchanged.
//
// # Inputs
//
//   - s: Raw snippet HTML from the assist API.
//
// # Outputs
//
//   - string: Markup safe to hand to a renderer.
//
// # Examples
//
//	Snippet(`<em>Fess</em> is <script>alert(1)</script>fast`)
//	// => "<em>Fess</em> is fast"
func Snippet(s string) string {
	if s == "" {
		return ""
	}
	return snippetPolicy.Sanitize(s)
}

// StripTags removes all angle-bracket tags, keeping text content.
//
// # Description
//
// Repeatedly deletes <...> spans until the output stops changing, so
// reconstruction tricks such as "<<script>script>" cannot survive a
// single-pass filter. The loop is capped at ten passes.
//
// # Inputs
//
//   - s: Arbitrary HTML or HTML-like text.
//
// # Outputs
//
//   - string: The input with all bracketed tags removed.
func StripTags(s string) string {
	for i := 0; i < maxStripPasses; i++ {
		stripped := tagPattern.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	return s
}

// TextLength reports the text-only rune length of a snippet.
//
// Tags are excluded and entities count as the characters they decode to,
// so "&amp;" contributes one rune.
func TextLength(s string) int {
	return utf8.RuneCountInString(html.UnescapeString(StripTags(s)))
}

// TruncateSnippet sanitizes a snippet and bounds its visible text length.
//
// # Description
//
// Sanitizes the input, then measures its text-only length. Within the
// limit, the sanitized markup is returned unchanged, highlight tags
// intact. Over the limit, highlight markup is sacrificed: the plain text
// is cut at max runes, HTML-escaped, and suffixed with a three-character
// ellipsis. Escaping after the cut keeps a truncation point inside an
// entity from producing dangling markup.
//
// # Inputs
//
//   - s: Raw snippet HTML.
//   - max: Maximum visible text length in runes. Non-positive values
//     yield just the ellipsis for non-empty input.
//
// # Outputs
//
//   - string: Sanitized markup, or escaped truncated text plus Ellipsis.
func TruncateSnippet(s string, max int) string {
	clean := Snippet(s)
	if clean == "" {
		return ""
	}

	text := html.UnescapeString(StripTags(clean))
	if utf8.RuneCountInString(text) <= max {
		return clean
	}

	runes := []rune(text)
	if max < 0 {
		max = 0
	}
	return html.EscapeString(string(runes[:max])) + Ellipsis
}

// ValidURL reports whether s is an absolute http or https URL.
//
// Relative URLs, other schemes, and scheme-only values are rejected;
// citation links that fail this check should render as plain text.
func ValidURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
