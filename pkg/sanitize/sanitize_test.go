// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sanitize

import (
	"strings"
	"testing"
)

// ============================================================================
// Snippet
// ============================================================================

func TestSnippet_KeepsHighlightTags(t *testing.T) {
	in := `found in <em>Fess</em> with <strong>rank</strong> and <mark>term</mark>`
	got := Snippet(in)
	if got != in {
		t.Errorf("highlight markup altered: %q", got)
	}
}

func TestSnippet_RemovesScriptWithContent(t *testing.T) {
	got := Snippet(`before<script>alert(1)</script>after`)
	if got != "beforeafter" {
		t.Errorf("expected script body deleted, got %q", got)
	}
}

func TestSnippet_RemovesDangerousContainers(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"style", `<style>body{display:none}</style>`},
		{"iframe", `<iframe src="http://evil.example/">fallback</iframe>`},
		{"object", `<object data="x">inner</object>`},
		{"embed", `<embed src="x">`},
		{"form", `<form action="/steal"><input name="q">text</form>`},
		{"textarea", `<textarea>payload</textarea>`},
		{"button", `<button>click</button>`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Snippet("keep " + tc.in + " keep")
			if strings.Contains(got, "payload") || strings.Contains(got, "click") ||
				strings.Contains(got, "inner") || strings.Contains(got, "fallback") ||
				strings.Contains(got, "display:none") {
				t.Errorf("container content leaked: %q", got)
			}
			if !strings.Contains(got, "keep") {
				t.Errorf("surrounding text lost: %q", got)
			}
			if strings.Contains(got, "<") {
				t.Errorf("tag survived: %q", got)
			}
		})
	}
}

func TestSnippet_UnwrapsUnknownTags(t *testing.T) {
	got := Snippet(`<div class="hit"><span>some</span> text</div>`)
	if got != "some text" {
		t.Errorf("expected unknown tags stripped with text kept, got %q", got)
	}
}

func TestSnippet_AnchorAttributes(t *testing.T) {
	got := Snippet(`<a href="https://example.com/doc" title="Doc" onclick="x()" target="_blank">doc</a>`)
	if !strings.Contains(got, `href="https://example.com/doc"`) {
		t.Errorf("https href should survive: %q", got)
	}
	if !strings.Contains(got, `title="Doc"`) {
		t.Errorf("title should survive: %q", got)
	}
	if strings.Contains(got, "onclick") || strings.Contains(got, "target") {
		t.Errorf("disallowed attribute survived: %q", got)
	}
}

func TestSnippet_RejectsDangerousSchemes(t *testing.T) {
	for _, href := range []string{
		"javascript:alert(1)",
		"data:text/html,<script>1</script>",
		"vbscript:x",
		"/relative/path",
	} {
		got := Snippet(`<a href="` + href + `">link</a>`)
		if strings.Contains(got, "javascript") || strings.Contains(got, "data:") ||
			strings.Contains(got, "vbscript") || strings.Contains(got, "href") {
			t.Errorf("href %q survived sanitization: %q", href, got)
		}
		if !strings.Contains(got, "link") {
			t.Errorf("link text lost for href %q: %q", href, got)
		}
	}
}

func TestSnippet_NeverEmitsEventHandlers(t *testing.T) {
	inputs := []string{
		`<img src=x onerror="alert(1)">`,
		`<em onmouseover="x()">hi</em>`,
		`<p onclick="y()">text</p>`,
	}
	for _, in := range inputs {
		got := Snippet(in)
		if strings.Contains(strings.ToLower(got), "on") && strings.Contains(got, "=") {
			// Only flag attribute-shaped survivors, not the word "on" in text.
			if strings.Contains(strings.ToLower(got), "onerror") ||
				strings.Contains(strings.ToLower(got), "onmouseover") ||
				strings.Contains(strings.ToLower(got), "onclick") {
				t.Errorf("event handler survived for %q: %q", in, got)
			}
		}
		if strings.Contains(strings.ToLower(got), "<script") {
			t.Errorf("script tag survived for %q: %q", in, got)
		}
	}
}

func TestSnippet_Idempotent(t *testing.T) {
	inputs := []string{
		`<em>term</em> plain`,
		`a & b < c`,
		`<div><script>x</script><mark>hit</mark></div>`,
		`<a href="https://example.com">e</a>`,
		`<<script>script>alert(1)<</script>/script>`,
	}
	for _, in := range inputs {
		once := Snippet(in)
		twice := Snippet(once)
		if once != twice {
			t.Errorf("not idempotent for %q:\n once: %q\ntwice: %q", in, once, twice)
		}
	}
}

func TestSnippet_Empty(t *testing.T) {
	if got := Snippet(""); got != "" {
		t.Errorf("empty input should stay empty, got %q", got)
	}
}

// ============================================================================
// StripTags
// ============================================================================

func TestStripTags_ReconstructionTrick(t *testing.T) {
	got := StripTags("<<script>script>alert(1)<</script>/script>")
	if strings.Contains(got, "<script") {
		t.Errorf("reconstructed script tag survived: %q", got)
	}
}

func TestStripTags_PlainTextUnchanged(t *testing.T) {
	in := "no tags here, just 2 < 3 comparisons? no: brackets need closing"
	if got := StripTags(in); got != in {
		t.Errorf("text without tags changed: %q", got)
	}
}

func TestStripTags_Simple(t *testing.T) {
	if got := StripTags("<b>bold</b> and <i>italic</i>"); got != "bold and italic" {
		t.Errorf("unexpected result: %q", got)
	}
}

// ============================================================================
// TruncateSnippet
// ============================================================================

func TestTruncateSnippet_WithinLimitKeepsMarkup(t *testing.T) {
	in := `<em>short</em> hit`
	got := TruncateSnippet(in, 100)
	if got != in {
		t.Errorf("markup should survive when under limit: %q", got)
	}
}

func TestTruncateSnippet_OverLimitDropsMarkup(t *testing.T) {
	in := `<em>` + strings.Repeat("a", 50) + `</em>` + strings.Repeat("b", 50)
	got := TruncateSnippet(in, 10)
	if strings.Contains(got, "<") {
		t.Errorf("truncated output must be markup-free: %q", got)
	}
	if !strings.HasSuffix(got, Ellipsis) {
		t.Errorf("missing ellipsis: %q", got)
	}
	if got != strings.Repeat("a", 10)+Ellipsis {
		t.Errorf("unexpected truncation: %q", got)
	}
}

func TestTruncateSnippet_MeasuresTextNotMarkup(t *testing.T) {
	// 9 visible characters wrapped in tags that would push byte length
	// far over the limit.
	in := `<em><strong>123456789</strong></em>`
	got := TruncateSnippet(in, 9)
	if strings.HasSuffix(got, Ellipsis) {
		t.Errorf("9 visible chars within limit 9 should not truncate: %q", got)
	}
}

func TestTruncateSnippet_MultibyteRunes(t *testing.T) {
	in := strings.Repeat("日", 20)
	got := TruncateSnippet(in, 5)
	if got != strings.Repeat("日", 5)+Ellipsis {
		t.Errorf("rune-wise truncation failed: %q", got)
	}
}

func TestTruncateSnippet_EscapesAtTruncation(t *testing.T) {
	in := strings.Repeat("x", 8) + `<em>a & b</em>` + strings.Repeat("y", 20)
	got := TruncateSnippet(in, 12)
	if !strings.HasSuffix(got, Ellipsis) {
		t.Errorf("missing ellipsis: %q", got)
	}
	if strings.Contains(got, "<em>") {
		t.Errorf("markup survived truncation: %q", got)
	}
	if strings.Contains(got, " & ") {
		t.Errorf("raw ampersand in truncated output: %q", got)
	}
}

func TestTruncateSnippet_SanitizesBeforeMeasuring(t *testing.T) {
	// Script content must not count toward the text length and must never
	// appear in output regardless of the limit.
	in := `<script>` + strings.Repeat("z", 500) + `</script>hit`
	got := TruncateSnippet(in, 50)
	if got != "hit" {
		t.Errorf("expected script body excluded entirely, got %q", got)
	}
}

// ============================================================================
// ValidURL
// ============================================================================

func TestValidURL(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"https://example.com/page", true},
		{"http://example.com", true},
		{"https://example.com:8443/a?b=c#d", true},
		{"javascript:alert(1)", false},
		{"data:text/html,x", false},
		{"ftp://example.com/file", false},
		{"/relative/only", false},
		{"example.com/no-scheme", false},
		{"https://", false},
		{"", false},
		{"  https://example.com  ", true},
	}

	for _, tc := range cases {
		if got := ValidURL(tc.url); got != tc.want {
			t.Errorf("ValidURL(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}
