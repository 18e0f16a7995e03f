// Package normalize turns free-form LLM research prose into the fixed
// ExtractedProfile shape using section detection and label patterns.
//
// Every function in this package is pure: the same input and label table
// always produce the same output, and no state is retained between calls.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// thinkBlockRe matches closed reasoning blocks emitted by reasoning models.
	thinkBlockRe = regexp.MustCompile(`(?is)<think(?:ing)?>.*?</think(?:ing)?>`)
	// thinkOpenRe matches an opening marker that is never closed.
	thinkOpenRe = regexp.MustCompile(`(?is)<think(?:ing)?>.*\z`)
	// thinkCloseRe matches a closing marker whose opening was cut off upstream.
	thinkCloseRe = regexp.MustCompile(`(?is)\A.*?</think(?:ing)?>`)

	citationRe    = regexp.MustCompile(`\[\d+\]`)
	blankLinesRe  = regexp.MustCompile(`\n(?:[ \t]*\n){2,}`)
	deepHeadingRe = regexp.MustCompile(`(?m)^#{3,}`)
)

// StripThinking removes <think>/<thinking> reasoning blocks. An unterminated
// opening marker drops everything after it; a stray closing marker drops
// everything before it.
func StripThinking(text string) string {
	text = thinkBlockRe.ReplaceAllString(text, "")
	text = thinkOpenRe.ReplaceAllString(text, "")
	text = thinkCloseRe.ReplaceAllString(text, "")
	return text
}

// Clean prepares report text for extraction: NFC normalization, reasoning
// blocks removed, [n] citation markers removed, runs of 3+ line breaks
// collapsed to 2 and headings of depth 3 or more rewritten to depth 2.
// Clean is idempotent.
func Clean(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = StripThinking(text)
	// Repeat so nested markers like "[1[2]]" cannot survive a single pass.
	for citationRe.MatchString(text) {
		text = citationRe.ReplaceAllString(text, "")
	}
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	text = deepHeadingRe.ReplaceAllString(text, "##")
	return strings.TrimSpace(text)
}

// ExtractCitations returns the distinct [n] markers in text in first-seen
// order. Markers inside reasoning blocks are ignored.
func ExtractCitations(text string) []string {
	matches := citationRe.FindAllString(StripThinking(text), -1)
	out := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
