package core

import (
	"regexp"
	"strings"
)

// Explicit category shapes: a "category:"/"cat:" directive (Latin or
// Khmer letters allowed) or a hashtag token.
var (
	catDirectRE = regexp.MustCompile(`(?i)(?:^|\s)(?:category|cat)\s*:\s*([A-Za-z0-9_\-\s\x{1780}-\x{17FF}]{2,40})`)
	hashtagRE   = regexp.MustCompile(`#([A-Za-z0-9_\-]{2,40})`)
)

// ExplicitCategory returns the label the user spelled out, via a
// "category:" directive or a hashtag, lowercased and trimmed. Empty
// string when the text carries neither.
func ExplicitCategory(text string) string {
	t := strings.TrimSpace(text)
	if t == "" {
		return ""
	}
	if m := catDirectRE.FindStringSubmatch(t); m != nil {
		return strings.ToLower(strings.TrimSpace(m[1]))
	}
	if m := hashtagRE.FindStringSubmatch(t); m != nil {
		return strings.ToLower(strings.TrimSpace(m[1]))
	}
	return ""
}

// InferCategory classifies a text into a category label.
//
// Priority, first match wins:
//  1. explicit "category: xxx" / "cat: xxx" directive
//  2. hashtag token like "#food"
//  3. sign hints: positive-only text is "income", negative-only is
//     "expense"
//
// Returns empty string when nothing applies. Never fails on malformed
// input.
func InferCategory(text string) string {
	if c := ExplicitCategory(text); c != "" {
		return c
	}
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return ""
	}
	pos := containsAny(lowered, positiveHints)
	neg := containsAny(lowered, negativeHints)
	switch {
	case pos && !neg:
		return "income"
	case neg && !pos:
		return "expense"
	}
	return ""
}

func containsAny(lowered string, hints []string) bool {
	for _, k := range hints {
		if strings.Contains(lowered, k) {
			return true
		}
	}
	return false
}

// keywordTags is the storage-time default table: when a message has
// no explicit category, the first matching keyword supplies one.
// Ordered so lookups stay deterministic.
var keywordTags = []struct{ keyword, tag string }{
	{"salary", "salary"},
	{"wage", "salary"},
	{"deposit", "deposit"},
	{"topup", "deposit"},
	{"top-up", "deposit"},
	{"bet", "betting"},
	{"betting", "betting"},
	{"win", "betting"},
	{"lose", "betting"},
	{"expense", "expense"},
	{"pay", "expense"},
	{"paid", "expense"},
	{"payout", "expense"},
}

// DefaultCategory is the optional policy layer composed in front of
// InferCategory on the ingestion path. It only fires when the text
// has no explicit category of its own.
func DefaultCategory(text string) string {
	lowered := strings.ToLower(text)
	for _, kt := range keywordTags {
		if strings.Contains(lowered, kt.keyword) {
			return kt.tag
		}
	}
	return ""
}
