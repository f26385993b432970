// Package textutil holds the rune-safe truncation and sentence helpers shared
// by output resolution, the guardrail and the briefing presenter.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const ellipsis = "…"

var (
	sentenceBoundary = regexp.MustCompile(`([.!?])\s+`)
	whitespace       = regexp.MustCompile(`\s+`)
)

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	runes := []rune(s)

	return string(runes[:limit])
}

// TruncateWords cuts s to at most limit runes at a word boundary and appends
// an ellipsis when anything was removed. The result never exceeds limit.
func TruncateWords(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	if limit <= 1 {
		return Truncate(ellipsis, limit)
	}

	runes := []rune(s)
	text := string(runes[:limit-1])

	if !unicode.IsSpace(runes[limit-1]) {
		if idx := strings.LastIndexAny(text, " \n\t"); idx > 0 {
			text = text[:idx]
		}
	}

	return strings.TrimRight(text, " \n\t,;:-") + ellipsis
}

// CollapseSpace replaces whitespace runs with a single space.
func CollapseSpace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// Sentences splits text into trimmed sentences, keeping terminal punctuation.
func Sentences(text string) []string {
	text = CollapseSpace(text)
	if text == "" {
		return nil
	}

	marked := sentenceBoundary.ReplaceAllString(text, "$1\x00")

	var out []string

	for _, part := range strings.Split(marked, "\x00") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}

// FirstSentences joins up to n sentences of text.
func FirstSentences(text string, n int) string {
	sentences := Sentences(text)
	if len(sentences) > n {
		sentences = sentences[:n]
	}

	return strings.Join(sentences, " ")
}

// Words splits text on whitespace.
func Words(text string) []string {
	return strings.Fields(text)
}
