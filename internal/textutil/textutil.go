// Package textutil holds the sentence splitting and truncation helpers shared by
// the extractors and the question-answering engine.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Clean NFKC-normalizes text, replaces NUL bytes and collapses whitespace runs.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\x00", " ")
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// SplitSentences splits after sentence-ending punctuation followed by whitespace.
// The whitespace run is dropped; pieces are returned untrimmed.
func SplitSentences(text string) []string {
	return split(text, false)
}

// SplitUnits is SplitSentences that additionally breaks on runs of one or two
// newlines, so headings and list items become their own units.
func SplitUnits(text string) []string {
	return split(text, true)
}

func split(text string, newlines bool) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	var out []string
	start := 0
	i := 0
	for i < len(runes) {
		if i > 0 && isTerminal(runes[i-1]) && unicode.IsSpace(runes[i]) {
			end := i
			for i < len(runes) && unicode.IsSpace(runes[i]) {
				i++
			}
			out = append(out, string(runes[start:end]))
			start = i
			continue
		}
		if newlines && runes[i] == '\n' {
			end := i
			i++
			if i < len(runes) && runes[i] == '\n' {
				i++
			}
			out = append(out, string(runes[start:end]))
			start = i
			continue
		}
		i++
	}
	out = append(out, string(runes[start:]))
	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// Len returns the length of s in characters.
func Len(s string) int {
	return utf8.RuneCountInString(s)
}

// Truncate returns at most n leading characters of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
