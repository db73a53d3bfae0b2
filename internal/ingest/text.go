package ingest

import (
	"html"
	"regexp"
	"strings"

	"github.com/dailylens/internal/types"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// stripHTML removes markup from RSS descriptions.
func stripHTML(text string) string {
	return tagPattern.ReplaceAllString(text, " ")
}

// cleanText unescapes entities and collapses whitespace.
func cleanText(text string) string {
	text = html.UnescapeString(text)
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// truncateRunes cuts text to at most max runes, never splitting a
// multi-byte character.
func truncateRunes(text string, max int) string {
	if len(text) <= max {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}

// splitPublisher separates a Google News "Headline - Publisher" title.
func splitPublisher(title string) (string, string) {
	idx := strings.LastIndex(title, " - ")
	if idx <= 0 || idx+3 >= len(title) {
		return title, "Unknown"
	}
	return strings.TrimSpace(title[:idx]), strings.TrimSpace(title[idx+3:])
}

func lowerSubject(subject types.Subject) string {
	return strings.ToLower(string(subject))
}
