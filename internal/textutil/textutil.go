// Package textutil holds the small text transforms shared by the loader and
// the materializer.
package textutil

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/persistorai/forumport/internal/username"
)

var (
	escapedNewline = regexp.MustCompile(`(\\r)?\\n`)
	escapedTab     = regexp.MustCompile(`\\t`)
	escapedCR      = regexp.MustCompile(`\\r`)
	wordRun        = regexp.MustCompile(`\w+`)
	slugJunk       = regexp.MustCompile(`[^a-z0-9]+`)
)

// Normalize turns the escaped control sequences of a legacy dump into the
// whitespace they stand for.
func Normalize(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	s = escapedNewline.ReplaceAllString(s, "\n")
	s = escapedTab.ReplaceAllString(s, "\t")

	return escapedCR.ReplaceAllString(s, "")
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	runes := []rune(s)

	return string(runes[:n])
}

// Slugify derives a URL slug from a title. Titles with no usable characters
// fall back to "topic".
func Slugify(title string) string {
	s := strings.ToLower(username.Transliterate(title))
	s = slugJunk.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if s == "" {
		return "topic"
	}

	return s
}

// WordCount counts the runs of word characters in s.
func WordCount(s string) int {
	return len(wordRun.FindAllStringIndex(s, -1))
}
