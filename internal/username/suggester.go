// Package username turns legacy display names into unique destination
// usernames.
package username

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Default length bounds of a destination username.
const (
	DefaultMinLength = 3
	DefaultMaxLength = 20
)

const (
	filler       = '1'
	fallbackBase = "user"
)

var (
	edgeJunk    = regexp.MustCompile(`^[^[:alnum:]]+|\W+$`)
	nonWordRuns = regexp.MustCompile(`\W+`)
	leadingUnd  = regexp.MustCompile(`^_+`)
)

// letters that do not decompose into a base letter plus marks.
var specialLetters = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "Æ", "AE", "œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O", "đ", "d", "Đ", "D", "ł", "l", "Ł", "L",
	"þ", "th", "Þ", "TH", "ð", "d", "Ð", "D",
)

// Suggester hands out usernames that are unique case-insensitively within a
// run. It is not safe for concurrent use; the loader calls it from one
// goroutine.
type Suggester struct {
	minLen int
	maxLen int
	taken  map[string]struct{}
}

// New creates a Suggester with the given length bounds.
func New(minLen, maxLen int) *Suggester {
	if minLen < 1 {
		minLen = DefaultMinLength
	}

	if maxLen < minLen {
		maxLen = DefaultMaxLength
	}

	return &Suggester{
		minLen: minLen,
		maxLen: maxLen,
		taken:  make(map[string]struct{}),
	}
}

// Suggest returns the first free candidate for raw without registering it.
// A numeric suffix replaces the tail of the name to stay within the maximum
// length; once the suffix alone is longer than that, the candidate is the
// bare suffix.
func (s *Suggester) Suggest(raw string) string {
	base := s.rightsize(Sanitize(raw))
	if !s.Taken(base) {
		return base
	}

	for i := 1; ; i++ {
		suffix := strconv.Itoa(i)
		keep := max(0, min(len(base), s.maxLen-len(suffix)))
		candidate := base[:keep] + suffix

		if !s.Taken(candidate) {
			return candidate
		}
	}
}

// Claim suggests a name for raw and registers it.
func (s *Suggester) Claim(raw string) string {
	name := s.Suggest(raw)
	s.Register(name)

	return name
}

// Register marks name as used.
func (s *Suggester) Register(name string) {
	s.taken[strings.ToLower(name)] = struct{}{}
}

// Taken reports whether name is already used, ignoring case.
func (s *Suggester) Taken(name string) bool {
	_, ok := s.taken[strings.ToLower(name)]

	return ok
}

func (s *Suggester) rightsize(name string) string {
	if len(name) < s.minLen {
		name += strings.Repeat(string(filler), s.minLen-len(name))
	}

	if len(name) > s.maxLen {
		name = name[:s.maxLen]
	}

	return name
}

// Sanitize reduces name to ASCII letters, digits and underscores. It never
// returns an empty string.
func Sanitize(name string) string {
	name = Transliterate(strings.TrimSpace(name))
	name = edgeJunk.ReplaceAllString(name, "")
	name = nonWordRuns.ReplaceAllString(name, "_")
	name = leadingUnd.ReplaceAllString(name, "")

	if name == "" {
		return fallbackBase
	}

	return name
}

// Transliterate folds accented letters to ASCII and replaces anything else
// outside ASCII with '?'.
func Transliterate(s string) string {
	s = specialLetters.Replace(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return '?'
		}

		return r
	}, folded)
}
