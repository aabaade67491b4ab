// Package render cooks rewritten post markup into HTML and flattens cooked
// HTML back into plain search text.
package render

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	mdhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/persistorai/forumport/internal/domain"
)

// Cooker renders markdown with GFM extensions and sanitizes the result.
// A Cooker is safe for concurrent use.
type Cooker struct {
	md       goldmark.Markdown
	policy   *bluemonday.Policy
	nofollow *bluemonday.Policy
}

var _ domain.Renderer = (*Cooker)(nil)

// NewCooker returns a Cooker with the user-generated-content policy.
func NewCooker() *Cooker {
	// UGCPolicy marks links nofollow by default; post bodies keep theirs
	// followable and only bios opt back in.
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(false)

	nofollow := bluemonday.UGCPolicy()
	nofollow.RequireNoFollowOnLinks(true)

	return &Cooker{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Strikethrough),
			goldmark.WithRendererOptions(mdhtml.WithUnsafe(), mdhtml.WithHardWraps()),
		),
		policy:   policy,
		nofollow: nofollow,
	}
}

// Render converts raw markup to sanitized HTML.
func (c *Cooker) Render(raw string, opts domain.RenderOptions) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}

	var buf bytes.Buffer
	if err := c.md.Convert([]byte(raw), &buf); err != nil {
		return "", err
	}

	policy := c.policy
	if opts.NoFollow {
		policy = c.nofollow
	}

	return strings.TrimSpace(policy.Sanitize(buf.String())), nil
}

var (
	strict     = bluemonday.StrictPolicy()
	whitespace = regexp.MustCompile(`\s+`)
)

// SearchText strips every tag from cooked HTML, unescapes entities and
// collapses whitespace.
func SearchText(cooked string) string {
	text := html.UnescapeString(strict.Sanitize(cooked))
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

// SearchDocument joins a post's scrubbed text with its topic title and
// category name, the way post search data is indexed.
func SearchDocument(cooked, title, category string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{SearchText(cooked), title, category} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	return strings.Join(parts, " ")
}
