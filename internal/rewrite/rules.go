package rewrite

import (
	"regexp"
	"strconv"
)

// rule is one substitution. resolve receives the submatches of a span and
// returns its replacement; ok=false keeps the span byte-for-byte.
type rule struct {
	name    string
	re      *regexp.Regexp
	resolve func(r *Rewriter, m []string) (string, bool)
}

func always(f func(m []string) string) func(*Rewriter, []string) (string, bool) {
	return func(_ *Rewriter, m []string) (string, bool) { return f(m), true }
}

func fenced(lang string) func(*Rewriter, []string) (string, bool) {
	return always(func(m []string) string {
		return "\n```" + lang + "\n" + m[1] + "\n```\n"
	})
}

// rules run in this order; later rules see the output of earlier ones.
var rules = []rule{
	{
		name: "mention",
		re:   regexp.MustCompile(`(?i)\[mention\](.+?)\[/mention\]`),
		resolve: func(r *Rewriter, m []string) (string, bool) {
			name, ok := r.ix.Username(m[1])
			return "@" + name, ok
		},
	},
	{
		name: "mention_id",
		re:   regexp.MustCompile(`(?i)\[mention=(\d+)\].+?\[/mention\]`),
		resolve: func(r *Rewriter, m []string) (string, bool) {
			id, ok := parseID(m[1])
			if !ok {
				return "", false
			}

			name, ok := r.ix.UserByID(id)
			return "@" + name, ok
		},
	},
	{
		name: "quote",
		re:   regexp.MustCompile(`(?is)\[quote\](.*?)\[/quote\]`),
		resolve: always(func(m []string) string {
			return "\n> " + m[1] + "\n"
		}),
	},
	{
		name: "quote_user",
		re:   regexp.MustCompile(`(?is)\[quote=([^;\]]+)\](.*?)\[/quote\]`),
		resolve: func(r *Rewriter, m []string) (string, bool) {
			name, ok := r.ix.Username(unquote(m[1]))
			if !ok {
				return "", false
			}

			return "\n[quote=\"" + name + "\"]\n" + m[2] + "\n[/quote]\n", true
		},
	},
	{
		name: "quote_post",
		re:   regexp.MustCompile(`(?is)\[quote=([^;\]]+);(\d+)\](.*?)\[/quote\]`),
		resolve: func(r *Rewriter, m []string) (string, bool) {
			name, ok := r.ix.Username(unquote(m[1]))
			if !ok {
				return "", false
			}

			id, ok := parseID(m[2])
			if !ok {
				return "", false
			}

			post, ok := r.ix.Post(id)
			if !ok {
				return "", false
			}

			attr := name + ",post:" + strconv.Itoa(post.Position) + ",topic:" + strconv.FormatInt(post.DestinationTopicID, 10)

			return "\n[quote=\"" + attr + "\"]\n" + m[3] + "\n[/quote]\n", true
		},
	},
	{name: "html", re: regexp.MustCompile(`(?is)\[html\](.+?)\[/html\]`), resolve: fenced("html")},
	{name: "php", re: regexp.MustCompile(`(?is)\[php\](.+?)\[/php\]`), resolve: fenced("php")},
	{name: "code", re: regexp.MustCompile(`(?is)\[code\](.+?)\[/code\]`), resolve: fenced("")},
	{name: "highlight", re: regexp.MustCompile(`(?is)\[highlight[^\]]*\](.+?)\[/highlight\]`), resolve: fenced("")},
	{
		name: "samp",
		re:   regexp.MustCompile(`(?i)\[samp\](.+?)\[/samp\]`),
		resolve: always(func(m []string) string {
			return "`" + m[1] + "`"
		}),
	},
	{
		name: "youtube",
		re:   regexp.MustCompile(`(?i)\[youtube\]([\w-]+)\[/youtube\]`),
		resolve: always(func(m []string) string {
			return "http://youtu.be/" + m[1]
		}),
	},
	{
		name: "video",
		re:   regexp.MustCompile(`(?is)\[video=youtube;([\w-]+)\].*?\[/video\]`),
		resolve: always(func(m []string) string {
			return "http://youtu.be/" + m[1]
		}),
	},
	{
		name: "thread",
		re:   regexp.MustCompile(`(?i)\[thread\](\d+)\[/thread\]`),
		resolve: func(r *Rewriter, m []string) (string, bool) {
			return r.threadURL(m[1])
		},
	},
	{
		name: "thread_label",
		re:   regexp.MustCompile(`(?i)\[thread=(\d+)\](.+?)\[/thread\]`),
		resolve: func(r *Rewriter, m []string) (string, bool) {
			url, ok := r.threadURL(m[1])
			return "[" + m[2] + "](" + url + ")", ok
		},
	},
	{
		name: "post",
		re:   regexp.MustCompile(`(?i)\[post\](\d+)\[/post\]`),
		resolve: func(r *Rewriter, m []string) (string, bool) {
			return r.postURL(m[1])
		},
	},
	{
		name: "post_label",
		re:   regexp.MustCompile(`(?i)\[post=(\d+)\](.+?)\[/post\]`),
		resolve: func(r *Rewriter, m []string) (string, bool) {
			url, ok := r.postURL(m[1])
			return "[" + m[2] + "](" + url + ")", ok
		},
	},
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil
}

// unquote drops the double quotes some exports wrap quote authors in.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}

	return s
}
