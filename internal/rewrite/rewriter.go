// Package rewrite converts legacy bulletin-board markup in post bodies into
// destination markup, resolving user, topic and post references through an
// Index snapshot.
package rewrite

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/forumport/internal/metrics"
)

// Rewriter applies the ordered rule set. It holds no mutable state and is
// safe for concurrent use.
type Rewriter struct {
	ix      *Index
	baseURL string
	log     *logrus.Logger
}

// New creates a Rewriter. baseURL prefixes every generated topic link and
// may be empty for site-relative links.
func New(ix *Index, baseURL string, log *logrus.Logger) *Rewriter {
	return &Rewriter{ix: ix, baseURL: strings.TrimRight(baseURL, "/"), log: log}
}

// Rewrite returns raw with every rule applied in order. A span whose
// reference cannot be resolved is left exactly as it was.
func (r *Rewriter) Rewrite(raw string) string {
	for i := range rules {
		raw = r.apply(&rules[i], raw)
	}

	return raw
}

func (r *Rewriter) apply(rl *rule, s string) string {
	matches := rl.re.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	last := 0
	for _, loc := range matches {
		b.WriteString(s[last:loc[0]])

		groups := make([]string, len(loc)/2)
		for g := range groups {
			if loc[2*g] >= 0 {
				groups[g] = s[loc[2*g]:loc[2*g+1]]
			}
		}

		if out, ok := rl.resolve(r, groups); ok {
			b.WriteString(out)
		} else {
			b.WriteString(groups[0])
			metrics.UnresolvedReferences.WithLabelValues(rl.name).Inc()
			r.log.WithFields(logrus.Fields{"rule": rl.name, "span": groups[0]}).Debug("reference not resolved")
		}

		last = loc[1]
	}

	b.WriteString(s[last:])

	return b.String()
}

// TopicURL is the canonical link to a destination topic.
func (r *Rewriter) TopicURL(t TopicRef) string {
	return r.baseURL + "/t/" + t.Slug + "/" + strconv.FormatInt(t.DestinationID, 10)
}

func (r *Rewriter) threadURL(rawID string) (string, bool) {
	id, ok := parseID(rawID)
	if !ok {
		return "", false
	}

	t, ok := r.ix.Topic(id)
	if !ok {
		return "", false
	}

	return r.TopicURL(t), true
}

// postURL links to a post inside the destination topic of its original
// legacy topic.
func (r *Rewriter) postURL(rawID string) (string, bool) {
	id, ok := parseID(rawID)
	if !ok {
		return "", false
	}

	p, ok := r.ix.Post(id)
	if !ok {
		return "", false
	}

	t, ok := r.ix.Topic(p.TopicLegacyID)
	if !ok {
		return "", false
	}

	return r.TopicURL(t) + "/" + strconv.Itoa(p.Position), true
}
