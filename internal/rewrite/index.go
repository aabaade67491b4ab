package rewrite

import (
	"strings"

	"github.com/persistorai/forumport/internal/models"
)

// TopicRef locates a persisted topic.
type TopicRef struct {
	DestinationID int64
	Slug          string
}

// Index is a read-only snapshot of the legacy to destination identities the
// rules resolve against. It is built once, after materialization, and never
// written again, so any number of workers may share it.
type Index struct {
	names  map[string]string
	users  map[int64]string
	topics map[int64]TopicRef
	posts  map[int64]models.PostRef
}

// NewIndex snapshots the persisted users, topics and posts of ds.
func NewIndex(ds *models.Dataset) *Index {
	ix := &Index{
		names:  make(map[string]string, len(ds.Renames)),
		users:  make(map[int64]string, len(ds.Users)),
		topics: make(map[int64]TopicRef, len(ds.Topics)),
		posts:  make(map[int64]models.PostRef, len(ds.Posts)),
	}

	for id, u := range ds.Users {
		if u.Persisted() {
			ix.users[id] = u.Username
		}
	}

	for old := range ds.Renames {
		if u, ok := ds.UserByOriginalName(old); ok && u.Persisted() {
			ix.names[old] = u.Username
		}
	}

	for id, t := range ds.Topics {
		if t.Persisted() {
			ix.topics[id] = TopicRef{DestinationID: t.DestinationID, Slug: t.Slug}
		}
	}

	for id, p := range ds.Posts {
		if p.Persisted() {
			ix.posts[id] = models.PostRef{
				DestinationID:      p.DestinationID,
				Position:           p.Position,
				DestinationTopicID: p.DestinationTopicID,
				TopicLegacyID:      p.TopicLegacyID,
			}
		}
	}

	return ix
}

// Username resolves an exported username, case-insensitively.
func (ix *Index) Username(old string) (string, bool) {
	name, ok := ix.names[strings.ToLower(strings.TrimSpace(old))]
	return name, ok
}

// UserByID resolves a legacy user id to its destination username.
func (ix *Index) UserByID(legacyID int64) (string, bool) {
	name, ok := ix.users[legacyID]
	return name, ok
}

// Topic resolves a legacy topic id.
func (ix *Index) Topic(legacyID int64) (TopicRef, bool) {
	t, ok := ix.topics[legacyID]
	return t, ok
}

// Post resolves a legacy post id.
func (ix *Index) Post(legacyID int64) (models.PostRef, bool) {
	p, ok := ix.posts[legacyID]
	return p, ok
}
