package materialize

import (
	"context"
	"slices"

	"github.com/persistorai/forumport/internal/models"
	"github.com/persistorai/forumport/internal/textutil"
)

var topicColumns = []string{
	"title", "slug", "user_id", "category_id", "visible", "pinned_at", "views",
	"last_posted_at", "last_post_user_id", "bumped_at", "created_at",
}

var postColumns = []string{
	"topic_id", "user_id", "raw", "cooked", "post_number", "sort_order",
	"reply_to_post_number", "hidden", "word_count", "last_editor_id", "last_version_at", "created_at",
}

// topics persists every valid topic, BatchSize topics at a time, each batch
// followed by the posts of its topics.
func (m *Materializer) topics(ctx context.Context, ds *models.Dataset) error {
	valid := m.validTopics(ds)

	for start := 0; start < len(valid); start += m.opts.BatchSize {
		batch := valid[start:min(start+m.opts.BatchSize, len(valid))]

		if err := m.topicBatch(ctx, ds, batch); err != nil {
			return err
		}
	}

	// Posts whose topic never made it are accounted for once here.
	for _, id := range models.SortedIDs(ds.Posts) {
		p := ds.Posts[id]
		if t, ok := ds.Topics[p.TopicLegacyID]; !ok || !t.Persisted() {
			ds.Report.Record(models.Rejected(models.EntityPost, id, "topic not imported"))
		}
	}

	return nil
}

// validTopics filters out topics without posts, with a rejected or
// unpersisted author, or whose category was not persisted.
func (m *Materializer) validTopics(ds *models.Dataset) []*models.Topic {
	var valid []*models.Topic

	for _, id := range models.SortedIDs(ds.Topics) {
		t := ds.Topics[id]

		reason := ""

		author, ok := ds.Users[t.AuthorLegacyID]

		switch {
		case len(t.PostIDs) == 0:
			reason = "no posts"
		case !ok:
			reason = "author rejected"
		case !author.Persisted():
			reason = "author not persisted"
		default:
			if _, ok := m.categoryDest[t.CategoryLegacyID]; !ok {
				reason = "category not persisted"
			}
		}

		if reason != "" {
			m.reject(ds, models.EntityTopic, id, reason)

			continue
		}

		valid = append(valid, t)
	}

	return valid
}

func (m *Materializer) topicBatch(ctx context.Context, ds *models.Dataset, batch []*models.Topic) error {
	rows := make([][]any, len(batch))

	for i, t := range batch {
		author := ds.Users[t.AuthorLegacyID].DestinationID

		var pinnedAt any
		if t.Pinned {
			pinnedAt = t.CreatedAt
		}

		rows[i] = []any{
			t.Title, t.Slug, author, m.categoryDest[t.CategoryLegacyID], t.Visible, pinnedAt, t.Views,
			t.CreatedAt, author, t.CreatedAt, t.CreatedAt,
		}
	}

	results, err := m.insert(ctx, models.InsertOp{
		Table:     "topics",
		Columns:   topicColumns,
		Rows:      rows,
		Returning: []string{"id"},
	}, len(batch))
	if err != nil {
		return err
	}

	for i, t := range batch {
		t.DestinationID = results[i].Values[0]
		ds.Report.Record(models.Accepted(models.EntityTopic, t.LegacyID))
	}

	var (
		posts    []*models.Post
		postRows [][]any
	)

	for _, t := range batch {
		for _, p := range m.orderPosts(ds, t) {
			posts = append(posts, p)
			postRows = append(postRows, m.postRow(ds, p))
		}
	}

	postResults, err := m.insert(ctx, models.InsertOp{
		Table:     "posts",
		Columns:   postColumns,
		Rows:      postRows,
		Returning: []string{"id"},
	}, m.opts.PostBatchSize)
	if err != nil {
		return err
	}

	for i, p := range posts {
		p.DestinationID = postResults[i].Values[0]
		ds.Report.Record(models.Accepted(models.EntityPost, p.LegacyID))
	}

	return nil
}

// orderPosts sorts a topic's posts by ascending legacy id and numbers them
// from 1. A reply reference is kept only when the parent is an earlier post
// of the same topic.
func (m *Materializer) orderPosts(ds *models.Dataset, t *models.Topic) []*models.Post {
	ids := slices.Clone(t.PostIDs)
	slices.Sort(ids)

	posts := make([]*models.Post, 0, len(ids))
	for _, id := range ids {
		p, ok := ds.Posts[id]
		if !ok {
			continue
		}

		p.Position = len(posts) + 1
		p.DestinationTopicID = t.DestinationID
		posts = append(posts, p)
	}

	return posts
}

// replyTo returns the position p replies to, or nil.
func replyTo(ds *models.Dataset, p *models.Post) any {
	if p.ParentLegacyID == 0 {
		return nil
	}

	parent, ok := ds.Posts[p.ParentLegacyID]
	if !ok || parent.TopicLegacyID != p.TopicLegacyID || parent.Position == 0 || parent.Position >= p.Position {
		return nil
	}

	return parent.Position
}

func (m *Materializer) postRow(ds *models.Dataset, p *models.Post) []any {
	author := models.SentinelUserID
	if u, ok := ds.Users[p.AuthorLegacyID]; ok && u.Persisted() {
		author = u.DestinationID
	}

	return []any{
		p.DestinationTopicID, author, p.Raw, p.Raw, p.Position, p.Position,
		replyTo(ds, p), !p.Visible, textutil.WordCount(p.Raw),
		author, p.CreatedAt, p.CreatedAt,
	}
}
