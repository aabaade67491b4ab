package models

import "time"

// Topic is a legacy thread.
type Topic struct {
	LegacyID         int64
	Title            string
	Slug             string
	AuthorLegacyID   int64
	CreatedAt        time.Time
	CategoryLegacyID int64
	Views            int
	Visible          bool
	Pinned           bool
	PostIDs          []int64
	DestinationID    int64
}

// Persisted reports whether the topic has a destination id.
func (t *Topic) Persisted() bool { return t.DestinationID > 0 }

// Post is a legacy post. ParentLegacyID is zero when the post replies to nothing.
type Post struct {
	LegacyID           int64
	TopicLegacyID      int64
	AuthorLegacyID     int64
	CreatedAt          time.Time
	Raw                string
	Visible            bool
	ParentLegacyID     int64
	DestinationID      int64
	Position           int
	DestinationTopicID int64
}

// Persisted reports whether the post has a destination id.
func (p *Post) Persisted() bool { return p.DestinationID > 0 }

// PostRef is the destination location of a persisted legacy post.
type PostRef struct {
	DestinationID      int64
	Position           int
	DestinationTopicID int64
	TopicLegacyID      int64
}
