package store

import (
	"fmt"

	"github.com/persistorai/forumport/internal/models"
)

// Destination user action types.
const (
	actionNewTopic = 4
	actionReply    = 5
)

type statement struct {
	sql  string
	args []any
}

// sqlDialect captures the few places the two destinations differ in the
// recompute statements.
type sqlDialect struct {
	ph placeholder

	// truncate empties a table.
	truncate func(table string) string

	// vector wraps a text expression in the dialect's search document form.
	// configExpr names the text search configuration.
	vector func(configExpr, textExpr string) string
}

var postgresDialect = sqlDialect{
	ph:       dollar,
	truncate: func(table string) string { return "TRUNCATE TABLE " + table },
	vector: func(configExpr, textExpr string) string {
		return "TO_TSVECTOR(" + configExpr + "::text::regconfig, " + textExpr + ")"
	},
}

var sqliteDialect = sqlDialect{
	ph:       numbered,
	truncate: func(table string) string { return "DELETE FROM " + table },
	vector:   func(_, textExpr string) string { return textExpr },
}

// topicStatsSQL recomputes per-topic aggregates from the posts. Posts by the
// sentinel user (id <= 0) count toward totals but never as participants.
const topicStatsSQL = `UPDATE topics SET
	last_post_user_id = (SELECT p.user_id FROM posts p WHERE p.topic_id = topics.id
		ORDER BY p.created_at DESC, p.post_number DESC LIMIT 1),
	last_posted_at = (SELECT MAX(p.created_at) FROM posts p WHERE p.topic_id = topics.id),
	bumped_at = COALESCE((SELECT MAX(p.created_at) FROM posts p WHERE p.topic_id = topics.id), bumped_at),
	posts_count = (SELECT COUNT(*) FROM posts p WHERE p.topic_id = topics.id),
	participant_count = (SELECT COUNT(DISTINCT p.user_id) FROM posts p WHERE p.topic_id = topics.id AND p.user_id > 0),
	highest_post_number = COALESCE((SELECT MAX(p.post_number) FROM posts p WHERE p.topic_id = topics.id), 0),
	moderator_posts_count = (SELECT COUNT(*) FROM posts p WHERE p.topic_id = topics.id AND p.post_type = 2),
	word_count = COALESCE((SELECT SUM(p.word_count) FROM posts p WHERE p.topic_id = topics.id), 0),
	like_count = COALESCE((SELECT SUM(p.like_count) FROM posts p WHERE p.topic_id = topics.id), 0),
	bookmark_count = COALESCE((SELECT SUM(p.bookmark_count) FROM posts p WHERE p.topic_id = topics.id), 0),
	updated_at = CURRENT_TIMESTAMP`

// featuredUserSQL picks the n-th most active poster of a topic other than
// its author and its last poster. It must run after topicStatsSQL.
func featuredUserSQL(offset int) string {
	return fmt.Sprintf(`(SELECT p.user_id FROM posts p
		WHERE p.topic_id = topics.id AND p.user_id > 0
			AND p.user_id <> topics.user_id
			AND p.user_id <> COALESCE(topics.last_post_user_id, 0)
		GROUP BY p.user_id
		ORDER BY COUNT(*) DESC, MIN(p.post_number)
		LIMIT 1 OFFSET %d)`, offset)
}

func featuredUsersSQL() string {
	return "UPDATE topics SET" +
		" featured_user1_id = " + featuredUserSQL(0) + "," +
		" featured_user2_id = " + featuredUserSQL(1) + "," +
		" featured_user3_id = " + featuredUserSQL(2) + "," +
		" featured_user4_id = " + featuredUserSQL(3)
}

const postReplyUsersSQL = `UPDATE posts SET reply_to_user_id = (
	SELECT p2.user_id FROM posts p2
	WHERE p2.topic_id = posts.topic_id
		AND p2.post_number = posts.reply_to_post_number
		AND p2.user_id > 0)
WHERE reply_to_post_number IS NOT NULL`

const groupCountsSQL = `UPDATE groups SET
	user_count = (SELECT COUNT(*) FROM group_users gu WHERE gu.group_id = groups.id),
	updated_at = CURRENT_TIMESTAMP`

// statements returns the ordered statements for one recompute step.
func (d sqlDialect) statements(step models.RecomputeStep, locale string) ([]statement, error) {
	switch step {
	case models.StepUserActions:
		return []statement{
			{sql: d.truncate("user_actions")},
			{sql: fmt.Sprintf(`INSERT INTO user_actions
				(action_type, user_id, target_topic_id, target_post_id, acting_user_id, created_at, updated_at)
				SELECT %d, user_id, id, -1, user_id, created_at, created_at FROM topics WHERE user_id > 0`, actionNewTopic)},
			{sql: fmt.Sprintf(`INSERT INTO user_actions
				(action_type, user_id, target_topic_id, target_post_id, acting_user_id, created_at, updated_at)
				SELECT %d, user_id, topic_id, id, user_id, created_at, created_at FROM posts
				WHERE post_number > 1 AND user_id > 0`, actionReply)},
		}, nil

	case models.StepGroupCounts:
		return []statement{{sql: groupCountsSQL}}, nil

	case models.StepTopicStats:
		return []statement{{sql: topicStatsSQL}, {sql: featuredUsersSQL()}}, nil

	case models.StepPostReplyUsers:
		return []statement{{sql: postReplyUsersSQL}}, nil

	case models.StepCategorySearch:
		return []statement{
			{sql: d.truncate("category_search_data")},
			{
				sql: "INSERT INTO category_search_data (category_id, search_data, locale) SELECT id, " +
					d.vector(d.ph(1), "name") + ", " + d.ph(1) + " FROM categories",
				args: []any{locale},
			},
		}, nil

	case models.StepPostSearchReset:
		return []statement{{sql: d.truncate("post_search_data")}}, nil

	case models.StepUserSearch:
		text := "username || ' ' || COALESCE(name, '')"
		return []statement{
			{sql: d.truncate("user_search_data")},
			{
				sql: "INSERT INTO user_search_data (user_id, search_data, locale) SELECT id, " +
					d.vector("'simple'", text) + ", " + d.ph(1) + " FROM users",
				args: []any{locale},
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown recompute step %q", step)
	}
}

// postSearchSQL upserts one post's search document. Parameters are the post
// id, the locale and the document text.
func (d sqlDialect) postSearchSQL() string {
	return "INSERT INTO post_search_data (post_id, search_data, locale) VALUES (" +
		d.ph(1) + ", " + d.vector(d.ph(2), d.ph(3)) + ", " + d.ph(2) + ")" +
		" ON CONFLICT (post_id) DO UPDATE SET search_data = excluded.search_data, locale = excluded.locale"
}

const userBiosSQL = `SELECT id, bio_raw FROM users
	WHERE bio_raw IS NOT NULL AND bio_raw <> '' ORDER BY id`

const topicIDsSQL = `SELECT id FROM topics ORDER BY id`

func (d sqlDialect) postSearchDocsSQL() string {
	return `SELECT p.id, p.cooked, t.title, COALESCE(c.name, '')
	FROM posts p
	JOIN topics t ON t.id = p.topic_id
	LEFT JOIN categories c ON c.id = t.category_id
	WHERE p.topic_id = ` + d.ph(1) + `
	ORDER BY p.post_number`
}
