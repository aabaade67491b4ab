package source

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/forumport/internal/models"
	"github.com/persistorai/forumport/internal/permission"
	"github.com/persistorai/forumport/internal/textutil"
)

var groupNameJunk = regexp.MustCompile(`[^A-Za-z0-9_]`)

func (l *Loader) loadCategories(ctx context.Context, ds *models.Dataset) error {
	spec := l.opts.Layout.Categories

	err := l.reader.read(ctx, l.path(spec), spec, []string{FieldID, FieldTitle}, func(r row) error {
		id, err := r.id(FieldID)
		if err != nil {
			l.malformed(ds, models.EntityCategory, r, err)

			return nil
		}

		if _, dup := ds.Categories[id]; dup {
			l.reject(ds, models.EntityCategory, id, "duplicate id", nil)

			return nil
		}

		name := textutil.Truncate(strings.TrimSpace(textutil.Normalize(r.str(FieldTitle))), l.opts.CategoryNameMax)
		if name == "" {
			l.reject(ds, models.EntityCategory, id, "empty name", nil)

			return nil
		}

		ds.Categories[id] = &models.Category{
			LegacyID:    id,
			Name:        name,
			Description: strings.TrimSpace(textutil.Normalize(r.str(FieldDescription))),
		}

		return nil
	})
	if err != nil {
		return err
	}

	l.log.WithField("count", len(ds.Categories)).Info("loaded categories")

	return nil
}

func (l *Loader) loadPermissions(ctx context.Context, ds *models.Dataset) error {
	spec := l.opts.Layout.Permissions
	required := []string{FieldCategoryID, FieldGroupID, FieldPermissions}

	err := l.reader.read(ctx, l.path(spec), spec, required, func(r row) error {
		categoryID, err := r.id(FieldCategoryID)
		if err != nil {
			l.malformed(ds, models.EntityPermission, r, err)

			return nil
		}

		groupID, err := r.id(FieldGroupID)
		if err != nil {
			l.malformed(ds, models.EntityPermission, r, err)

			return nil
		}

		level, ok := permission.Translate(r.intOr(FieldPermissions, 0))
		if !ok {
			l.log.WithFields(logrus.Fields{
				"category_id": categoryID,
				"group_id":    groupID,
			}).Debug("group cannot see category, no permission row")
			ds.Report.Record(models.Rejected(models.EntityPermission, categoryID, "not visible"))

			return nil
		}

		ds.Permissions = append(ds.Permissions, &models.CategoryPermission{
			CategoryLegacyID: categoryID,
			GroupLegacyID:    groupID,
			Level:            level,
		})

		return nil
	})
	if err != nil {
		return err
	}

	l.log.WithField("count", len(ds.Permissions)).Info("loaded category permissions")

	return nil
}

func (l *Loader) loadTopics(ctx context.Context, ds *models.Dataset) error {
	spec := l.opts.Layout.Topics
	required := []string{FieldID, FieldTitle, FieldAuthorID, FieldCreatedAt, FieldCategoryID}

	err := l.reader.read(ctx, l.path(spec), spec, required, func(r row) error {
		id, err := r.id(FieldID)
		if err != nil {
			l.malformed(ds, models.EntityTopic, r, err)

			return nil
		}

		if _, dup := ds.Topics[id]; dup {
			l.reject(ds, models.EntityTopic, id, "duplicate id", nil)

			return nil
		}

		title := textutil.Truncate(strings.TrimSpace(textutil.Normalize(r.str(FieldTitle))), l.opts.TopicTitleMax)

		ds.Topics[id] = &models.Topic{
			LegacyID:         id,
			Title:            title,
			Slug:             textutil.Slugify(title),
			AuthorLegacyID:   r.intOr(FieldAuthorID, 0),
			CreatedAt:        time.Unix(r.intOr(FieldCreatedAt, 0), 0).UTC(),
			CategoryLegacyID: r.intOr(FieldCategoryID, 0),
			Views:            int(r.intOr(FieldViews, 0)),
			Visible:          r.intOr(FieldVisible, 1) == 1,
			Pinned:           r.flag(FieldSticky),
		}

		return nil
	})
	if err != nil {
		return err
	}

	l.log.WithField("count", len(ds.Topics)).Info("loaded topics")

	return nil
}

func (l *Loader) loadPosts(ctx context.Context, ds *models.Dataset) error {
	spec := l.opts.Layout.Posts
	required := []string{FieldID, FieldTopicID, FieldAuthorID, FieldCreatedAt, FieldBody}

	err := l.reader.read(ctx, l.path(spec), spec, required, func(r row) error {
		id, err := r.id(FieldID)
		if err != nil {
			l.malformed(ds, models.EntityPost, r, err)

			return nil
		}

		if _, dup := ds.Posts[id]; dup {
			l.reject(ds, models.EntityPost, id, "duplicate id", nil)

			return nil
		}

		topicID := r.intOr(FieldTopicID, 0)

		topic, ok := ds.Topics[topicID]
		if !ok {
			l.reject(ds, models.EntityPost, id, "topic not loaded", logrus.Fields{"topic_id": topicID})

			return nil
		}

		ds.Posts[id] = &models.Post{
			LegacyID:       id,
			TopicLegacyID:  topicID,
			AuthorLegacyID: r.intOr(FieldAuthorID, 0),
			CreatedAt:      time.Unix(r.intOr(FieldCreatedAt, 0), 0).UTC(),
			Raw:            textutil.Normalize(r.str(FieldBody)),
			Visible:        r.intOr(FieldVisible, 1) == 1,
			ParentLegacyID: r.intOr(FieldParentID, 0),
		}
		topic.PostIDs = append(topic.PostIDs, id)

		return nil
	})
	if err != nil {
		return err
	}

	l.log.WithField("count", len(ds.Posts)).Info("loaded posts")

	return nil
}

func (l *Loader) loadGroups(ctx context.Context, ds *models.Dataset) error {
	spec := l.opts.Layout.Groups

	err := l.reader.read(ctx, l.path(spec), spec, []string{FieldID, FieldTitle}, func(r row) error {
		id, err := r.id(FieldID)
		if err != nil {
			l.malformed(ds, models.EntityGroup, r, err)

			return nil
		}

		if _, dup := ds.Groups[id]; dup {
			l.reject(ds, models.EntityGroup, id, "duplicate id", nil)

			return nil
		}

		name := groupNameJunk.ReplaceAllString(strings.TrimSpace(r.str(FieldTitle)), "")
		if name == "" {
			l.reject(ds, models.EntityGroup, id, "empty name", nil)

			return nil
		}

		ds.Groups[id] = &models.Group{LegacyID: id, Name: name}

		return nil
	})
	if err != nil {
		return err
	}

	l.log.WithField("count", len(ds.Groups)).Info("loaded groups")

	return nil
}

type authored struct {
	topics int
	posts  int
}

func authoredCounts(ds *models.Dataset) map[int64]authored {
	counts := make(map[int64]authored)

	for _, t := range ds.Topics {
		c := counts[t.AuthorLegacyID]
		c.topics++
		counts[t.AuthorLegacyID] = c
	}

	for _, p := range ds.Posts {
		c := counts[p.AuthorLegacyID]
		c.posts++
		counts[p.AuthorLegacyID] = c
	}

	return counts
}

// loadUsers accepts users with a unique email and gives each a unique
// username. Rejected users never reach the username index.
func (l *Loader) loadUsers(ctx context.Context, ds *models.Dataset) error {
	spec := l.opts.Layout.Users
	required := []string{FieldID, FieldUsername, FieldEmail}
	counts := authoredCounts(ds)

	err := l.reader.read(ctx, l.path(spec), spec, required, func(r row) error {
		id, err := r.id(FieldID)
		if err != nil {
			l.malformed(ds, models.EntityUser, r, err)

			return nil
		}

		c := counts[id]
		fields := logrus.Fields{"topics": c.topics, "posts": c.posts}

		if _, dup := ds.Users[id]; dup {
			l.reject(ds, models.EntityUser, id, "duplicate id", fields)

			return nil
		}

		email := strings.TrimSpace(r.str(FieldEmail))
		if email == "" {
			l.reject(ds, models.EntityUser, id, "missing email", fields)

			return nil
		}

		emailKey := strings.ToLower(email)
		if other, taken := ds.EmailIndex[emailKey]; taken {
			fields["other_user"] = other
			l.reject(ds, models.EntityUser, id, "duplicate email", fields)

			return nil
		}

		original := strings.TrimSpace(r.str(FieldUsername))
		chosen := l.names.Claim(original)

		if chosen != original {
			l.log.WithFields(logrus.Fields{
				"legacy_id": id,
				"from":      original,
				"to":        chosen,
			}).Info("username changed")
		}

		ds.Users[id] = &models.User{
			LegacyID:         id,
			GroupLegacyID:    r.intOr(FieldGroupID, 0),
			DisplayName:      original,
			OriginalUsername: original,
			Username:         chosen,
			Email:            email,
			Website:          strings.TrimSpace(r.str(FieldWebsite)),
			Title:            strings.TrimSpace(r.str(FieldUserTitle)),
			Bio:              strings.TrimSpace(textutil.Normalize(r.str(FieldBio))),
		}

		ds.EmailIndex[emailKey] = id
		ds.UsernameIndex[strings.ToLower(chosen)] = id

		if _, seen := ds.Renames[strings.ToLower(original)]; !seen {
			ds.Renames[strings.ToLower(original)] = chosen
		}

		return nil
	})
	if err != nil {
		return err
	}

	l.log.WithField("count", len(ds.Users)).Info("loaded users")

	return nil
}
