package materialize

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/forumport/internal/domain"
	"github.com/persistorai/forumport/internal/models"
	"github.com/persistorai/forumport/internal/textutil"
)

const (
	categoryColor     = "AB9364"
	categoryTextColor = "FFFFFF"
)

// categories creates one destination category per target, then a definition
// topic for every category with a description.
func (m *Materializer) categories(ctx context.Context, ds *models.Dataset) error {
	rows := make([][]any, len(ds.CategoryTargets))
	for i, t := range ds.CategoryTargets {
		rows[i] = []any{
			t.Name,
			textutil.Slugify(t.Name),
			nullable(t.Description),
			categoryColor,
			categoryTextColor,
			models.SentinelUserID,
		}
	}

	results, err := m.insert(ctx, models.InsertOp{
		Table:         "categories",
		Columns:       []string{"name", "slug", "description", "color", "text_color", "user_id"},
		Rows:          rows,
		Returning:     []string{"id"},
		SkipConflicts: true,
	}, m.opts.BatchSize)
	if err != nil {
		return err
	}

	var described []*models.Target

	for i, res := range results {
		t := ds.CategoryTargets[i]

		if res.Conflict {
			conflicted := loadedMembers(t.Members, ds.Categories)
			if len(conflicted) == 0 && len(t.Members) > 0 {
				conflicted = t.Members[:1]
			}

			for _, id := range conflicted {
				m.conflict(ds, models.EntityCategory, id, "duplicate name", logrus.Fields{"name": t.Name})
			}

			continue
		}

		t.DestinationID = res.Values[0]

		for _, id := range t.Members {
			m.categoryDest[id] = t.DestinationID
			m.categoryName[id] = t.Name

			if c, ok := ds.Categories[id]; ok {
				c.DestinationID = t.DestinationID
				ds.Report.Record(models.Accepted(models.EntityCategory, id))
			}
		}

		if t.Description != "" {
			described = append(described, t)
		}
	}

	return m.definitionTopics(ctx, described)
}

// definitionTopics writes the "About the X category" topic of each target,
// its description post, and links the topic back from the category.
func (m *Materializer) definitionTopics(ctx context.Context, targets []*models.Target) error {
	if len(targets) == 0 {
		return nil
	}

	now := m.now().UTC()

	topicRows := make([][]any, len(targets))
	for i, t := range targets {
		title := "About the " + t.Name + " category"
		topicRows[i] = []any{
			title, textutil.Slugify(title), models.SentinelUserID, t.DestinationID,
			true, nil, 0, now, models.SentinelUserID, now, now,
		}
	}

	topics, err := m.insert(ctx, models.InsertOp{
		Table:     "topics",
		Columns:   topicColumns,
		Rows:      topicRows,
		Returning: []string{"id"},
	}, m.opts.BatchSize)
	if err != nil {
		return err
	}

	postRows := make([][]any, len(targets))
	links := make([]models.UpdateRow, len(targets))

	for i, t := range targets {
		topicID := topics[i].Values[0]
		postRows[i] = []any{
			topicID, models.SentinelUserID, t.Description, m.cook(t.Description),
			1, 1, nil, false, textutil.WordCount(t.Description),
			models.SentinelUserID, now, now,
		}
		links[i] = models.UpdateRow{Key: t.DestinationID, Values: []any{topicID}}
	}

	if _, err := m.insert(ctx, models.InsertOp{
		Table:     "posts",
		Columns:   postColumns,
		Rows:      postRows,
		Returning: []string{"id"},
	}, m.opts.PostBatchSize); err != nil {
		return err
	}

	return m.store.UpdateBatch(ctx, models.UpdateOp{
		Table:     "categories",
		KeyColumn: "id",
		Columns:   []string{"topic_id"},
		Rows:      links,
	})
}

func (m *Materializer) cook(raw string) string {
	if m.opts.Renderer == nil {
		return raw
	}

	cooked, err := m.opts.Renderer.Render(raw, domain.RenderOptions{})
	if err != nil {
		m.log.WithError(err).Warn("render failed, using raw description")

		return raw
	}

	return cooked
}

type permKey struct {
	category int64
	group    int64
}

// permissions grants each kept group its level on each kept category.
// Aliasing can make several legacy rows land on one destination pair; the
// most permissive level wins.
func (m *Materializer) permissions(ctx context.Context, ds *models.Dataset) error {
	levels := make(map[permKey]models.PermissionLevel)
	source := make(map[permKey]int64)

	var order []permKey

	for _, p := range ds.Permissions {
		cid, ok := m.categoryDest[p.CategoryLegacyID]
		if !ok {
			m.reject(ds, models.EntityPermission, p.CategoryLegacyID, "category not persisted")

			continue
		}

		gid, ok := m.groupDest[p.GroupLegacyID]
		if !ok {
			m.reject(ds, models.EntityPermission, p.CategoryLegacyID, "group not persisted")

			continue
		}

		key := permKey{category: cid, group: gid}

		current, seen := levels[key]
		if !seen {
			order = append(order, key)
			source[key] = p.CategoryLegacyID
			levels[key] = p.Level

			continue
		}

		if p.Level.MorePermissive(current) {
			levels[key] = p.Level
		}
	}

	rows := make([][]any, len(order))
	for i, key := range order {
		rows[i] = []any{key.category, key.group, int(levels[key])}
	}

	results, err := m.insert(ctx, models.InsertOp{
		Table:         "category_groups",
		Columns:       []string{"category_id", "group_id", "permission_type"},
		Rows:          rows,
		SkipConflicts: true,
	}, m.opts.BatchSize)
	if err != nil {
		return err
	}

	for i, res := range results {
		key := order[i]

		if res.Conflict {
			m.conflict(ds, models.EntityPermission, source[key], "duplicate permission", logrus.Fields{"group_id": key.group})

			continue
		}

		ds.Report.Record(models.Accepted(models.EntityPermission, source[key]))
	}

	return nil
}
