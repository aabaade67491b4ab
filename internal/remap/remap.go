// Package remap applies the optional alias tables to a loaded dataset. It
// decides which destination groups and categories will exist and which
// legacy ids collapse onto each of them.
package remap

import (
	"github.com/sirupsen/logrus"

	"github.com/persistorai/forumport/internal/models"
	"github.com/persistorai/forumport/internal/textutil"
)

// Remapper fills Dataset.GroupTargets and Dataset.CategoryTargets.
type Remapper struct {
	log             *logrus.Logger
	categoryNameMax int
}

// New creates a Remapper. Aliased category names are cut to categoryNameMax
// runes.
func New(log *logrus.Logger, categoryNameMax int) *Remapper {
	if categoryNameMax <= 0 {
		categoryNameMax = 50
	}

	return &Remapper{log: log, categoryNameMax: categoryNameMax}
}

// Apply builds the destination targets and drops entities that an alias
// table excludes.
func (r *Remapper) Apply(ds *models.Dataset) {
	ds.GroupTargets = r.groupTargets(ds)
	ds.CategoryTargets = r.categoryTargets(ds)
	r.dropUnmappedTopics(ds)

	r.log.WithFields(logrus.Fields{
		"groups":     len(ds.GroupTargets),
		"categories": len(ds.CategoryTargets),
		"topics":     len(ds.Topics),
	}).Info("remapped identities")
}

func (r *Remapper) groupTargets(ds *models.Dataset) []*models.Target {
	if ds.GroupAliases.Empty() {
		targets := make([]*models.Target, 0, len(ds.Groups))
		for _, id := range models.SortedIDs(ds.Groups) {
			targets = append(targets, &models.Target{Name: ds.Groups[id].Name, Members: []int64{id}})
		}

		return targets
	}

	for _, id := range models.SortedIDs(ds.Groups) {
		if !ds.GroupAliases.Contains(id) {
			r.drop(ds, models.EntityGroup, id, "unmapped group")
			delete(ds.Groups, id)
		}
	}

	var targets []*models.Target

	for _, key := range ds.GroupAliases.Keys() {
		members := ds.GroupAliases.Members(key)

		first, ok := firstLoaded(members, ds.Groups)
		if !ok {
			r.log.WithField("new_id", key).Warn("group alias names no loaded group, skipping")

			continue
		}

		targets = append(targets, &models.Target{Name: first.Name, Members: members})
	}

	return targets
}

func (r *Remapper) categoryTargets(ds *models.Dataset) []*models.Target {
	if ds.CategoryAliases.Empty() {
		targets := make([]*models.Target, 0, len(ds.Categories))
		for _, id := range models.SortedIDs(ds.Categories) {
			c := ds.Categories[id]
			targets = append(targets, &models.Target{Name: c.Name, Description: c.Description, Members: []int64{id}})
		}

		return targets
	}

	for _, id := range models.SortedIDs(ds.Categories) {
		if !ds.CategoryAliases.Contains(id) {
			r.drop(ds, models.EntityCategory, id, "unmapped category")
			delete(ds.Categories, id)
		}
	}

	targets := make([]*models.Target, 0, len(ds.CategoryAliases.Keys()))

	for _, name := range ds.CategoryAliases.Keys() {
		members := ds.CategoryAliases.Members(name)
		t := &models.Target{Name: textutil.Truncate(name, r.categoryNameMax), Members: members}

		if first, ok := firstLoaded(members, ds.Categories); ok {
			t.Description = first.Description
		}

		targets = append(targets, t)
	}

	return targets
}

// dropUnmappedTopics removes topics, and their posts, whose category is not
// named by a non-empty category alias table.
func (r *Remapper) dropUnmappedTopics(ds *models.Dataset) {
	if ds.CategoryAliases.Empty() {
		return
	}

	for _, id := range models.SortedIDs(ds.Topics) {
		t := ds.Topics[id]
		if ds.CategoryAliases.Contains(t.CategoryLegacyID) {
			continue
		}

		r.log.WithFields(logrus.Fields{
			"legacy_id":   id,
			"title":       t.Title,
			"category_id": t.CategoryLegacyID,
		}).Warn("topic belongs to an unmapped category")
		ds.Report.Record(models.Rejected(models.EntityTopic, id, "unmapped category"))

		for _, postID := range t.PostIDs {
			delete(ds.Posts, postID)
			ds.Report.Record(models.Rejected(models.EntityPost, postID, "topic not imported"))
		}

		delete(ds.Topics, id)
	}
}

func (r *Remapper) drop(ds *models.Dataset, entity string, id int64, reason string) {
	r.log.WithFields(logrus.Fields{
		"entity":    entity,
		"legacy_id": id,
		"reason":    reason,
	}).Warn("entity not imported")
	ds.Report.Record(models.Rejected(entity, id, reason))
}

// firstLoaded returns the first member present in loaded.
func firstLoaded[T any](members []int64, loaded map[int64]*T) (*T, bool) {
	for _, id := range members {
		if v, ok := loaded[id]; ok {
			return v, true
		}
	}

	return nil, false
}
