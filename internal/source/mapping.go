package source

import (
	"context"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/forumport/internal/models"
)

// loadCategoryMapping reads `id,name` rows. Every legacy category sharing a
// name collapses onto one destination category of that name.
func (l *Loader) loadCategoryMapping(ctx context.Context, ds *models.Dataset) error {
	spec := l.opts.Layout.CategoryMapping

	path, err := l.mappingPath(l.opts.CategoryMappingPath, spec)
	if err != nil || path == "" {
		return err
	}

	table := models.NewAliasTable()

	err = l.reader.read(ctx, path, spec, []string{FieldID, FieldName}, func(r row) error {
		id, err := r.id(FieldID)
		name := strings.TrimSpace(r.str(FieldName))

		if err != nil || name == "" {
			l.log.WithFields(logrus.Fields{"file": r.file, "line": r.line}).
				Warn("skipping invalid category mapping row")

			return nil
		}

		if !table.Add(id, name) {
			l.log.WithField("legacy_id", id).Warn("category mapped twice, keeping first mapping")
		}

		return nil
	})
	if err != nil {
		return err
	}

	ds.CategoryAliases = table
	l.log.WithField("aliases", len(table.Keys())).Info("loaded category mapping")

	return nil
}

// loadGroupMapping reads `old_id,new_id` rows. The new id names a legacy
// group that survives; it joins its own alias set.
func (l *Loader) loadGroupMapping(ctx context.Context, ds *models.Dataset) error {
	spec := l.opts.Layout.GroupMapping

	path, err := l.mappingPath(l.opts.GroupMappingPath, spec)
	if err != nil || path == "" {
		return err
	}

	table := models.NewAliasTable()

	err = l.reader.read(ctx, path, spec, []string{FieldID, FieldNewID}, func(r row) error {
		oldID, errOld := r.id(FieldID)
		newID, errNew := r.id(FieldNewID)

		if errOld != nil || errNew != nil {
			l.log.WithFields(logrus.Fields{"file": r.file, "line": r.line}).
				Warn("skipping invalid group mapping row")

			return nil
		}

		key := strconv.FormatInt(newID, 10)

		if !table.Add(oldID, key) {
			l.log.WithField("legacy_id", oldID).Warn("group mapped twice, keeping first mapping")
		}

		table.Add(newID, key)

		return nil
	})
	if err != nil {
		return err
	}

	ds.GroupAliases = table
	l.log.WithField("aliases", len(table.Keys())).Info("loaded group mapping")

	return nil
}
