// Package source reads a legacy forum export into an in-memory dataset.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/forumport/internal/models"
	"github.com/persistorai/forumport/internal/username"
)

// Destination field limits.
const (
	DefaultCategoryNameMax = 50
	DefaultTopicTitleMax   = 255
)

// Options configure a Loader.
type Options struct {
	Dir      string
	Encoding string
	Layout   Layout

	// Mapping paths. Empty means use the layout's file inside Dir when it
	// exists; a non-empty path must exist.
	GroupMappingPath    string
	CategoryMappingPath string

	UsernameMinLength int
	UsernameMaxLength int
	CategoryNameMax   int
	TopicTitleMax     int
}

// Loader builds a Dataset from an export directory. A Loader is used for a
// single run.
type Loader struct {
	log    *logrus.Logger
	opts   Options
	reader *tableReader
	names  *username.Suggester
}

// New creates a Loader, resolving the declared input encoding.
func New(log *logrus.Logger, opts Options) (*Loader, error) {
	enc, err := LookupEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}

	if opts.Layout.Users.Name == "" {
		opts.Layout = DefaultLayout()
	}

	if opts.CategoryNameMax <= 0 {
		opts.CategoryNameMax = DefaultCategoryNameMax
	}

	if opts.TopicTitleMax <= 0 {
		opts.TopicTitleMax = DefaultTopicTitleMax
	}

	return &Loader{
		log:    log,
		opts:   opts,
		reader: &tableReader{log: log, enc: enc},
		names:  username.New(opts.UsernameMinLength, opts.UsernameMaxLength),
	}, nil
}

// Load reads every file of the export. Users are read last so that their
// rejection logs can report how much content they authored.
func (l *Loader) Load(ctx context.Context, report *models.Report) (*models.Dataset, error) {
	ds := models.NewDataset(report)

	steps := []struct {
		name string
		fn   func(context.Context, *models.Dataset) error
	}{
		{"category mapping", l.loadCategoryMapping},
		{"categories", l.loadCategories},
		{"category permissions", l.loadPermissions},
		{"topics", l.loadTopics},
		{"posts", l.loadPosts},
		{"group mapping", l.loadGroupMapping},
		{"groups", l.loadGroups},
		{"users", l.loadUsers},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		l.log.WithField("step", step.name).Info("loading")

		if err := step.fn(ctx, ds); err != nil {
			return nil, fmt.Errorf("loading %s: %w", step.name, err)
		}

		l.log.WithFields(logrus.Fields{
			"step":     step.name,
			"duration": time.Since(start).String(),
		}).Debug("loaded")
	}

	return ds, nil
}

func (l *Loader) path(spec FileSpec) string {
	return filepath.Join(l.opts.Dir, spec.Name)
}

// mappingPath resolves an optional mapping file. It returns "" when no
// mapping should be read.
func (l *Loader) mappingPath(explicit string, spec FileSpec) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %s", models.ErrMissingMapping, explicit)
		}

		return explicit, nil
	}

	p := l.path(spec)
	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		return "", nil
	}

	return p, nil
}

// reject records a dropped entity and logs why.
func (l *Loader) reject(ds *models.Dataset, entity string, legacyID int64, reason string, fields logrus.Fields) {
	entry := l.log.WithFields(logrus.Fields{
		"entity":    entity,
		"legacy_id": legacyID,
		"reason":    reason,
	})
	if fields != nil {
		entry = entry.WithFields(fields)
	}

	entry.Warn("entity not imported")
	ds.Report.Record(models.Rejected(entity, legacyID, reason))
}

// malformed records a row that could not be parsed.
func (l *Loader) malformed(ds *models.Dataset, entity string, r row, err error) {
	l.log.WithError(err).WithFields(logrus.Fields{
		"entity": entity,
		"file":   r.file,
		"line":   r.line,
	}).Warn("skipping malformed row")
	ds.Report.Record(models.Rejected(entity, 0, "malformed row"))
}
