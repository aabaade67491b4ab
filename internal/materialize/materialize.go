// Package materialize persists a remapped dataset to the destination in
// dependency order, attaching destination ids to the in-memory entities as
// each batch returns.
package materialize

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/forumport/internal/domain"
	"github.com/persistorai/forumport/internal/metrics"
	"github.com/persistorai/forumport/internal/models"
)

const (
	defaultBatchSize     = 10000
	defaultPostBatchSize = 5000
)

// Options tune a Materializer. Zero values select the defaults.
type Options struct {
	BatchSize     int
	PostBatchSize int

	// Renderer cooks category description posts. Nil stores them raw.
	Renderer domain.Renderer

	// Progress, if set, is called after every batch with the table and the
	// number of rows submitted so far in the current phase.
	Progress func(table string, done, total int)
}

// Materializer writes groups, users, memberships, categories, category
// permissions, topics and posts, in that order. It is single-threaded: batch
// order determines which destination id belongs to which entity.
type Materializer struct {
	store domain.BulkStore
	log   *logrus.Logger
	opts  Options
	now   func() time.Time

	groupDest    map[int64]int64
	categoryDest map[int64]int64
	categoryName map[int64]string
}

// New creates a Materializer writing to store.
func New(store domain.BulkStore, log *logrus.Logger, opts Options) *Materializer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	if opts.PostBatchSize <= 0 {
		opts.PostBatchSize = defaultPostBatchSize
	}

	return &Materializer{store: store, log: log, opts: opts, now: time.Now}
}

// Run persists ds. Uniqueness conflicts on single entities are recorded and
// skipped; any other store failure aborts the run.
func (m *Materializer) Run(ctx context.Context, ds *models.Dataset) error {
	m.groupDest = make(map[int64]int64)
	m.categoryDest = make(map[int64]int64)
	m.categoryName = make(map[int64]string)

	steps := []struct {
		name string
		fn   func(context.Context, *models.Dataset) error
	}{
		{"groups", m.groups},
		{"users", m.users},
		{"memberships", m.memberships},
		{"categories", m.categories},
		{"permissions", m.permissions},
		{"topics", m.topics},
	}

	for _, s := range steps {
		start := time.Now()

		if err := s.fn(ctx, ds); err != nil {
			return fmt.Errorf("persisting %s: %w", s.name, err)
		}

		m.log.WithFields(logrus.Fields{"step": s.name, "duration": time.Since(start)}).Info("persisted")
	}

	return nil
}

// insert submits op.Rows in batches of size and returns one result per row.
func (m *Materializer) insert(ctx context.Context, op models.InsertOp, size int) ([]models.InsertResult, error) {
	results := make([]models.InsertResult, 0, len(op.Rows))
	all := op.Rows

	for start := 0; start < len(all); start += size {
		batch := op
		batch.Rows = all[start:min(start+size, len(all))]

		began := time.Now()

		res, err := m.store.InsertReturning(ctx, batch)
		if err != nil {
			return nil, err
		}

		if len(res) != len(batch.Rows) {
			return nil, fmt.Errorf("%s batch at row %d: %w", op.Table, start, models.ErrRowCountMismatch)
		}

		elapsed := time.Since(began)
		metrics.BatchDuration.WithLabelValues(op.Table).Observe(elapsed.Seconds())
		metrics.BatchRows.WithLabelValues(op.Table).Add(float64(len(batch.Rows)))

		results = append(results, res...)

		m.log.WithFields(logrus.Fields{
			"batch":    start/size + 1,
			"rows":     len(batch.Rows),
			"table":    op.Table,
			"duration": elapsed,
		}).Info("batch persisted")

		if m.opts.Progress != nil {
			m.opts.Progress(op.Table, len(results), len(all))
		}
	}

	return results, nil
}

func (m *Materializer) conflict(ds *models.Dataset, entity string, legacyID int64, reason string, fields logrus.Fields) {
	m.log.WithFields(fields).WithFields(logrus.Fields{
		"entity":    entity,
		"legacy_id": legacyID,
		"reason":    reason,
	}).Warn("uniqueness conflict, entity skipped")
	ds.Report.Record(models.Conflict(entity, legacyID, reason))
}

func (m *Materializer) reject(ds *models.Dataset, entity string, legacyID int64, reason string) {
	m.log.WithFields(logrus.Fields{
		"entity":    entity,
		"legacy_id": legacyID,
		"reason":    reason,
	}).Warn("entity not imported")
	ds.Report.Record(models.Rejected(entity, legacyID, reason))
}

// nullable maps zero values to SQL NULL.
func nullable[T comparable](v T) any {
	var zero T
	if v == zero {
		return nil
	}

	return v
}
