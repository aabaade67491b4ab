// Package stats drives the aggregate recomputations and search rebuilds that
// follow a bulk import. Every step is best-effort: a failure is logged and
// counted, and the next step still runs.
package stats

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/forumport/internal/domain"
	"github.com/persistorai/forumport/internal/metrics"
	"github.com/persistorai/forumport/internal/models"
	"github.com/persistorai/forumport/internal/render"
	"github.com/persistorai/forumport/internal/workpool"
)

// Step names that are not plain store recomputations.
const (
	StepUserBios   = "user_bios"
	StepPostSearch = "post_search"
)

const bioBatchSize = 5000

// StepResult is the outcome of one step.
type StepResult struct {
	Name     string
	Duration time.Duration
	Err      error
}

// Driver issues the recompute steps in a fixed order.
type Driver struct {
	store    domain.BulkStore
	renderer domain.Renderer
	pool     *workpool.Pool
	log      *logrus.Logger
}

// New creates a Driver. store runs the sequential steps; pool indexes post
// search data one topic per task.
func New(store domain.BulkStore, renderer domain.Renderer, pool *workpool.Pool, log *logrus.Logger) *Driver {
	return &Driver{store: store, renderer: renderer, pool: pool, log: log}
}

// Steps returns the step names in execution order.
func Steps() []string {
	return []string{
		StepUserBios,
		string(models.StepUserActions),
		string(models.StepGroupCounts),
		string(models.StepTopicStats),
		string(models.StepPostReplyUsers),
		string(models.StepCategorySearch),
		StepPostSearch,
		string(models.StepUserSearch),
	}
}

// Run executes every step and returns their results. It only returns early
// when ctx is cancelled.
func (d *Driver) Run(ctx context.Context) []StepResult {
	results := make([]StepResult, 0, len(Steps()))

	for _, name := range Steps() {
		if ctx.Err() != nil {
			results = append(results, StepResult{Name: name, Err: ctx.Err()})

			continue
		}

		start := time.Now()
		err := d.step(ctx, name)
		elapsed := time.Since(start)

		results = append(results, StepResult{Name: name, Duration: elapsed, Err: err})

		fields := logrus.Fields{"step": name, "duration": elapsed}
		if err != nil {
			metrics.StatsStepFailures.WithLabelValues(name).Inc()
			d.log.WithError(err).WithFields(fields).Error("stats step failed, continuing")

			continue
		}

		d.log.WithFields(fields).Info("stats step complete")
	}

	return results
}

func (d *Driver) step(ctx context.Context, name string) error {
	switch name {
	case StepUserBios:
		return d.userBios(ctx)
	case StepPostSearch:
		return d.postSearch(ctx)
	default:
		return d.store.Recompute(ctx, models.RecomputeStep(name))
	}
}

// userBios cooks every raw bio with nofollow links.
func (d *Driver) userBios(ctx context.Context) error {
	bios, err := d.store.UserBios(ctx)
	if err != nil {
		return fmt.Errorf("reading bios: %w", err)
	}

	rows := make([]models.UpdateRow, 0, len(bios))

	for _, b := range bios {
		cooked, err := d.renderer.Render(b.Text, domain.RenderOptions{NoFollow: true})
		if err != nil {
			metrics.RenderFailures.Inc()
			d.log.WithError(err).WithField("user_id", b.ID).Warn("render failed, using raw bio")

			cooked = b.Text
		}

		rows = append(rows, models.UpdateRow{Key: b.ID, Values: []any{cooked}})
	}

	for chunk := range slices.Chunk(rows, bioBatchSize) {
		err := d.store.UpdateBatch(ctx, models.UpdateOp{
			Table:     "users",
			KeyColumn: "id",
			Columns:   []string{"bio_cooked"},
			Rows:      chunk,
		})
		if err != nil {
			return fmt.Errorf("writing bios: %w", err)
		}
	}

	return nil
}

// postSearch clears post search data and rebuilds it topic by topic across
// the worker pool.
func (d *Driver) postSearch(ctx context.Context) error {
	if err := d.store.Recompute(ctx, models.StepPostSearchReset); err != nil {
		return err
	}

	ids, err := d.store.TopicIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing topics: %w", err)
	}

	res, err := d.pool.Run(ctx, ids, IndexTopic)

	d.log.WithFields(logrus.Fields{
		"topics":     res.Completed,
		"reconnects": res.Reconnects,
	}).Info("post search indexed")

	return err
}

// IndexTopic writes the search documents of one topic's posts.
func IndexTopic(ctx context.Context, store domain.BulkStore, topicID int64) error {
	docs, err := store.PostSearchDocs(ctx, topicID)
	if err != nil {
		return fmt.Errorf("reading posts of topic %d: %w", topicID, err)
	}

	if len(docs) == 0 {
		return nil
	}

	rows := make([]models.TextRow, len(docs))
	for i, doc := range docs {
		rows[i] = models.TextRow{ID: doc.PostID, Text: render.SearchDocument(doc.Cooked, doc.TopicTitle, doc.CategoryName)}
	}

	return store.WritePostSearchData(ctx, rows)
}
