package rewrite

import (
	"context"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/forumport/internal/domain"
	"github.com/persistorai/forumport/internal/metrics"
	"github.com/persistorai/forumport/internal/models"
	"github.com/persistorai/forumport/internal/workpool"
)

const defaultBatchSize = 5000

// Pass rewrites and cooks every persisted post, one topic per task, and
// writes raw and cooked bodies back in batched updates.
type Pass struct {
	rw        *Rewriter
	renderer  domain.Renderer
	pool      *workpool.Pool
	batchSize int
	log       *logrus.Logger
}

// NewPass creates a Pass. batchSize caps the rows per update transaction.
func NewPass(rw *Rewriter, renderer domain.Renderer, pool *workpool.Pool, batchSize int, log *logrus.Logger) *Pass {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &Pass{rw: rw, renderer: renderer, pool: pool, batchSize: batchSize, log: log}
}

// Run processes every persisted topic of ds. The dataset must not change
// while Run is in progress.
func (p *Pass) Run(ctx context.Context, ds *models.Dataset) (workpool.Result, error) {
	var ids []int64
	for _, id := range models.SortedIDs(ds.Topics) {
		if ds.Topics[id].Persisted() {
			ids = append(ids, id)
		}
	}

	return p.pool.Run(ctx, ids, func(ctx context.Context, store domain.BulkStore, id int64) error {
		return p.topic(ctx, store, ds, ds.Topics[id])
	})
}

func (p *Pass) topic(ctx context.Context, store domain.BulkStore, ds *models.Dataset, t *models.Topic) error {
	rows := make([]models.UpdateRow, 0, len(t.PostIDs))

	for _, pid := range t.PostIDs {
		post, ok := ds.Posts[pid]
		if !ok || !post.Persisted() {
			continue
		}

		raw := p.rw.Rewrite(post.Raw)
		rows = append(rows, models.UpdateRow{Key: post.DestinationID, Values: []any{raw, p.cook(post.LegacyID, raw)}})
	}

	for chunk := range slices.Chunk(rows, p.batchSize) {
		err := store.UpdateBatch(ctx, models.UpdateOp{
			Table:     "posts",
			KeyColumn: "id",
			Columns:   []string{"raw", "cooked"},
			Rows:      chunk,
		})
		if err != nil {
			return fmt.Errorf("writing posts of topic %d: %w", t.LegacyID, err)
		}
	}

	metrics.PostsRewritten.Add(float64(len(rows)))

	return nil
}

// cook renders raw, falling back to raw itself when rendering fails.
func (p *Pass) cook(legacyID int64, raw string) string {
	cooked, err := p.renderer.Render(raw, domain.RenderOptions{})
	if err != nil {
		metrics.RenderFailures.Inc()
		p.log.WithError(err).WithField("legacy_id", legacyID).Warn("render failed, using raw body")

		return raw
	}

	return cooked
}
