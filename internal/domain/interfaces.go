// Package domain defines the collaborator interfaces the migration phases
// depend on. Store adapters and renderers implement them; phases never name
// a concrete adapter.
package domain

import (
	"context"

	"github.com/persistorai/forumport/internal/models"
)

// BulkStore is the destination store as the pipeline sees it.
type BulkStore interface {
	// InsertReturning persists op.Rows and returns one result per row in
	// submission order.
	InsertReturning(ctx context.Context, op models.InsertOp) ([]models.InsertResult, error)

	// UpdateBatch applies every row of op in a single transaction.
	UpdateBatch(ctx context.Context, op models.UpdateOp) error

	// Recompute runs one aggregate recomputation or index rebuild.
	Recompute(ctx context.Context, step models.RecomputeStep) error

	// UserBios returns every user with a non-empty raw bio.
	UserBios(ctx context.Context) ([]models.TextRow, error)

	// TopicIDs returns every destination topic id.
	TopicIDs(ctx context.Context) ([]int64, error)

	// PostSearchDocs returns the search inputs for the posts of one topic.
	PostSearchDocs(ctx context.Context, topicID int64) ([]models.SearchDoc, error)

	// WritePostSearchData replaces the search rows for the given posts.
	WritePostSearchData(ctx context.Context, rows []models.TextRow) error

	Ping(ctx context.Context) error
	Close()
}

// StoreFactory opens an independent store handle. Worker pools call it once
// per worker and again after a dropped connection.
type StoreFactory func(ctx context.Context) (BulkStore, error)

// RenderOptions tunes a single render call.
type RenderOptions struct {
	// NoFollow adds rel="nofollow" to every link.
	NoFollow bool
}

// Renderer turns raw post markup into cooked HTML. It may fail; callers fall
// back to the raw text.
type Renderer interface {
	Render(raw string, opts RenderOptions) (string, error)
}
