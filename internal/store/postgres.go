package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/forumport/internal/dbpool"
	"github.com/persistorai/forumport/internal/models"
)

// PostgresStore writes the destination through a pgx pool.
type PostgresStore struct {
	pool   *dbpool.Pool
	log    *logrus.Logger
	locale string
}

// NewPostgresStore creates a PostgresStore over an open pool. The store owns
// the pool and closes it on Close.
func NewPostgresStore(pool *dbpool.Pool, log *logrus.Logger, opts Options) *PostgresStore {
	return &PostgresStore{pool: pool, log: log, locale: opts.locale()}
}

// InsertReturning inserts op.Rows in one transaction as multi-row INSERTs
// sized under the parameter limit. Without SkipConflicts any failure rolls
// back the whole batch. With SkipConflicts each chunk runs under a savepoint;
// a chunk that hits a duplicate is rolled back to it and redone row by row so
// only the duplicates are skipped and reported.
func (s *PostgresStore) InsertReturning(ctx context.Context, op models.InsertOp) ([]models.InsertResult, error) {
	if len(op.Rows) == 0 {
		return nil, nil
	}

	if err := validateInsert(op); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning insert into %s: %w", op.Table, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit.

	results, err := insertInChunks(ctx, &pgInsert{tx: tx, op: op}, op)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing insert into %s: %w", op.Table, err)
	}

	return results, nil
}

// pgInsert writes the chunks of one InsertOp inside tx.
type pgInsert struct {
	tx pgx.Tx
	op models.InsertOp
}

func (w *pgInsert) writeChunk(ctx context.Context, rows [][]any) ([]models.InsertResult, error) {
	if !w.op.SkipConflicts {
		return w.insertRows(ctx, w.tx, rows)
	}

	// A nested Begin is a savepoint.
	sp, err := w.tx.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating savepoint: %w", err)
	}

	results, err := w.insertRows(ctx, sp, rows)
	if err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return nil, fmt.Errorf("rolling back savepoint: %w", rbErr)
		}

		return nil, err
	}

	if err := sp.Commit(ctx); err != nil {
		return nil, fmt.Errorf("releasing savepoint: %w", err)
	}

	return results, nil
}

func (w *pgInsert) insertRows(ctx context.Context, tx pgx.Tx, rows [][]any) ([]models.InsertResult, error) {
	op := w.op

	args := make([]any, 0, len(rows)*len(op.Columns))
	for _, row := range rows {
		args = append(args, row...)
	}

	query := insertSQL(dollar, op.Table, op.Columns, len(rows), op.Returning)

	if len(op.Returning) == 0 {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return nil, wrapInsertErr(op.Table, err)
		}

		if tag.RowsAffected() != int64(len(rows)) {
			return nil, fmt.Errorf("inserting into %s: %w", op.Table, models.ErrRowCountMismatch)
		}

		return make([]models.InsertResult, len(rows)), nil
	}

	cursor, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapInsertErr(op.Table, err)
	}
	defer cursor.Close()

	results := make([]models.InsertResult, 0, len(rows))

	for cursor.Next() {
		values, dest := scanTargets(len(op.Returning))
		if err := cursor.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning %s insert result: %w", op.Table, err)
		}

		results = append(results, models.InsertResult{Values: values})
	}

	if err := cursor.Err(); err != nil {
		return nil, wrapInsertErr(op.Table, err)
	}

	if len(results) != len(rows) {
		return nil, fmt.Errorf("inserting into %s: %w (%d of %d)", op.Table, models.ErrRowCountMismatch, len(results), len(rows))
	}

	return results, nil
}

func (w *pgInsert) writeEach(ctx context.Context, rows [][]any) ([]models.InsertResult, error) {
	op := w.op
	results := make([]models.InsertResult, 0, len(rows))
	query := insertSQL(dollar, op.Table, op.Columns, 1, op.Returning)

	for _, row := range rows {
		sp, err := w.tx.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating savepoint: %w", err)
		}

		values, dest := scanTargets(len(op.Returning))
		if len(op.Returning) == 0 {
			_, err = sp.Exec(ctx, query, row...)
			values = nil
		} else {
			err = sp.QueryRow(ctx, query, row...).Scan(dest...)
		}

		if isUniqueViolation(err) {
			if rbErr := sp.Rollback(ctx); rbErr != nil {
				return nil, fmt.Errorf("rolling back savepoint: %w", rbErr)
			}

			results = append(results, models.InsertResult{Conflict: true})

			continue
		}

		if err != nil {
			sp.Rollback(ctx) //nolint:errcheck // the outer transaction rolls back too.
			return nil, wrapInsertErr(op.Table, err)
		}

		if err := sp.Commit(ctx); err != nil {
			return nil, fmt.Errorf("releasing savepoint: %w", err)
		}

		results = append(results, models.InsertResult{Values: values})
	}

	return results, nil
}

func wrapInsertErr(table string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("inserting into %s: %w: %w", table, models.ErrDuplicateKey, err)
	}

	return fmt.Errorf("inserting into %s: %w", table, err)
}

// UpdateBatch queues every row of op as one pgx batch inside a transaction.
func (s *PostgresStore) UpdateBatch(ctx context.Context, op models.UpdateOp) error {
	if len(op.Rows) == 0 {
		return nil
	}

	if err := validateUpdate(op); err != nil {
		return err
	}

	query := updateSQL(dollar, op.Table, op.KeyColumn, op.Columns)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning update of %s: %w", op.Table, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit.

	batch := &pgx.Batch{}
	for _, row := range op.Rows {
		args := append(append(make([]any, 0, len(row.Values)+1), row.Values...), row.Key)
		batch.Queue(query, args...)
	}

	br := tx.SendBatch(ctx, batch)
	for range op.Rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("updating %s: %w", op.Table, err)
		}
	}

	if err := br.Close(); err != nil {
		return fmt.Errorf("closing %s update batch: %w", op.Table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing update of %s: %w", op.Table, err)
	}

	return nil
}

// Recompute runs the statements of one step in a single transaction.
func (s *PostgresStore) Recompute(ctx context.Context, step models.RecomputeStep) error {
	stmts, err := postgresDialect.statements(step, s.locale)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning %s: %w", step, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit.

	for _, st := range stmts {
		tag, err := tx.Exec(ctx, st.sql, st.args...)
		if err != nil {
			return fmt.Errorf("recomputing %s: %w", step, err)
		}

		s.log.WithFields(logrus.Fields{"step": step, "rows": tag.RowsAffected()}).Debug("recompute statement done")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing %s: %w", step, err)
	}

	return nil
}

// UserBios returns every user with a raw bio.
func (s *PostgresStore) UserBios(ctx context.Context) ([]models.TextRow, error) {
	rows, err := s.pool.Query(ctx, userBiosSQL)
	if err != nil {
		return nil, fmt.Errorf("querying user bios: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TextRow, error) {
		var r models.TextRow
		err := row.Scan(&r.ID, &r.Text)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning user bios: %w", err)
	}

	return out, nil
}

// TopicIDs returns every destination topic id in ascending order.
func (s *PostgresStore) TopicIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, topicIDsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying topic ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scanning topic ids: %w", err)
	}

	return ids, nil
}

// PostSearchDocs returns the search inputs of one topic's posts.
func (s *PostgresStore) PostSearchDocs(ctx context.Context, topicID int64) ([]models.SearchDoc, error) {
	rows, err := s.pool.Query(ctx, postgresDialect.postSearchDocsSQL(), topicID)
	if err != nil {
		return nil, fmt.Errorf("querying search docs for topic %d: %w", topicID, err)
	}

	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SearchDoc, error) {
		var d models.SearchDoc
		err := row.Scan(&d.PostID, &d.Cooked, &d.TopicTitle, &d.CategoryName)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning search docs for topic %d: %w", topicID, err)
	}

	return docs, nil
}

// WritePostSearchData upserts search documents in one batch.
func (s *PostgresStore) WritePostSearchData(ctx context.Context, rows []models.TextRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := postgresDialect.postSearchSQL()

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(query, r.ID, s.locale, r.Text)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning post search write: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit.

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("writing post search data: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing post search data: %w", err)
	}

	return nil
}

// Ping verifies the pool can reach the server.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := s.pool.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}

	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
