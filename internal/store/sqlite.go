package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/forumport/internal/models"
)

// SQLiteStore writes the destination to a SQLite file through
// modernc.org/sqlite. Rows are inserted one statement at a time inside a
// transaction, so RETURNING values line up with submission order.
type SQLiteStore struct {
	db     *sql.DB
	log    *logrus.Logger
	locale string
}

// NewSQLiteStore creates a SQLiteStore over an open handle. The store owns
// the handle and closes it on Close.
func NewSQLiteStore(db *sql.DB, log *logrus.Logger, opts Options) *SQLiteStore {
	return &SQLiteStore{db: db, log: log, locale: opts.locale()}
}

// InsertReturning inserts op.Rows in one transaction. A constraint failure in
// SQLite aborts only the failing statement, so with SkipConflicts the
// transaction simply carries on.
func (s *SQLiteStore) InsertReturning(ctx context.Context, op models.InsertOp) ([]models.InsertResult, error) {
	if len(op.Rows) == 0 {
		return nil, nil
	}

	if err := validateInsert(op); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning insert into %s: %w", op.Table, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit.

	stmt, err := tx.PrepareContext(ctx, insertSQL(numbered, op.Table, op.Columns, 1, op.Returning))
	if err != nil {
		return nil, fmt.Errorf("preparing insert into %s: %w", op.Table, err)
	}
	defer stmt.Close()

	results := make([]models.InsertResult, 0, len(op.Rows))

	for _, row := range op.Rows {
		var values []int64

		if len(op.Returning) == 0 {
			_, err = stmt.ExecContext(ctx, row...)
		} else {
			var dest []any
			values, dest = scanTargets(len(op.Returning))
			err = stmt.QueryRowContext(ctx, row...).Scan(dest...)
		}

		if err != nil && op.SkipConflicts && isUniqueViolation(err) {
			results = append(results, models.InsertResult{Conflict: true})
			continue
		}

		if err != nil {
			return nil, wrapInsertErr(op.Table, err)
		}

		results = append(results, models.InsertResult{Values: values})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing insert into %s: %w", op.Table, err)
	}

	return results, nil
}

// UpdateBatch applies every row of op with one prepared statement.
func (s *SQLiteStore) UpdateBatch(ctx context.Context, op models.UpdateOp) error {
	if len(op.Rows) == 0 {
		return nil
	}

	if err := validateUpdate(op); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning update of %s: %w", op.Table, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit.

	stmt, err := tx.PrepareContext(ctx, updateSQL(numbered, op.Table, op.KeyColumn, op.Columns))
	if err != nil {
		return fmt.Errorf("preparing update of %s: %w", op.Table, err)
	}
	defer stmt.Close()

	for _, row := range op.Rows {
		args := append(append(make([]any, 0, len(row.Values)+1), row.Values...), row.Key)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("updating %s %d: %w", op.Table, row.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing update of %s: %w", op.Table, err)
	}

	return nil
}

// Recompute runs the statements of one step in a single transaction.
func (s *SQLiteStore) Recompute(ctx context.Context, step models.RecomputeStep) error {
	stmts, err := sqliteDialect.statements(step, s.locale)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning %s: %w", step, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit.

	for _, st := range stmts {
		res, err := tx.ExecContext(ctx, st.sql, st.args...)
		if err != nil {
			return fmt.Errorf("recomputing %s: %w", step, err)
		}

		n, _ := res.RowsAffected()
		s.log.WithFields(logrus.Fields{"step": step, "rows": n}).Debug("recompute statement done")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", step, err)
	}

	return nil
}

// UserBios returns every user with a raw bio.
func (s *SQLiteStore) UserBios(ctx context.Context) ([]models.TextRow, error) {
	rows, err := s.db.QueryContext(ctx, userBiosSQL)
	if err != nil {
		return nil, fmt.Errorf("querying user bios: %w", err)
	}
	defer rows.Close()

	var out []models.TextRow
	for rows.Next() {
		var r models.TextRow
		if err := rows.Scan(&r.ID, &r.Text); err != nil {
			return nil, fmt.Errorf("scanning user bio: %w", err)
		}

		out = append(out, r)
	}

	return out, rows.Err()
}

// TopicIDs returns every destination topic id in ascending order.
func (s *SQLiteStore) TopicIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, topicIDsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying topic ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning topic id: %w", err)
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// PostSearchDocs returns the search inputs of one topic's posts.
func (s *SQLiteStore) PostSearchDocs(ctx context.Context, topicID int64) ([]models.SearchDoc, error) {
	rows, err := s.db.QueryContext(ctx, sqliteDialect.postSearchDocsSQL(), topicID)
	if err != nil {
		return nil, fmt.Errorf("querying search docs for topic %d: %w", topicID, err)
	}
	defer rows.Close()

	var docs []models.SearchDoc
	for rows.Next() {
		var d models.SearchDoc
		if err := rows.Scan(&d.PostID, &d.Cooked, &d.TopicTitle, &d.CategoryName); err != nil {
			return nil, fmt.Errorf("scanning search doc: %w", err)
		}

		docs = append(docs, d)
	}

	return docs, rows.Err()
}

// WritePostSearchData upserts search documents in one transaction.
func (s *SQLiteStore) WritePostSearchData(ctx context.Context, rows []models.TextRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning post search write: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit.

	stmt, err := tx.PrepareContext(ctx, sqliteDialect.postSearchSQL())
	if err != nil {
		return fmt.Errorf("preparing post search write: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.ID, s.locale, r.Text); err != nil {
			return fmt.Errorf("writing search data for post %d: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing post search data: %w", err)
	}

	return nil
}

// Ping verifies the handle is usable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}

	return nil
}

// Close releases the handle.
func (s *SQLiteStore) Close() {
	if err := s.db.Close(); err != nil {
		s.log.WithError(err).Warn("closing sqlite handle")
	}
}
