// Package store provides the destination bulk stores.
//
// PostgresStore is the production adapter over a pgx pool; SQLiteStore backs
// local rehearsals and the end-to-end tests. Both build their statements from
// the same builders in sql.go and the same recompute statements in
// recompute.go, and differ only where the dialects do.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/forumport/internal/db"
	"github.com/persistorai/forumport/internal/dbpool"
	"github.com/persistorai/forumport/internal/domain"
	"github.com/persistorai/forumport/internal/models"
)

// pingTimeout bounds health probes. Bulk statements and recomputations carry
// only the caller's context; a large forum can keep them busy for minutes.
const pingTimeout = 5 * time.Second

const defaultSearchLocale = "english"

// Options configure an opened store.
type Options struct {
	// MaxConns caps the PostgreSQL pool. Worker handles use 1.
	MaxConns int32

	// SearchLocale is the text search configuration for category and post
	// search data.
	SearchLocale string
}

func (o Options) locale() string {
	if o.SearchLocale == "" {
		return defaultSearchLocale
	}

	return o.SearchLocale
}

// withTimeout creates a context with the health probe timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, pingTimeout)
}

// Dialect reports which adapter a database URL selects: "postgres" or
// "sqlite".
func Dialect(databaseURL string) (string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return "postgres", nil
	case strings.HasPrefix(databaseURL, "sqlite://"), strings.HasPrefix(databaseURL, "sqlite:"):
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported database URL scheme: %q", redact(databaseURL))
	}
}

func sqlitePath(databaseURL string) string {
	if p, ok := strings.CutPrefix(databaseURL, "sqlite://"); ok {
		return p
	}

	return strings.TrimPrefix(databaseURL, "sqlite:")
}

// redact keeps the scheme of a URL and drops everything after it so
// credentials never reach an error message.
func redact(databaseURL string) string {
	if i := strings.Index(databaseURL, "://"); i >= 0 {
		return databaseURL[:i+3] + "..."
	}

	return "..."
}

// Open connects to the destination named by databaseURL.
func Open(ctx context.Context, databaseURL string, log *logrus.Logger, opts Options) (domain.BulkStore, error) {
	dialect, err := Dialect(databaseURL)
	if err != nil {
		return nil, err
	}

	if dialect == "sqlite" {
		sqlDB, err := db.OpenSQLite(sqlitePath(databaseURL))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
		}

		return NewSQLiteStore(sqlDB, log, opts), nil
	}

	pool, err := dbpool.NewPool(ctx, databaseURL, dbpool.Options{MaxConns: opts.MaxConns})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}

	return NewPostgresStore(pool, log, opts), nil
}

// Factory returns a StoreFactory that opens single-connection handles on the
// same destination, one per worker.
func Factory(databaseURL string, log *logrus.Logger, opts Options) domain.StoreFactory {
	opts.MaxConns = 1

	return func(ctx context.Context) (domain.BulkStore, error) {
		return Open(ctx, databaseURL, log, opts)
	}
}

// Migrate applies the destination schema for the dialect databaseURL names.
func Migrate(ctx context.Context, databaseURL string, log *logrus.Logger) error {
	dialect, err := Dialect(databaseURL)
	if err != nil {
		return err
	}

	if dialect == "sqlite" {
		sqlDB, err := db.OpenSQLite(sqlitePath(databaseURL))
		if err != nil {
			return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
		}
		defer sqlDB.Close()

		return db.RunSQLiteMigrations(ctx, sqlDB, log)
	}

	pool, err := dbpool.NewPool(ctx, databaseURL, dbpool.Options{MaxConns: 1})
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}
	defer pool.Close()

	return db.RunMigrations(ctx, pool, log)
}
