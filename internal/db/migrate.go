// Package db opens destination databases and applies the destination schema
// with goose (github.com/pressly/goose/v3).
//
// Migration files live in internal/db/migrations/<dialect>/ and are embedded
// via //go:embed. Both dialects carry the same tables; SQLite stores search
// documents as plain text where PostgreSQL uses tsvector.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/forumport/internal/db/migrations"
	"github.com/persistorai/forumport/internal/dbpool"
)

// RunMigrations applies all pending PostgreSQL migrations.
func RunMigrations(ctx context.Context, pool *dbpool.Pool, log *logrus.Logger) error {
	// goose requires a *sql.DB; open one over the same connection string
	// through the pgx stdlib driver.
	sqlDB, err := sql.Open("pgx", pool.ConnString())
	if err != nil {
		return fmt.Errorf("opening sql.DB for migrations: %w", err)
	}
	defer sqlDB.Close()

	return apply(ctx, goose.DialectPostgres, sqlDB, migrations.Postgres(), log)
}

// RunSQLiteMigrations applies all pending SQLite migrations on an open handle.
func RunSQLiteMigrations(ctx context.Context, sqlDB *sql.DB, log *logrus.Logger) error {
	return apply(ctx, goose.DialectSQLite3, sqlDB, migrations.SQLite(), log)
}

func apply(ctx context.Context, dialect goose.Dialect, sqlDB *sql.DB, fsys fs.FS, log *logrus.Logger) error {
	provider, err := goose.NewProvider(dialect, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("creating goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", r.Source.Version, r.Source.Path, r.Error)
		}

		log.WithFields(logrus.Fields{
			"version":  r.Source.Version,
			"file":     r.Source.Path,
			"duration": r.Duration,
		}).Info("migration applied")
	}

	if len(results) == 0 {
		log.Debug("all migrations already applied")
	}

	return nil
}
