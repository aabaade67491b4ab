package db

import (
	"io/fs"

	"github.com/persistorai/forumport/internal/db/migrations"
)

// SchemaVersion returns the number of migration files for a dialect
// ("postgres" or "sqlite"), which equals the schema version the tool writes.
func SchemaVersion(dialect string) int {
	fsys := migrations.Postgres()
	if dialect == "sqlite" {
		fsys = migrations.SQLite()
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return 0
	}

	count := 0
	for _, e := range entries {
		if !e.IsDir() {
			count++
		}
	}

	return count
}
