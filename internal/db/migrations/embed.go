// Package migrations embeds the destination schema for both supported
// dialects.
package migrations

import (
	"embed"
	"io/fs"
)

// FS contains the embedded SQL migration files, one directory per dialect.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

// Postgres returns the PostgreSQL migrations.
func Postgres() fs.FS {
	return sub("postgres")
}

// SQLite returns the SQLite migrations.
func SQLite() fs.FS {
	return sub("sqlite")
}

func sub(dir string) fs.FS {
	f, err := fs.Sub(FS, dir)
	if err != nil {
		// Only reachable if the embed pattern above changes.
		panic(err)
	}

	return f
}
