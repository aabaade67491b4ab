package store_test

import (
	"database/sql"
	"strings"
	"testing"

	"github.com/persistorai/forumport/internal/db"
)

// rawDB opens a second handle on a SQLite destination for assertions.
func rawDB(t *testing.T, url string) *sql.DB {
	t.Helper()

	sqlDB, err := db.OpenSQLite(strings.TrimPrefix(url, "sqlite://"))
	if err != nil {
		t.Fatalf("opening raw handle: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	return sqlDB
}
