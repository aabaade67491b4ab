package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/persistorai/forumport/internal/models"
)

const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err is a uniqueness violation from either
// dialect.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// retryableMessages are transient connection failures worth retrying on a
// fresh handle.
var retryableMessages = []string{
	"driver: bad connection",
	"broken pipe",
	"connection reset",
	"connection refused",
	"unexpected eof",
	"conn closed",
	"closed pool",
	"i/o timeout",
	"database is locked",
	"terminating connection",
}

// IsRetryable reports whether err is a transient store error: a dropped or
// refused connection, a busy SQLite file, or an unavailable store. Constraint
// violations and bad SQL are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, models.ErrStoreUnavailable) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exceptions; 57P01 is admin shutdown.
		return strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "57P01"
	}

	if pgconn.SafeToRetry(err) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range retryableMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}

	return false
}
