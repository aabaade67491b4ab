package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/persistorai/forumport/internal/models"
)

// maxParams is PostgreSQL's limit on bind parameters per statement.
const maxParams = 65535

// validIdent matches the table and column names statements may be built from.
var validIdent = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// placeholder renders the n-th (1-based) bind parameter.
type placeholder func(n int) string

func dollar(n int) string { return "$" + strconv.Itoa(n) }

// numbered renders SQLite's ?NNN form, which binds by position like $n and
// may repeat.
func numbered(n int) string { return "?" + strconv.Itoa(n) }

func checkIdents(names ...string) error {
	for _, n := range names {
		if !validIdent.MatchString(n) {
			return fmt.Errorf("invalid identifier %q", n)
		}
	}

	return nil
}

func validateInsert(op models.InsertOp) error {
	if len(op.Columns) == 0 {
		return fmt.Errorf("insert into %s: no columns", op.Table)
	}

	if err := checkIdents(op.Table); err != nil {
		return err
	}

	if err := checkIdents(op.Columns...); err != nil {
		return err
	}

	if err := checkIdents(op.Returning...); err != nil {
		return err
	}

	for i, row := range op.Rows {
		if len(row) != len(op.Columns) {
			return fmt.Errorf("insert into %s: row %d has %d values for %d columns", op.Table, i, len(row), len(op.Columns))
		}
	}

	return nil
}

func validateUpdate(op models.UpdateOp) error {
	if len(op.Columns) == 0 {
		return fmt.Errorf("update %s: no columns", op.Table)
	}

	if err := checkIdents(op.Table, op.KeyColumn); err != nil {
		return err
	}

	if err := checkIdents(op.Columns...); err != nil {
		return err
	}

	for i, row := range op.Rows {
		if len(row.Values) != len(op.Columns) {
			return fmt.Errorf("update %s: row %d has %d values for %d columns", op.Table, i, len(row.Values), len(op.Columns))
		}
	}

	return nil
}

// insertSQL builds a multi-row INSERT for rowCount rows. Identifiers must
// already be validated.
func insertSQL(ph placeholder, table string, columns []string, rowCount int, returning []string) string {
	var b strings.Builder

	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES ")

	n := 1
	for r := range rowCount {
		if r > 0 {
			b.WriteString(", ")
		}

		b.WriteByte('(')

		for c := range columns {
			if c > 0 {
				b.WriteString(", ")
			}

			b.WriteString(ph(n))
			n++
		}

		b.WriteByte(')')
	}

	if len(returning) > 0 {
		b.WriteString(" RETURNING ")
		b.WriteString(strings.Join(returning, ", "))
	}

	return b.String()
}

// updateSQL builds a single-row UPDATE whose last parameter is the key.
func updateSQL(ph placeholder, table, keyColumn string, columns []string) string {
	var b strings.Builder

	b.WriteString("UPDATE ")
	b.WriteString(table)
	b.WriteString(" SET ")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}

		b.WriteString(c)
		b.WriteString(" = ")
		b.WriteString(ph(i + 1))
	}

	b.WriteString(" WHERE ")
	b.WriteString(keyColumn)
	b.WriteString(" = ")
	b.WriteString(ph(len(columns) + 1))

	return b.String()
}

// chunkRows returns the largest row count per statement that keeps the
// parameter count under maxParams.
func chunkRows(columns int) int {
	return max(1, maxParams/columns)
}

// chunkWriter writes part of an InsertOp. writeChunk sends the rows as one
// multi-row statement and must leave the transaction usable when it fails
// with models.ErrDuplicateKey; writeEach sends them one at a time and marks
// duplicates as conflicts.
type chunkWriter interface {
	writeChunk(ctx context.Context, rows [][]any) ([]models.InsertResult, error)
	writeEach(ctx context.Context, rows [][]any) ([]models.InsertResult, error)
}

// insertInChunks sends op.Rows in chunks sized under maxParams. With
// SkipConflicts a chunk that hits a unique violation is redone row by row;
// the other chunks stay bulk.
func insertInChunks(ctx context.Context, w chunkWriter, op models.InsertOp) ([]models.InsertResult, error) {
	results := make([]models.InsertResult, 0, len(op.Rows))
	size := chunkRows(len(op.Columns))

	for start := 0; start < len(op.Rows); start += size {
		chunk := op.Rows[start:min(start+size, len(op.Rows))]

		res, err := w.writeChunk(ctx, chunk)
		if err != nil && op.SkipConflicts && errors.Is(err, models.ErrDuplicateKey) {
			res, err = w.writeEach(ctx, chunk)
		}

		if err != nil {
			return nil, err
		}

		results = append(results, res...)
	}

	return results, nil
}

// scanTargets allocates n int64 destinations and the []any that points at
// them.
func scanTargets(n int) ([]int64, []any) {
	values := make([]int64, n)
	dest := make([]any, n)

	for i := range values {
		dest[i] = &values[i]
	}

	return values, dest
}
