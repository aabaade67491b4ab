package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"github.com/persistorai/forumport/internal/models"
)

// ctxCheckEvery is how many rows are read between context checks.
const ctxCheckEvery = 5000

// row is one data record with its header index.
type row struct {
	file   string
	line   int
	fields []string
	index  map[string]int
}

func (r row) str(field string) string {
	i, ok := r.index[field]
	if !ok || i >= len(r.fields) {
		return ""
	}

	return r.fields[i]
}

// id parses a required integer field.
func (r row) id(field string) (int64, error) {
	v := strings.TrimSpace(r.str(field))
	if v == "" {
		return 0, fmt.Errorf("%w: %s:%d: empty %s", models.ErrMalformedRow, r.file, r.line, field)
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s:%d: %s %q is not an integer", models.ErrMalformedRow, r.file, r.line, field, v)
	}

	return n, nil
}

// intOr parses an optional integer field, returning fallback when it is
// empty or unparsable.
func (r row) intOr(field string, fallback int64) int64 {
	v := strings.TrimSpace(r.str(field))
	if v == "" {
		return fallback
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}

	return n
}

// flag reports whether a field holds the legacy boolean "1".
func (r row) flag(field string) bool {
	return strings.TrimSpace(r.str(field)) == "1"
}

// tableReader streams the records of one input file.
type tableReader struct {
	log *logrus.Logger
	enc encoding.Encoding
}

// read calls fn for every data row of the file at path. Required fields must
// be present in the header. Unreadable files and missing columns abort.
func (t *tableReader) read(
	ctx context.Context,
	path string,
	spec FileSpec,
	required []string,
	fn func(r row) error,
) error {
	f, err := os.Open(path) //nolint:gosec // operator-supplied export path.
	if err != nil {
		return fmt.Errorf("opening %s: %w: %w", path, models.ErrUnreadableInput, err)
	}
	defer f.Close()

	var src io.Reader = f
	if t.enc != nil {
		src = transform.NewReader(f, t.enc.NewDecoder())
	}

	next := recordReader(src, spec.Format)

	header, err := next()
	if err != nil {
		return fmt.Errorf("reading header of %s: %w: %w", path, models.ErrUnreadableInput, err)
	}

	index, err := headerIndex(header, spec, required)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	line := 1

	for {
		line++

		fields, err := next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			t.log.WithError(err).WithFields(logrus.Fields{
				"file": spec.Name,
				"line": line,
			}).Warn("skipping unparsable row")

			continue
		}

		if err != nil {
			return fmt.Errorf("reading %s line %d: %w: %w", path, line, models.ErrUnreadableInput, err)
		}

		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			continue
		}

		if err := fn(row{file: spec.Name, line: line, fields: fields, index: index}); err != nil {
			return err
		}

		if line%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
}

// headerIndex maps logical fields onto header positions.
func headerIndex(header []string, spec FileSpec, required []string) (map[string]int, error) {
	positions := make(map[string]int, len(header))

	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		positions[strings.ToLower(strings.TrimSpace(h))] = i
	}

	index := make(map[string]int)

	for field, col := range spec.Columns {
		if i, ok := positions[strings.ToLower(col)]; ok {
			index[field] = i
		}
	}

	for _, field := range required {
		if _, ok := index[field]; ok {
			continue
		}

		if i, ok := positions[strings.ToLower(spec.column(field))]; ok {
			index[field] = i

			continue
		}

		return nil, fmt.Errorf("%w: %q", models.ErrMissingColumn, spec.column(field))
	}

	return index, nil
}

// recordReader returns a function yielding one record per call, io.EOF at
// the end.
func recordReader(r io.Reader, format Format) func() ([]string, error) {
	if format.Quoted {
		cr := csv.NewReader(r)
		cr.Comma = format.Comma
		cr.LazyQuotes = true
		cr.FieldsPerRecord = -1
		cr.ReuseRecord = false

		return cr.Read
	}

	br := bufio.NewReaderSize(r, 1<<20)
	sep := string(format.Comma)

	return func() ([]string, error) {
		text, err := br.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && text != "") {
			return nil, err
		}

		text = strings.TrimRight(text, "\r\n")

		return strings.Split(text, sep), nil
	}
}
