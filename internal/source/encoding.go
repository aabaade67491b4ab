package source

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/persistorai/forumport/internal/models"
)

// DefaultEncoding is the character set of a stock vBulletin dump.
const DefaultEncoding = "iso-8859-1"

// LookupEncoding resolves a declared character set name.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DefaultEncoding, "latin1", "latin-1":
		return charmap.ISO8859_1, nil
	case "utf-8", "utf8":
		return unicode.UTF8, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownEncoding, name)
	}

	return enc, nil
}
