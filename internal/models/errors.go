package models

import "errors"

// Sentinel errors for source loading.
var (
	ErrUnreadableInput = errors.New("unreadable input")
	ErrMissingColumn   = errors.New("missing column")
	ErrMalformedRow    = errors.New("malformed row")
	ErrUnknownEncoding = errors.New("unknown encoding")
	ErrMissingMapping  = errors.New("mapping file not found")
	ErrInvalidMapping  = errors.New("invalid mapping row")
)

// Sentinel errors for the destination store.
var (
	ErrStoreUnavailable = errors.New("destination store unavailable")
	ErrRowCountMismatch = errors.New("returned row count does not match submitted rows")
)

// ErrDuplicateKey indicates a unique constraint violation at the destination.
var ErrDuplicateKey = errors.New("duplicate key")
