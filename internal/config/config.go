// Package config provides environment-driven configuration for forumport.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	DatabaseURL Secret
	DBMaxConns  int32

	SourceDir       string
	SourceEncoding  string
	CategoryMapping string
	GroupMapping    string

	Workers           int
	BatchSize         int
	PostBatchSize     int
	UsernameMinLength int
	UsernameMaxLength int
	BaseURL           string
	SearchLocale      string

	LogLevel  string
	LogFormat string

	// StatusAddr is the loopback address of the status server. Empty
	// disables it.
	StatusAddr  string
	CORSOrigins []string
}

// Load reads configuration from environment variables with sensible
// defaults. When path is non-empty the file at path is read first; the
// environment overrides it.
func Load(path string) (*Config, error) {
	file, err := readFile(path)
	if err != nil {
		return nil, err
	}

	get := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}

		if v, ok := file[key]; ok && v != "" {
			return v
		}

		return fallback
	}

	cfg := &Config{
		DatabaseURL:     Secret(get("DATABASE_URL", "")),
		SourceDir:       get("SOURCE_DIR", ""),
		SourceEncoding:  get("SOURCE_ENCODING", "iso-8859-1"),
		CategoryMapping: get("CATEGORY_MAPPING", ""),
		GroupMapping:    get("GROUP_MAPPING", ""),
		BaseURL:         strings.TrimRight(get("BASE_URL", ""), "/"),
		SearchLocale:    get("SEARCH_LOCALE", "english"),
		LogLevel:        strings.ToLower(get("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(get("LOG_FORMAT", "text")),
		StatusAddr:      get("STATUS_ADDR", ""),
	}

	ints := []struct {
		key      string
		fallback string
		dst      *int
	}{
		{"WORKERS", "4", &cfg.Workers},
		{"BATCH_SIZE", "10000", &cfg.BatchSize},
		{"POST_BATCH_SIZE", "5000", &cfg.PostBatchSize},
		{"USERNAME_MIN_LENGTH", "3", &cfg.UsernameMinLength},
		{"USERNAME_MAX_LENGTH", "20", &cfg.UsernameMaxLength},
	}

	for _, f := range ints {
		n, err := strconv.Atoi(get(f.key, f.fallback))
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer", f.key)
		}

		*f.dst = n
	}

	maxConns, err := strconv.ParseInt(get("DB_MAX_CONNS", "8"), 10, 32)
	if err != nil || maxConns < 1 {
		return nil, fmt.Errorf("DB_MAX_CONNS must be a positive integer")
	}
	cfg.DBMaxConns = int32(maxConns)

	if origins := get("CORS_ORIGINS", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			cfg.CORSOrigins = append(cfg.CORSOrigins, strings.TrimSpace(o))
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MappingPath resolves a mapping file setting relative to the source
// directory.
func (c *Config) MappingPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(c.SourceDir, p)
}
