package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/persistorai/forumport/internal/source"
)

// MaxWorkers bounds the rewrite and search worker pools.
const MaxWorkers = 64

func (c *Config) validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateSource(); err != nil {
		return err
	}

	if err := c.validateSizes(); err != nil {
		return err
	}

	if err := c.validateLogging(); err != nil {
		return err
	}

	if err := c.validateStatus(); err != nil {
		return err
	}

	if err := c.validateCORS(); err != nil {
		return err
	}

	return nil
}

// RequireDatabase reports an error when no destination is configured.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL.Value() == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	return nil
}

// RequireSource reports an error when no export directory is configured.
func (c *Config) RequireSource() error {
	if c.SourceDir == "" {
		return fmt.Errorf("SOURCE_DIR is required")
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.DatabaseURL.Value() == "" {
		return nil
	}

	dbURL, err := url.Parse(c.DatabaseURL.Value())
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}

	switch dbURL.Scheme {
	case "sqlite":
		return nil
	case "postgres", "postgresql":
	default:
		return fmt.Errorf("DATABASE_URL scheme must be postgres://, postgresql:// or sqlite://")
	}

	if dbURL.Hostname() == "" {
		return fmt.Errorf("DATABASE_URL must include a host")
	}

	dbHost := dbURL.Hostname()
	if !isLoopback(dbHost) {
		sslmode := dbURL.Query().Get("sslmode")
		if sslmode == "disable" {
			return fmt.Errorf("DATABASE_URL sslmode=disable is not allowed for non-local host %q", dbHost)
		}
	}

	return nil
}

func (c *Config) validateSource() error {
	if _, err := source.LookupEncoding(c.SourceEncoding); err != nil {
		return fmt.Errorf("SOURCE_ENCODING: %w", err)
	}

	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("BASE_URL must be an absolute URL, got %q", c.BaseURL)
		}
	}

	if c.SourceDir == "" {
		return nil
	}

	info, err := os.Stat(c.SourceDir)
	if err != nil {
		return fmt.Errorf("SOURCE_DIR: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("SOURCE_DIR %q is not a directory", c.SourceDir)
	}

	return nil
}

func (c *Config) validateSizes() error {
	if c.Workers < 1 || c.Workers > MaxWorkers {
		return fmt.Errorf("WORKERS must be between 1 and %d", MaxWorkers)
	}

	if c.BatchSize < 1 || c.PostBatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE and POST_BATCH_SIZE must be positive")
	}

	if c.UsernameMinLength < 1 || c.UsernameMaxLength < c.UsernameMinLength {
		return fmt.Errorf("USERNAME_MIN_LENGTH must be positive and at most USERNAME_MAX_LENGTH")
	}

	return nil
}

func (c *Config) validateLogging() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}

	return nil
}

// validateStatus keeps the status server on a loopback address.
func (c *Config) validateStatus() error {
	if c.StatusAddr == "" {
		return nil
	}

	host, _, err := net.SplitHostPort(c.StatusAddr)
	if err != nil {
		return fmt.Errorf("STATUS_ADDR must be host:port: %w", err)
	}

	if !isLoopback(host) {
		return fmt.Errorf("STATUS_ADDR must be a loopback address (127.0.0.1, ::1, or localhost), got %q", host)
	}

	return nil
}

func (c *Config) validateCORS() error {
	for _, origin := range c.CORSOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ORIGINS must not contain wildcard '*'")
		}
		if strings.ContainsAny(origin, "*?[]") {
			return fmt.Errorf("CORS_ORIGINS must not contain glob characters (*?[]), got %q", origin)
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("CORS_ORIGINS contains invalid origin %q (must have scheme and host)", origin)
		}
	}

	return nil
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
