// Package config provides centralized configuration management for csvsql.
// Values come from environment variables (optionally seeded from a .env file)
// and are validated up front so a bad setting fails before any import starts.
// Command-line flags override whatever is loaded here.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Import   ImportConfig
	Database DatabaseConfig
	Server   ServerConfig
	Logging  LoggingConfig
	Display  DisplayConfig
}

// ImportConfig controls the detection and load pipeline.
type ImportConfig struct {
	// InvalidPolicy is what happens to rows that fail coercion: warn, ignore or fail.
	InvalidPolicy string `env:"IMPORT_INVALID" default:"warn"`

	// SniffLines is how many non-empty lines the delimiter sniffer inspects.
	SniffLines int `env:"IMPORT_SNIFF_LINES" default:"20"`

	// SampleSize is how many records feed type inference before the schema freezes.
	SampleSize int `env:"IMPORT_SAMPLE_SIZE" default:"50"`

	// Delimiters lists the candidate delimiters in tie-break order, by name
	// (comma, tab, semicolon, pipe, space) or as a single character.
	Delimiters []string `env:"IMPORT_DELIMITERS" default:"comma,tab,semicolon,pipe,space"`

	// BatchSize is the number of rows committed per store transaction.
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"1000"`

	// MaxConcurrent bounds the number of files imported at once.
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a session waits for an import slot.
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a single HTTP-triggered import (0 disables).
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`

	// IfExists decides what happens when the target table exists: append, replace or fail.
	IfExists string `env:"IMPORT_IF_EXISTS" default:"append"`

	// Encoding names the source charset (any WHATWG label). Empty means UTF-8.
	Encoding string `env:"IMPORT_ENCODING"`

	// MaxFileSize caps HTTP upload bodies in bytes.
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"104857600"`
}

// DatabaseConfig holds store connection settings.
type DatabaseConfig struct {
	// Driver selects the store backend: sqlite, postgres or duckdb.
	Driver string `env:"DB_DRIVER" default:"sqlite"`

	// URL is the DSN or file path. Empty means an in-memory database.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the postgres pool size.
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the number of idle postgres connections kept open.
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ServerConfig holds HTTP server settings for `csvsql serve`.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"127.0.0.1"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// TrustedProxies lists CIDRs whose X-Real-IP / X-Forwarded-For headers are believed.
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES"`

	// APIKeys, when set, are required in the X-API-Key header of every /imports and /tables request.
	APIKeys []string `env:"SERVER_API_KEYS"`

	// RateLimit is requests per minute per client IP (0 disables).
	RateLimit int `env:"SERVER_RATE_LIMIT" default:"100"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: warn)
	Level string `env:"LOG_LEVEL" default:"warn"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File, when set, sends logs to a rotated file instead of stderr.
	File string `env:"LOG_FILE"`

	// MaxSizeMB is the rotation threshold for File.
	MaxSizeMB int `env:"LOG_MAX_SIZE_MB" default:"50"`
}

// DisplayConfig controls result rendering in the REPL and CLI.
type DisplayConfig struct {
	// Width selects how cell widths are measured: codepoint or eastasian.
	Width string `env:"DISPLAY_WIDTH" default:"eastasian"`

	// Format is the default output format for trailing queries: tsv, pretty, table, markdown, csv, json.
	Format string `env:"DISPLAY_FORMAT" default:"tsv"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
