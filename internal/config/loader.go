package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// lookupFunc resolves one environment variable name to its value.
type lookupFunc func(string) string

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
func Load() (*Config, error) {
	return load(os.Getenv)
}

// Default returns the configuration built from tag defaults alone,
// ignoring the environment.
func Default() *Config {
	cfg, err := load(func(string) string { return "" })
	if err != nil {
		panic(fmt.Sprintf("config defaults are invalid: %v", err))
	}
	return cfg
}

func load(lookup lookupFunc) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from the lookup.
func loadStruct(v reflect.Value, lookup lookupFunc) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal, lookup); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value := lookup(envName)
		if value == "" {
			if alt := field.Tag.Get("envAlt"); alt != "" {
				value = lookup(alt)
			}
		}

		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

var (
	validPolicies  = map[string]bool{"warn": true, "ignore": true, "fail": true}
	validIfExists  = map[string]bool{"append": true, "replace": true, "fail": true}
	validDrivers   = map[string]bool{"sqlite": true, "postgres": true, "duckdb": true}
	validLevels    = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormat = map[string]bool{"text": true, "json": true}
	validWidths    = map[string]bool{"codepoint": true, "eastasian": true}
	validFormats   = map[string]bool{"tsv": true, "pretty": true, "table": true, "markdown": true, "csv": true, "json": true}
)

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Import validation
	if !validPolicies[strings.ToLower(c.Import.InvalidPolicy)] {
		errs = append(errs, fmt.Sprintf("IMPORT_INVALID (%q) must be one of: warn, ignore, fail", c.Import.InvalidPolicy))
	}
	if !validIfExists[strings.ToLower(c.Import.IfExists)] {
		errs = append(errs, fmt.Sprintf("IMPORT_IF_EXISTS (%q) must be one of: append, replace, fail", c.Import.IfExists))
	}
	if c.Import.SniffLines <= 0 {
		errs = append(errs, "IMPORT_SNIFF_LINES must be positive")
	}
	if c.Import.SampleSize <= 0 {
		errs = append(errs, "IMPORT_SAMPLE_SIZE must be positive")
	}
	if len(c.Import.Delimiters) == 0 {
		errs = append(errs, "IMPORT_DELIMITERS must name at least one delimiter")
	}
	if c.Import.BatchSize <= 0 {
		errs = append(errs, "IMPORT_BATCH_SIZE must be positive")
	}
	if c.Import.MaxConcurrent <= 0 {
		errs = append(errs, "IMPORT_MAX_CONCURRENT must be positive")
	}
	if c.Import.MaxWaitTime <= 0 {
		errs = append(errs, "IMPORT_MAX_WAIT_TIME must be positive")
	}
	if c.Import.Timeout < 0 {
		errs = append(errs, "IMPORT_TIMEOUT must be non-negative")
	}
	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, "IMPORT_MAX_FILE_SIZE must be positive")
	}

	// Database validation
	if !validDrivers[strings.ToLower(c.Database.Driver)] {
		errs = append(errs, fmt.Sprintf("DB_DRIVER (%q) must be one of: sqlite, postgres, duckdb", c.Database.Driver))
	}
	if strings.EqualFold(c.Database.Driver, "postgres") && c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required for the postgres driver")
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "SERVER_RATE_LIMIT must be non-negative")
	}

	// Logging validation
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	if !validLogFormat[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	// Display validation
	if !validWidths[strings.ToLower(c.Display.Width)] {
		errs = append(errs, fmt.Sprintf("DISPLAY_WIDTH (%q) must be one of: codepoint, eastasian", c.Display.Width))
	}
	if !validFormats[strings.ToLower(c.Display.Format)] {
		errs = append(errs, fmt.Sprintf("DISPLAY_FORMAT (%q) must be one of: tsv, pretty, table, markdown, csv, json", c.Display.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The database URL is masked because it may carry credentials.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Import: {Invalid: %q, SniffLines: %d, SampleSize: %d, BatchSize: %d, MaxConcurrent: %d}, ",
		c.Import.InvalidPolicy, c.Import.SniffLines, c.Import.SampleSize, c.Import.BatchSize, c.Import.MaxConcurrent)
	url := ""
	if c.Database.URL != "" {
		url = "[MASKED]"
	}
	fmt.Fprintf(&b, "Database: {Driver: %q, URL: %q}, ", c.Database.Driver, url)
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
