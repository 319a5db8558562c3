// Package store implements core.Store on top of SQLite, DuckDB and
// PostgreSQL, together with the small query surface the REPL, the CLI and
// the HTTP service read tables through.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/csvsql/internal/config"
	"github.com/JonMunkholm/csvsql/internal/core"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
)

var (
	ErrUnknownDriver = errors.New("unknown database driver")
	ErrTableNotFound = errors.New("table not found")
)

// Error is a failure reported by the database itself. The CLI exits with a
// distinct status for these.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// Result is the outcome of one SQL statement. Query is true when the
// statement produced a result set (possibly empty).
type Result struct {
	Columns      []string `json:"columns,omitempty"`
	Rows         [][]any  `json:"rows,omitempty"`
	RowsAffected int64    `json:"rows_affected"`
	Query        bool     `json:"query"`
}

// ColumnInfo describes one column of an existing table.
type ColumnInfo struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Nullable   bool    `json:"nullable"`
	PrimaryKey bool    `json:"primary_key"`
	Default    *string `json:"default,omitempty"`
}

// DB is a store an import writes into and a user queries.
type DB interface {
	core.Store

	Driver() string

	// Exec runs a single SQL statement.
	Exec(ctx context.Context, stmt string) (*Result, error)

	// Tables lists user tables in name order.
	Tables(ctx context.Context) ([]string, error)

	// Describe lists the columns of table, or ErrTableNotFound.
	Describe(ctx context.Context, table string) ([]ColumnInfo, error)

	// ShowCreate returns the DDL of table, or ErrTableNotFound.
	ShowCreate(ctx context.Context, table string) (string, error)

	Count(ctx context.Context, table string) (int64, error)
	Close() error
}

// Open connects to the store named by cfg.Driver. An empty URL opens an
// in-memory database for sqlite and duckdb.
func Open(ctx context.Context, cfg config.DatabaseConfig) (DB, error) {
	var (
		db  DB
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "", DriverSQLite, "sqlite3":
		db, err = OpenSQLite(ctx, cfg.URL)
	case DriverDuckDB:
		db, err = OpenDuckDB(ctx, cfg.URL)
	case DriverPostgres, "postgresql", "pgx":
		db, err = OpenPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("connected to database", "driver", db.Driver(), "in_memory", cfg.URL == "" || cfg.URL == ":memory:")
	return db, nil
}

// InMemory reports whether cfg opens a database that vanishes on exit.
func InMemory(cfg config.DatabaseConfig) bool {
	if strings.EqualFold(cfg.Driver, DriverPostgres) || strings.EqualFold(cfg.Driver, "postgresql") || strings.EqualFold(cfg.Driver, "pgx") {
		return false
	}
	return cfg.URL == "" || cfg.URL == ":memory:"
}

// QuoteIdent quotes an SQL identifier, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// queryKeywords start statements that return a result set.
var queryKeywords = map[string]bool{
	"SELECT":    true,
	"WITH":      true,
	"VALUES":    true,
	"PRAGMA":    true,
	"EXPLAIN":   true,
	"SHOW":      true,
	"DESCRIBE":  true,
	"SUMMARIZE": true,
	"TABLE":     true,
	"FROM":      true,
}

// IsQuery reports whether stmt returns rows rather than a row count.
func IsQuery(stmt string) bool {
	return queryKeywords[firstKeyword(stmt)]
}

// firstKeyword returns the upper-cased first word of stmt, skipping
// leading comments and parentheses.
func firstKeyword(stmt string) string {
	s := stmt
	for {
		s = strings.TrimLeft(s, " \t\r\n(")
		switch {
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = s[i+1:]
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s, "*/")
			if i < 0 {
				return ""
			}
			s = s[i+2:]
		default:
			end := strings.IndexFunc(s, func(r rune) bool {
				return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
			})
			if end < 0 {
				end = len(s)
			}
			return strings.ToUpper(s[:end])
		}
	}
}

// createStatement renders CREATE TABLE DDL for def using the given column types.
func createStatement(def core.TableDef) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(QuoteIdent(def.Name))
	b.WriteString(" (\n")
	for i, col := range def.Columns {
		b.WriteString("  ")
		b.WriteString(QuoteIdent(col.Name))
		b.WriteString(" ")
		b.WriteString(col.SQLType)
		if i < len(def.Columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String()
}

// insertStatement renders a parameterized INSERT for t.
func insertStatement(t core.Table, placeholder func(int) string) string {
	cols := make([]string, len(t.Columns))
	params := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = QuoteIdent(c)
		params[i] = placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(t.Name), strings.Join(cols, ", "), strings.Join(params, ", "))
}

func existingColumns(cols []ColumnInfo) []core.ExistingColumn {
	out := make([]core.ExistingColumn, len(cols))
	for i, c := range cols {
		out[i] = core.ExistingColumn{Name: c.Name, SQLType: c.Type}
	}
	return out
}

// normalizeValue turns driver values into what renderers and JSON expect.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
