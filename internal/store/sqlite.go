package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // sqlite driver
)

var sqliteDialect = dialect{
	name:        DriverSQLite,
	columnTypes: [3]string{"INTEGER", "REAL", "TEXT"},
	describeQuery: `SELECT name, type, "notnull" = 0, dflt_value, pk > 0
		FROM pragma_table_info(?) ORDER BY cid`,
	tablesQuery: `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
		ORDER BY name`,
	showCreateQuery: `SELECT sql FROM sqlite_master
		WHERE type IN ('table', 'view') AND name = ? COLLATE NOCASE`,
	txBatches: true,
}

// OpenSQLite opens a SQLite database file, or an in-memory database when
// path is empty or ":memory:".
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	dsn := sqliteDSN(path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, wrap("open sqlite", err)
	}

	// One connection: an in-memory database lives only as long as its
	// connection, and a single writer avoids SQLITE_BUSY on files.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, wrap("ping sqlite", err)
	}

	return newSQLStore(db, sqliteDialect), nil
}

func sqliteDSN(path string) string {
	if path == "" || path == ":memory:" {
		return ":memory:"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(5000)", path, sep)
}
