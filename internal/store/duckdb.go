package store

import (
	"context"
	"database/sql"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// DuckDB aborts a whole transaction on the first failed statement, so rows
// are inserted in autocommit mode to keep one bad row from losing a batch.
var duckdbDialect = dialect{
	name:        DriverDuckDB,
	columnTypes: [3]string{"BIGINT", "DOUBLE", "VARCHAR"},
	describeQuery: `SELECT column_name, data_type, is_nullable = 'YES', column_default, false
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND lower(table_name) = lower(?)
		ORDER BY ordinal_position`,
	tablesQuery: `SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`,
	showCreateQuery: `SELECT sql FROM duckdb_tables()
		WHERE schema_name = current_schema() AND lower(table_name) = lower(?)`,
	txBatches: false,
}

// OpenDuckDB opens a DuckDB database file. Use "" or ":memory:" for an
// in-memory database.
func OpenDuckDB(ctx context.Context, path string) (*SQLStore, error) {
	if path == ":memory:" {
		path = ""
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, wrap("open duckdb", err)
	}

	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, wrap("ping duckdb", err)
	}

	return newSQLStore(db, duckdbDialect), nil
}
