package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvsql/internal/config"
	"github.com/JonMunkholm/csvsql/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE codes for CREATE TABLE name collisions.
const (
	pgDuplicateTable  = "42P07"
	pgDuplicateObject = "42710"
)

// pgQuerier is the subset of pgxpool.Pool the store uses.
type pgQuerier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is a core.Store over a pgx connection pool.
type PostgresStore struct {
	pool  pgQuerier
	close func()
}

// OpenPostgres connects a pool configured from cfg.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, wrap("connect postgres", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrap("ping postgres", err)
	}

	return &PostgresStore{pool: pool, close: pool.Close}, nil
}

func (s *PostgresStore) Driver() string { return DriverPostgres }

func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

func (s *PostgresStore) ColumnType(t core.Type) string {
	switch t {
	case core.Integer:
		return "BIGINT"
	case core.Real:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

const pgDescribeQuery = `
	SELECT c.column_name, c.data_type, c.is_nullable = 'YES', c.column_default,
	       COALESCE(bool_or(tc.constraint_type = 'PRIMARY KEY'), false)
	FROM information_schema.columns c
	LEFT JOIN information_schema.key_column_usage k
	       ON k.table_schema = c.table_schema
	      AND k.table_name = c.table_name
	      AND k.column_name = c.column_name
	LEFT JOIN information_schema.table_constraints tc
	       ON tc.constraint_schema = k.constraint_schema
	      AND tc.constraint_name = k.constraint_name
	WHERE c.table_schema = current_schema() AND c.table_name = $1
	GROUP BY c.column_name, c.data_type, c.is_nullable, c.column_default, c.ordinal_position
	ORDER BY c.ordinal_position`

func (s *PostgresStore) describe(ctx context.Context, table string) ([]ColumnInfo, error) {
	rows, err := s.pool.Query(ctx, pgDescribeQuery, table)
	if err != nil {
		return nil, wrap("describe "+table, err)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var c ColumnInfo
		if err := rows.Scan(&c.Name, &c.Type, &c.Nullable, &c.Default, &c.PrimaryKey); err != nil {
			return nil, wrap("describe "+table, err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("describe "+table, err)
	}
	return cols, nil
}

func (s *PostgresStore) Columns(ctx context.Context, table string) ([]core.ExistingColumn, bool, error) {
	cols, err := s.describe(ctx, table)
	if err != nil {
		return nil, false, err
	}
	if len(cols) == 0 {
		return nil, false, nil
	}
	return existingColumns(cols), true, nil
}

func (s *PostgresStore) Describe(ctx context.Context, table string) ([]ColumnInfo, error) {
	cols, err := s.describe(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return cols, nil
}

func (s *PostgresStore) CreateTable(ctx context.Context, def core.TableDef) error {
	if _, err := s.pool.Exec(ctx, createStatement(def)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && (pgErr.Code == pgDuplicateTable || pgErr.Code == pgDuplicateObject) {
			return fmt.Errorf("%w: %s", core.ErrObjectExists, pgErr.Message)
		}
		return wrap("create table "+def.Name, err)
	}
	return nil
}

func (s *PostgresStore) DropTable(ctx context.Context, table string) error {
	_, err := s.pool.Exec(ctx, "DROP TABLE "+QuoteIdent(table))
	return wrap("drop table "+table, err)
}

func (s *PostgresStore) Begin(ctx context.Context, table core.Table) (core.Batch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, wrap("begin", err)
	}
	return &pgBatch{
		tx:    tx,
		query: insertStatement(table, func(i int) string { return fmt.Sprintf("$%d", i) }),
	}, nil
}

func (s *PostgresStore) Exec(ctx context.Context, stmt string) (*Result, error) {
	if !IsQuery(stmt) {
		tag, err := s.pool.Exec(ctx, stmt)
		if err != nil {
			return nil, wrap("exec", err)
		}
		return &Result{RowsAffected: tag.RowsAffected()}, nil
	}

	rows, err := s.pool.Query(ctx, stmt)
	if err != nil {
		return nil, wrap("query", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	res := &Result{Columns: make([]string, len(fields)), Query: true}
	for i, f := range fields {
		res.Columns[i] = f.Name
	}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, wrap("read row values", err)
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("query", err)
	}
	res.RowsAffected = int64(len(res.Rows))
	return res, nil
}

func (s *PostgresStore) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, wrap("list tables", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrap("list tables", err)
	}
	return names, nil
}

// ShowCreate rebuilds the DDL from the catalog; postgres keeps no source text.
func (s *PostgresStore) ShowCreate(ctx context.Context, table string) (string, error) {
	cols, err := s.Describe(ctx, table)
	if err != nil {
		return "", err
	}
	return pgCreateStatement(table, cols), nil
}

func pgCreateStatement(table string, cols []ColumnInfo) string {
	lines := make([]string, 0, len(cols)+1)
	var pk []string
	for _, c := range cols {
		line := "  " + QuoteIdent(c.Name) + " " + c.Type
		if !c.Nullable {
			line += " NOT NULL"
		}
		if c.Default != nil {
			line += " DEFAULT " + *c.Default
		}
		lines = append(lines, line)
		if c.PrimaryKey {
			pk = append(pk, QuoteIdent(c.Name))
		}
	}
	if len(pk) > 0 {
		lines = append(lines, "  PRIMARY KEY ("+strings.Join(pk, ", ")+")")
	}
	return "CREATE TABLE " + QuoteIdent(table) + " (\n" + strings.Join(lines, ",\n") + "\n)"
}

func (s *PostgresStore) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+QuoteIdent(table)).Scan(&n); err != nil {
		return 0, wrap("count rows", err)
	}
	return n, nil
}

// pgBatch wraps every insert in a savepoint so a failed row does not abort
// the surrounding transaction.
type pgBatch struct {
	tx    pgx.Tx
	query string
	n     int
}

func (b *pgBatch) Insert(ctx context.Context, values []any) error {
	b.n++
	savepoint := fmt.Sprintf("sp_%d", b.n)
	if _, err := b.tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
		return wrap("create savepoint", err)
	}

	if _, err := b.tx.Exec(ctx, b.query, values...); err != nil {
		_, _ = b.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint)
		return err
	}

	_, _ = b.tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint)
	return nil
}

func (b *pgBatch) Commit(ctx context.Context) error {
	return wrap("commit", b.tx.Commit(ctx))
}
