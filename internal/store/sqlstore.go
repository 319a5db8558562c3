package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvsql/internal/core"
)

// dialect holds what differs between the database/sql backed stores.
type dialect struct {
	name        string
	columnTypes [3]string // indexed by core.Type

	describeQuery   string // columns: name, type, nullable, default, pk
	tablesQuery     string
	showCreateQuery string

	// txBatches opens one transaction per batch. Engines whose transactions
	// cannot survive a failed statement insert in autocommit mode instead.
	txBatches bool
}

func questionMark(int) string { return "?" }

// SQLStore is a core.Store over database/sql.
type SQLStore struct {
	db *sql.DB
	d  dialect
}

func newSQLStore(db *sql.DB, d dialect) *SQLStore {
	return &SQLStore{db: db, d: d}
}

func (s *SQLStore) Driver() string { return s.d.name }

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) ColumnType(t core.Type) string {
	if t < core.Integer || t > core.Text {
		t = core.Text
	}
	return s.d.columnTypes[t]
}

func (s *SQLStore) Columns(ctx context.Context, table string) ([]core.ExistingColumn, bool, error) {
	cols, err := s.describe(ctx, table)
	if err != nil {
		return nil, false, err
	}
	if len(cols) == 0 {
		return nil, false, nil
	}
	return existingColumns(cols), true, nil
}

func (s *SQLStore) Describe(ctx context.Context, table string) ([]ColumnInfo, error) {
	cols, err := s.describe(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return cols, nil
}

func (s *SQLStore) describe(ctx context.Context, table string) ([]ColumnInfo, error) {
	rows, err := s.db.QueryContext(ctx, s.d.describeQuery, table)
	if err != nil {
		return nil, wrap("describe "+table, err)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var (
			c        ColumnInfo
			dflt     sql.NullString
			nullable bool
		)
		if err := rows.Scan(&c.Name, &c.Type, &nullable, &dflt, &c.PrimaryKey); err != nil {
			return nil, wrap("describe "+table, err)
		}
		c.Nullable = nullable
		if dflt.Valid {
			c.Default = &dflt.String
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("describe "+table, err)
	}
	return cols, nil
}

func (s *SQLStore) CreateTable(ctx context.Context, def core.TableDef) error {
	if _, err := s.db.ExecContext(ctx, createStatement(def)); err != nil {
		if isAlreadyExists(err) {
			return fmt.Errorf("%w: %v", core.ErrObjectExists, err)
		}
		return wrap("create table "+def.Name, err)
	}
	return nil
}

func (s *SQLStore) DropTable(ctx context.Context, table string) error {
	_, err := s.db.ExecContext(ctx, "DROP TABLE "+QuoteIdent(table))
	return wrap("drop table "+table, err)
}

func (s *SQLStore) Begin(ctx context.Context, table core.Table) (core.Batch, error) {
	query := insertStatement(table, questionMark)

	if !s.d.txBatches {
		stmt, err := s.db.PrepareContext(ctx, query)
		if err != nil {
			return nil, wrap("prepare insert", err)
		}
		return &autoBatch{stmt: stmt}, nil
	}

	// database/sql rolls a transaction back when its context ends; the
	// batch must survive cancellation so the loaded rows can be committed.
	tx, err := s.db.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return nil, wrap("begin", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return nil, wrap("prepare insert", err)
	}
	return &txBatch{tx: tx, stmt: stmt}, nil
}

func (s *SQLStore) Exec(ctx context.Context, stmt string) (*Result, error) {
	if !IsQuery(stmt) {
		res, err := s.db.ExecContext(ctx, stmt)
		if err != nil {
			return nil, wrap("exec", err)
		}
		n, _ := res.RowsAffected()
		return &Result{RowsAffected: n}, nil
	}

	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, wrap("query", err)
	}
	defer rows.Close()
	return collectRows(rows)
}

func collectRows(rows *sql.Rows) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, wrap("query", err)
	}

	res := &Result{Columns: cols, Query: true}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, wrap("scan", err)
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

func (s *SQLStore) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.d.tablesQuery)
	if err != nil {
		return nil, wrap("list tables", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrap("list tables", err)
		}
		names = append(names, name)
	}
	return names, wrap("list tables", rows.Err())
}

func (s *SQLStore) ShowCreate(ctx context.Context, table string) (string, error) {
	var ddl sql.NullString
	err := s.db.QueryRowContext(ctx, s.d.showCreateQuery, table).Scan(&ddl)
	if err == sql.ErrNoRows || (err == nil && !ddl.Valid) {
		return "", fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	if err != nil {
		return "", wrap("show create "+table, err)
	}
	return strings.TrimSpace(ddl.String), nil
}

func (s *SQLStore) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+QuoteIdent(table)).Scan(&n)
	if err != nil {
		return 0, wrap("count rows", err)
	}
	return n, nil
}

// txBatch inserts inside one transaction. A failed insert undoes only that
// statement, so the transaction stays usable.
type txBatch struct {
	tx   *sql.Tx
	stmt *sql.Stmt
}

func (b *txBatch) Insert(ctx context.Context, values []any) error {
	_, err := b.stmt.ExecContext(ctx, values...)
	return err
}

func (b *txBatch) Commit(context.Context) error {
	_ = b.stmt.Close()
	return wrap("commit", b.tx.Commit())
}

// autoBatch inserts each row in its own implicit transaction; Commit only
// releases the prepared statement.
type autoBatch struct {
	stmt *sql.Stmt
}

func (b *autoBatch) Insert(ctx context.Context, values []any) error {
	_, err := b.stmt.ExecContext(ctx, values...)
	return err
}

func (b *autoBatch) Commit(context.Context) error {
	return wrap("close statement", b.stmt.Close())
}

func isAlreadyExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "already an index")
}
