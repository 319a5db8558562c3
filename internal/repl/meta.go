package repl

import (
	"context"
	"regexp"
	"strings"

	"github.com/JonMunkholm/csvsql/internal/store"
)

// MySQL statements the stores do not all understand.
var (
	describeRe   = regexp.MustCompile(`(?is)^DESC(?:RIBE)?\s+(\S+)$`)
	showCreateRe = regexp.MustCompile(`(?is)^SHOW\s+CREATE\s+TABLE\s+(\S+)$`)
	showTablesRe = regexp.MustCompile(`(?is)^SHOW\s+TABLES$`)
)

// Exec runs one statement, answering DESC, SHOW TABLES and SHOW CREATE
// TABLE from the store's catalog so they work on every backend.
func Exec(ctx context.Context, db store.DB, stmt string) (*store.Result, error) {
	stmt = strings.TrimRight(strings.TrimSpace(stmt), "; \t\r\n")

	if m := describeRe.FindStringSubmatch(stmt); m != nil {
		cols, err := db.Describe(ctx, unquote(m[1]))
		if err != nil {
			return nil, err
		}
		return describeResult(cols), nil
	}

	if m := showCreateRe.FindStringSubmatch(stmt); m != nil {
		ddl, err := db.ShowCreate(ctx, unquote(m[1]))
		if err != nil {
			return nil, err
		}
		return &store.Result{
			Columns:      []string{"SHOW CREATE TABLE"},
			Rows:         [][]any{{ddl + ";"}},
			RowsAffected: 1,
			Query:        true,
		}, nil
	}

	if showTablesRe.MatchString(stmt) {
		tables, err := db.Tables(ctx)
		if err != nil {
			return nil, err
		}
		res := &store.Result{Columns: []string{"Tables"}, Query: true}
		for _, t := range tables {
			res.Rows = append(res.Rows, []any{t})
		}
		res.RowsAffected = int64(len(res.Rows))
		return res, nil
	}

	return db.Exec(ctx, stmt)
}

func describeResult(cols []store.ColumnInfo) *store.Result {
	res := &store.Result{
		Columns:      []string{"Field", "Type", "Null", "Key", "Default"},
		Rows:         make([][]any, len(cols)),
		RowsAffected: int64(len(cols)),
		Query:        true,
	}
	for i, c := range cols {
		null := "NO"
		if c.Nullable {
			null = "YES"
		}
		key := ""
		if c.PrimaryKey {
			key = "PRI"
		}
		var dflt any
		if c.Default != nil {
			dflt = *c.Default
		}
		res.Rows[i] = []any{c.Name, c.Type, null, key, dflt}
	}
	return res
}

// unquote strips one level of identifier quoting.
func unquote(name string) string {
	if len(name) < 2 {
		return name
	}
	first, last := name[0], name[len(name)-1]
	if (first == '`' && last == '`') || (first == '"' && last == '"') || (first == '[' && last == ']') {
		return name[1 : len(name)-1]
	}
	return name
}
