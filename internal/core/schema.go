package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// nonWordRegex matches runs of characters that are not letters, digits or
// underscores.
var nonWordRegex = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// ColumnNames returns n unique column names. With a header, each name is the
// header text with non-word runs replaced by "_". Without one, names are the
// table's first letter (lowercased, "n" if it has none) plus the 1-based
// position: a1, a2, a3.
func ColumnNames(header []string, n int, table string) []string {
	prefix := positionalPrefix(table)
	names := make([]string, n)
	for i := range names {
		var name string
		if i < len(header) {
			name = strings.Trim(nonWordRegex.ReplaceAllString(strings.TrimSpace(header[i]), "_"), "_")
		}
		if name == "" {
			name = prefix + strconv.Itoa(i+1)
		}
		names[i] = name
	}
	return dedupeNames(names)
}

func positionalPrefix(table string) string {
	for _, r := range table {
		if unicode.IsLetter(r) {
			return string(unicode.ToLower(r))
		}
	}
	return "n"
}

// dedupeNames appends _2, _3, ... to repeated names. Comparison ignores case
// because SQL identifiers usually do.
func dedupeNames(names []string) []string {
	used := make(map[string]bool, len(names))
	next := make(map[string]int)
	out := make([]string, len(names))

	for i, name := range names {
		key := strings.ToLower(name)
		if !used[key] {
			used[key] = true
			out[i] = name
			continue
		}
		if next[key] < 2 {
			next[key] = 2
		}
		for {
			candidate := name + "_" + strconv.Itoa(next[key])
			next[key]++
			if ck := strings.ToLower(candidate); !used[ck] {
				used[ck] = true
				out[i] = candidate
				break
			}
		}
	}
	return out
}

// Affinity maps a declared SQL column type to the widest inferred type it
// stores, using SQLite's affinity rules (which also cover the postgres and
// duckdb spellings). ok is false for types an import cannot target.
func Affinity(sqlType string) (t Type, ok bool) {
	s := strings.ToUpper(sqlType)
	switch {
	case strings.Contains(s, "INT"):
		return Integer, true
	case strings.Contains(s, "CHAR"), strings.Contains(s, "CLOB"),
		strings.Contains(s, "TEXT"), strings.Contains(s, "STRING"), s == "":
		return Text, true
	case strings.Contains(s, "REAL"), strings.Contains(s, "FLOA"),
		strings.Contains(s, "DOUB"), strings.Contains(s, "NUMERIC"), strings.Contains(s, "DECIMAL"):
		return Real, true
	}
	return Text, false
}

// SchemaBuilder turns a frozen Schema into a table in the store.
type SchemaBuilder struct {
	Store    Store
	IfExists IfExists
}

// Build creates (or, under append, reuses) the target table and returns the
// handle rows are inserted through.
func (b SchemaBuilder) Build(ctx context.Context, table string, schema Schema) (Table, error) {
	existing, found, err := b.Store.Columns(ctx, table)
	if err != nil {
		return Table{}, fmt.Errorf("inspect table %q: %w", table, err)
	}

	if found {
		switch b.IfExists {
		case IfExistsFail:
			return Table{}, &SchemaConflictError{Table: table, Reason: "table already exists"}
		case IfExistsReplace:
			if err := b.Store.DropTable(ctx, table); err != nil {
				return Table{}, fmt.Errorf("drop table %q: %w", table, err)
			}
		default:
			return compatibleTable(table, existing, schema)
		}
	}

	def := TableDef{Name: table, Columns: make([]ColumnDef, schema.Len())}
	for i, c := range schema.Columns {
		def.Columns[i] = ColumnDef{Name: c.Name, Type: c.Type, SQLType: b.Store.ColumnType(c.Type)}
	}

	if err := b.Store.CreateTable(ctx, def); err != nil {
		if errors.Is(err, ErrObjectExists) {
			return Table{}, &SchemaConflictError{Table: table, Reason: err.Error()}
		}
		return Table{}, fmt.Errorf("create table %q: %w", table, err)
	}

	return Table{Name: table, Columns: schema.Names()}, nil
}

// compatibleTable accepts an existing table for appending when it has the
// same number of columns and each column can hold the inferred type.
// Columns match by position; the existing names are kept.
func compatibleTable(table string, existing []ExistingColumn, schema Schema) (Table, error) {
	if len(existing) != schema.Len() {
		return Table{}, &SchemaConflictError{
			Table:  table,
			Reason: fmt.Sprintf("existing table has %d columns, input has %d", len(existing), schema.Len()),
		}
	}

	names := make([]string, len(existing))
	for i, col := range existing {
		inferred := schema.Columns[i].Type
		aff, ok := Affinity(col.SQLType)
		if !ok || !aff.Holds(inferred) {
			return Table{}, &SchemaConflictError{
				Table:  table,
				Reason: fmt.Sprintf("column %q is %s, input column %d is %s", col.Name, col.SQLType, i+1, inferred),
			}
		}
		names[i] = col.Name
	}

	return Table{Name: table, Columns: names}, nil
}
