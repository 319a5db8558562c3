package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnNames(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		n      int
		table  string
		want   []string
	}{
		{
			name:   "duplicates get numeric suffixes",
			header: []string{"Red", "Green", "Red", "Blue", "Green", "Green"},
			n:      6,
			want:   []string{"Red", "Green", "Red_2", "Blue", "Green_2", "Green_3"},
		},
		{
			name:  "positional from table letter",
			n:     3,
			table: "A",
			want:  []string{"a1", "a2", "a3"},
		},
		{
			name:  "positional skips leading non-letters",
			n:     2,
			table: "2024_sales",
			want:  []string{"s1", "s2"},
		},
		{
			name:   "non-word runs become underscores",
			header: []string{"first name", "  Age (yrs) ", "e-mail"},
			n:      3,
			want:   []string{"first_name", "Age_yrs", "e_mail"},
		},
		{
			name:   "empty header cell falls back to position",
			header: []string{"id", "", "!!"},
			n:      3,
			table:  "people",
			want:   []string{"id", "p2", "p3"},
		},
		{
			name:   "short header",
			header: []string{"id"},
			n:      2,
			table:  "t",
			want:   []string{"id", "t2"},
		},
		{
			name:   "case-insensitive duplicates",
			header: []string{"id", "ID"},
			n:      2,
			want:   []string{"id", "ID_2"},
		},
		{
			name:   "suffix collides with a real column",
			header: []string{"a", "a", "a_2"},
			n:      3,
			want:   []string{"a", "a_2", "a_2_2"},
		},
		{
			name:   "unicode letters kept",
			header: []string{"名前", "größe"},
			n:      2,
			want:   []string{"名前", "größe"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ColumnNames(tt.header, tt.n, tt.table))
		})
	}
}

func TestAffinity(t *testing.T) {
	tests := []struct {
		sqlType string
		want    Type
		ok      bool
	}{
		{"INTEGER", Integer, true},
		{"BIGINT", Integer, true},
		{"REAL", Real, true},
		{"DOUBLE PRECISION", Real, true},
		{"DOUBLE", Real, true},
		{"numeric(10,2)", Real, true},
		{"TEXT", Text, true},
		{"VARCHAR", Text, true},
		{"character varying", Text, true},
		{"", Text, true},
		{"BLOB", Text, false},
		{"BOOLEAN", Text, false},
	}

	for _, tt := range tests {
		t.Run(tt.sqlType, func(t *testing.T) {
			got, ok := Affinity(tt.sqlType)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func schemaOf(cols ...ColumnProfile) Schema { return Schema{Columns: cols} }

func TestSchemaBuilderCreates(t *testing.T) {
	store := newMemStore()
	s := schemaOf(ColumnProfile{Name: "Name", Type: Text}, ColumnProfile{Name: "Age", Type: Integer})

	table, err := SchemaBuilder{Store: store}.Build(context.Background(), "people", s)
	require.NoError(t, err)
	assert.Equal(t, Table{Name: "people", Columns: []string{"Name", "Age"}}, table)

	def, ok := store.def("people")
	require.True(t, ok)
	assert.Equal(t, "TEXT", def.Columns[0].SQLType)
	assert.Equal(t, "INTEGER", def.Columns[1].SQLType)
}

func TestSchemaBuilderExisting(t *testing.T) {
	ctx := context.Background()
	existing := TableDef{Name: "t", Columns: []ColumnDef{
		{Name: "id", Type: Integer, SQLType: "INTEGER"},
		{Name: "score", Type: Real, SQLType: "REAL"},
	}}

	tests := []struct {
		name      string
		ifExists  IfExists
		schema    Schema
		wantErr   bool
		wantCols  []string
		wantTypes []string
	}{
		{
			name:     "append compatible uses existing names",
			ifExists: IfExistsAppend,
			schema:   schemaOf(ColumnProfile{Name: "ID", Type: Integer}, ColumnProfile{Name: "Score", Type: Integer}),
			wantCols: []string{"id", "score"},
		},
		{
			name:     "append matches columns by position",
			ifExists: IfExistsAppend,
			schema:   schemaOf(ColumnProfile{Name: "t_1", Type: Integer}, ColumnProfile{Name: "t_2", Type: Real}),
			wantCols: []string{"id", "score"},
		},
		{
			name:     "append narrower column refuses",
			ifExists: IfExistsAppend,
			schema:   schemaOf(ColumnProfile{Name: "id", Type: Real}, ColumnProfile{Name: "score", Type: Real}),
			wantErr:  true,
		},
		{
			name:     "append column count mismatch",
			ifExists: IfExistsAppend,
			schema:   schemaOf(ColumnProfile{Name: "id", Type: Integer}),
			wantErr:  true,
		},
		{
			name:     "fail policy",
			ifExists: IfExistsFail,
			schema:   schemaOf(ColumnProfile{Name: "id", Type: Integer}, ColumnProfile{Name: "score", Type: Real}),
			wantErr:  true,
		},
		{
			name:      "replace recreates",
			ifExists:  IfExistsReplace,
			schema:    schemaOf(ColumnProfile{Name: "x", Type: Text}),
			wantCols:  []string{"x"},
			wantTypes: []string{"TEXT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			require.NoError(t, store.CreateTable(ctx, existing))

			table, err := SchemaBuilder{Store: store, IfExists: tt.ifExists}.Build(ctx, "t", tt.schema)
			if tt.wantErr {
				var conflict *SchemaConflictError
				require.True(t, errors.As(err, &conflict), "got %v", err)
				assert.Equal(t, "t", conflict.Table)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCols, table.Columns)

			if tt.wantTypes != nil {
				def, _ := store.def("t")
				got := make([]string, len(def.Columns))
				for i, c := range def.Columns {
					got[i] = c.SQLType
				}
				assert.Equal(t, tt.wantTypes, got)
			}
		})
	}
}

// racyStore reports no table, then refuses the create as another session
// got there first.
type racyStore struct{ *memStore }

func (racyStore) Columns(context.Context, string) ([]ExistingColumn, bool, error) {
	return nil, false, nil
}

func TestSchemaBuilderCreateRace(t *testing.T) {
	ctx := context.Background()
	store := racyStore{newMemStore()}
	s := schemaOf(ColumnProfile{Name: "a", Type: Text})
	require.NoError(t, store.CreateTable(ctx, TableDef{Name: "t"}))

	_, err := SchemaBuilder{Store: store}.Build(ctx, "t", s)
	var conflict *SchemaConflictError
	require.True(t, errors.As(err, &conflict), "got %v", err)
}
