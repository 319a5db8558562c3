package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce(t *testing.T) {
	schema := schemaOf(
		ColumnProfile{Name: "Name", Type: Text},
		ColumnProfile{Name: "Class", Type: Integer},
		ColumnProfile{Name: "Score", Type: Real},
	)
	c := NewCoercer(schema, "scores.csv")

	values, err := c.Coerce(Record{Fields: []string{"Alice", " 9 ", "14.5"}, Line: 2}, 1)
	require.NoError(t, err)
	assert.Equal(t, []any{"Alice", int64(9), 14.5}, values)

	values, err = c.Coerce(Record{Fields: []string{"", "", ""}, Line: 3}, 2)
	require.NoError(t, err)
	assert.Equal(t, []any{nil, nil, nil}, values)
}

func TestCoerceRejects(t *testing.T) {
	schema := schemaOf(
		ColumnProfile{Name: "Name", Type: Text},
		ColumnProfile{Name: "Class", Type: Integer},
		ColumnProfile{Name: "Age", Type: Integer},
	)
	c := NewCoercer(schema, "in.csv")

	tests := []struct {
		name       string
		rec        Record
		wantColumn string
		wantErr    error
		wantReason string
	}{
		{
			name:       "bad integer",
			rec:        Record{Fields: []string{"Bob", "10", "abc"}, Line: 3},
			wantColumn: "Age",
			wantErr:    errNotInteger,
			wantReason: `"abc" is not an integer`,
		},
		{
			name:       "first failing column is reported",
			rec:        Record{Fields: []string{"Bob", "x", "y"}, Line: 3},
			wantColumn: "Class",
			wantErr:    errNotInteger,
		},
		{
			name:       "too few fields",
			rec:        Record{Fields: []string{"Bob", "10"}, Line: 3},
			wantReason: "expected 3 fields, got 2",
		},
		{
			name:       "too many fields",
			rec:        Record{Fields: []string{"Bob", "10", "1", "extra"}, Line: 3},
			wantReason: "expected 3 fields, got 4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Coerce(tt.rec, 2)
			var rowErr *RowCoercionError
			require.True(t, errors.As(err, &rowErr), "got %v", err)

			assert.Equal(t, "in.csv", rowErr.Source)
			assert.Equal(t, 3, rowErr.Line)
			assert.Equal(t, 2, rowErr.Row)
			assert.Equal(t, tt.wantColumn, rowErr.Column)
			assert.Equal(t, tt.rec.Fields, rowErr.Fields)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, "INTEGER", rowErr.Expected)
			}
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, rowErr.Reason)
			}
		})
	}
}

func TestRowCoercionErrorMessage(t *testing.T) {
	err := &RowCoercionError{
		Source:   "in.csv",
		Line:     3,
		Row:      2,
		Column:   "Age",
		Expected: "INTEGER",
		Reason:   `"abc" is not an integer`,
	}
	assert.Equal(t, `invalid row: "abc" is not an integer (column Age, expected INTEGER) (in.csv, line 3, row 2)`, err.Error())
}
