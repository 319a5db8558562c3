package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func records(rows ...[]string) []Record {
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = Record{Fields: r, Line: i + 1}
	}
	return out
}

func TestTypeInferencerWidening(t *testing.T) {
	ti := NewTypeInferencer(4)
	ti.Observe([]string{"1", "1", "1", ""})
	ti.Observe([]string{"2", "1.5", "x", ""})
	ti.Observe([]string{"", "3", "4", ""})

	assert.Equal(t, []Type{Integer, Real, Text, Text}, ti.Types())
	assert.Equal(t, 3, ti.Rows())

	s := ti.Schema([]string{"a", "b", "c", "d"})
	assert.True(t, s.Columns[0].Nullable, "empty field marks column nullable")
	assert.False(t, s.Columns[1].Nullable)
	assert.True(t, s.Columns[3].Nullable, "never-seen column is nullable")
}

func TestTypeInferencerTextIsFinal(t *testing.T) {
	ti := NewTypeInferencer(1)
	ti.Observe([]string{"abc"})
	for _, v := range []string{"1", "2.5", "", "7"} {
		ti.Observe([]string{v})
		assert.Equal(t, Text, ti.Types()[0], "after observing %q", v)
	}
}

func TestTypeInferencerMonotonic(t *testing.T) {
	values := []string{"1", "", "-3", "2.0", "4", "1e5", "x", "5"}
	ti := NewTypeInferencer(1)
	prev := Integer
	for _, v := range values {
		ti.Observe([]string{v})
		cur := ti.types[0]
		assert.True(t, cur.Holds(prev), "type went from %v to %v on %q", prev, cur, v)
		prev = cur
	}
	assert.Equal(t, Text, prev)
}

func TestTypeInferencerShortAndLongRows(t *testing.T) {
	ti := NewTypeInferencer(2)
	ti.Observe([]string{"1"})
	ti.Observe([]string{"2", "3", "extra"})

	s := ti.Schema([]string{"a", "b"})
	assert.Equal(t, []Type{Integer, Integer}, s.Types())
	assert.True(t, s.Columns[1].Nullable)
}

func TestInferSchemaHeader(t *testing.T) {
	window := records(
		[]string{"Name", "Class", "Age"},
		[]string{"Alice", "9", "14"},
	)

	inf := InferSchema(window, 1, "t")
	assert.True(t, inf.Header)
	assert.Equal(t, "[Name:TEXT, Class:INTEGER, Age:INTEGER]", inf.Schema.String())
}

func TestInferSchemaNoHeader(t *testing.T) {
	tests := []struct {
		name   string
		window []Record
		table  string
		want   string
	}{
		{
			name:   "numeric first row",
			window: records([]string{"1", "2.5", "x"}, []string{"2", "3", "y"}),
			table:  "A",
			want:   "[a1:INTEGER, a2:REAL, a3:TEXT]",
		},
		{
			name:   "all text rows",
			window: records([]string{"x", "y"}, []string{"p", "q"}),
			table:  "words",
			want:   "[w1:TEXT, w2:TEXT]",
		},
		{
			name:   "single record",
			window: records([]string{"name", "age"}),
			table:  "t",
			want:   "[t1:TEXT, t2:TEXT]",
		},
		{
			name:   "table without letters",
			window: records([]string{"1", "2"}),
			table:  "123",
			want:   "[n1:INTEGER, n2:INTEGER]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inf := InferSchema(tt.window, 50, tt.table)
			assert.False(t, inf.Header)
			assert.Equal(t, tt.want, inf.Schema.String())
		})
	}
}

func TestInferSchemaRespectsSampleSize(t *testing.T) {
	window := records(
		[]string{"id", "v"},
		[]string{"1", "10"},
		[]string{"2", "abc"},
	)

	// With a sample of one data row the second row is never seen.
	inf := InferSchema(window, 1, "t")
	assert.Equal(t, "[id:INTEGER, v:INTEGER]", inf.Schema.String())

	inf = InferSchema(window, 2, "t")
	assert.Equal(t, "[id:INTEGER, v:TEXT]", inf.Schema.String())
}

func TestInferSchemaIsDeterministic(t *testing.T) {
	window := records(
		[]string{"a", "b", "c"},
		[]string{"1", "", "z"},
		[]string{"2", "3.5", ""},
	)
	first := InferSchema(window, 50, "t")
	second := InferSchema(window, 50, "t")
	assert.Equal(t, first, second)
}

func TestInferSchemaEmptyWindow(t *testing.T) {
	inf := InferSchema(nil, 50, "t")
	assert.Zero(t, inf.Schema.Len())
	assert.False(t, inf.Header)
}
