package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoxRender(t *testing.T) {
	var buf bytes.Buffer
	err := Box{}.Render(&buf, []string{"Name", "Age", "Favorite Color"}, [][]any{
		{"Bob", int64(10), "Blue"},
		{"Rob", int64(25), "Red"},
		{"Penny", int64(70), "Purple"},
	})
	require.NoError(t, err)

	want := `+-------+-----+----------------+
| Name  | Age | Favorite Color |
+-------+-----+----------------+
| Bob   | 10  | Blue           |
| Rob   | 25  | Red            |
| Penny | 70  | Purple         |
+-------+-----+----------------+
`
	assert.Equal(t, want, buf.String())
}

func TestBoxMultilineAndNull(t *testing.T) {
	var buf bytes.Buffer
	err := Box{}.Render(&buf, []string{"k", "v"}, [][]any{
		{"a", "line one\nline two"},
		{nil, "x"},
	})
	require.NoError(t, err)

	want := `+------+----------+
| k    | v        |
+------+----------+
| a    | line one |
|      | line two |
| NULL | x        |
+------+----------+
`
	assert.Equal(t, want, buf.String())
}

func TestBoxEmptyResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Box{}.Render(&buf, []string{"id"}, nil))
	assert.Equal(t, "+----+\n| id |\n+----+\n", buf.String())
}

func TestBoxTabs(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Box{TabSize: 4}.Render(&buf, []string{"t"}, [][]any{{"a\tb"}}))
	assert.Contains(t, buf.String(), "| a   b |")
}

func TestBoxEastAsianWidth(t *testing.T) {
	rows := [][]any{{"日本"}, {"abcd"}}

	var narrow bytes.Buffer
	require.NoError(t, Box{Width: CodepointWidth{}}.Render(&narrow, []string{"w"}, rows))
	assert.Contains(t, narrow.String(), "| 日本   |")

	var wide bytes.Buffer
	require.NoError(t, Box{Width: NewEastAsianWidth()}.Render(&wide, []string{"w"}, rows))
	assert.Contains(t, wide.String(), "| 日本 |")
	assert.Contains(t, wide.String(), "| abcd |")
}

func TestExpandTabs(t *testing.T) {
	tests := []struct {
		in   string
		size int
		want string
	}{
		{"no tabs", 8, "no tabs"},
		{"\tx", 8, "        x"},
		{"abc\tx", 4, "abc x"},
		{"abcd\tx", 4, "abcd    x"},
		{"a\tb\nc\td", 2, "a b\nc d"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expandTabs(tt.in, tt.size), "%q", tt.in)
	}
}

func TestWidth(t *testing.T) {
	assert.Equal(t, 2, CodepointWidth{}.StringWidth("日本"))
	assert.Equal(t, 4, NewEastAsianWidth().StringWidth("日本"))
	assert.Equal(t, 1, NewEastAsianWidth().StringWidth("é"))
	assert.Equal(t, 3, EastAsianWidth{}.StringWidth("abc"))

	w, err := ParseWidth("codepoint")
	require.NoError(t, err)
	assert.IsType(t, CodepointWidth{}, w)
	w, err = ParseWidth("")
	require.NoError(t, err)
	assert.IsType(t, EastAsianWidth{}, w)
	_, err = ParseWidth("double")
	assert.Error(t, err)
}

func TestWriteTSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTSV(&buf, [][]any{
		{"Alice", int64(9), 14.5},
		{"Bob", nil, 2.0},
	}))
	assert.Equal(t, "Alice\t9\t14.5\nBob\t\t2\n", buf.String())
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"text", "text"},
		{[]byte("bytes"), "bytes"},
		{int64(-42), "-42"},
		{3.25, "3.25"},
		{123456789.0, "123456789"},
		{1e-7, "1e-07"},
		{true, "true"},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "2024-03-01"},
		{time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC), "2024-03-01 12:30:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in), "%#v", tt.in)
	}
}

func TestRenderFormats(t *testing.T) {
	cols := []string{"name", "n"}
	rows := [][]any{{"a", int64(1)}, {"b", nil}}

	var md bytes.Buffer
	require.NoError(t, Render(&md, FormatMarkdown, cols, rows, Options{}))
	assert.Contains(t, md.String(), "| name | n |")
	assert.Contains(t, md.String(), "| b | NULL |")

	var csv bytes.Buffer
	require.NoError(t, Render(&csv, FormatCSV, cols, rows, Options{}))
	assert.Equal(t, "name,n\na,1\nb,NULL\n", csv.String())

	var tbl bytes.Buffer
	require.NoError(t, Render(&tbl, FormatTable, cols, rows, Options{}))
	assert.Contains(t, tbl.String(), "NAME")

	var js bytes.Buffer
	require.NoError(t, Render(&js, FormatJSON, cols, rows, Options{}))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "a", decoded[0]["name"])
	assert.Nil(t, decoded[1]["n"])

	var tsv bytes.Buffer
	require.NoError(t, Render(&tsv, FormatTSV, cols, rows, Options{}))
	assert.Equal(t, "a\t1\nb\t\n", tsv.String())

	var pretty bytes.Buffer
	require.NoError(t, Render(&pretty, FormatPretty, cols, rows, Options{}))
	assert.True(t, strings.HasPrefix(pretty.String(), "+------+------+\n"))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"":         FormatTSV,
		"TSV":      FormatTSV,
		"pretty":   FormatPretty,
		"md":       FormatMarkdown,
		"markdown": FormatMarkdown,
		"json":     FormatJSON,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "1 row in set (0.00 sec)", Summary(true, 1, 0))
	assert.Equal(t, "3 rows in set (1.50 sec)", Summary(true, 3, 1500*time.Millisecond))
	assert.Equal(t, "Query OK, 0 rows affected (0.01 sec)", Summary(false, 0, 10*time.Millisecond))
	assert.Equal(t, "Query OK, 1 row affected (0.00 sec)", Summary(false, 1, 0))
}
