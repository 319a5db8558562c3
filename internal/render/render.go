// Package render prints query results: tab-separated, as a MySQL style box,
// as a go-pretty table, or as markdown, CSV or JSON.
package render

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Format is an output format for query results.
type Format string

const (
	FormatTSV      Format = "tsv"
	FormatPretty   Format = "pretty"
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTSV, FormatPretty, FormatTable, FormatMarkdown, FormatCSV, FormatJSON:
		return f, nil
	case "", "tab":
		return FormatTSV, nil
	case "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("invalid output format %q: must be tsv, pretty, table, markdown, csv or json", s)
}

// Options tune Render.
type Options struct {
	Width   Width
	TabSize int
}

// Render writes a result set in the given format.
func Render(w io.Writer, format Format, columns []string, rows [][]any, opts Options) error {
	switch format {
	case FormatPretty:
		return Box{Width: opts.Width, TabSize: opts.TabSize}.Render(w, columns, rows)
	case FormatTable, FormatMarkdown, FormatCSV:
		return renderTable(w, format, columns, rows)
	case FormatJSON:
		return renderJSON(w, columns, rows)
	default:
		return WriteTSV(w, rows)
	}
}

// WriteTSV writes rows tab-separated without a header. NULL prints as an
// empty field.
func WriteTSV(w io.Writer, rows [][]any) error {
	bw := bufio.NewWriter(w)
	for _, row := range rows {
		for i, v := range row {
			if i > 0 {
				bw.WriteByte('\t')
			}
			if v != nil {
				bw.WriteString(FormatValue(v))
			}
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func renderTable(w io.Writer, format Format, columns []string, rows [][]any) error {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, v := range row {
			r[i] = FormatValue(v)
		}
		t.AppendRow(r)
	}

	var out string
	switch format {
	case FormatMarkdown:
		out = t.RenderMarkdown()
	case FormatCSV:
		out = t.RenderCSV()
	default:
		out = t.Render()
	}
	_, err := io.WriteString(w, out+"\n")
	return err
}

func renderJSON(w io.Writer, columns []string, rows [][]any) error {
	results := make([]map[string]any, len(rows))
	for r, row := range rows {
		obj := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(row) {
				obj[col] = row[i]
			}
		}
		results[r] = obj
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// FormatValue renders one value for display. nil is NULL.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return formatFloat(x, 64)
	case float32:
		return formatFloat(float64(x), 32)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.DateTime)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

// formatFloat prints plain decimals, switching to exponent form only for
// very small or very large magnitudes.
func formatFloat(f float64, bits int) string {
	if abs := math.Abs(f); abs != 0 && (abs < 1e-4 || abs >= 1e21) {
		return strconv.FormatFloat(f, 'g', -1, bits)
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}

// Summary returns the MySQL style status line for a statement, e.g.
// "2 rows in set (0.01 sec)" or "Query OK, 1 row affected (0.00 sec)".
func Summary(query bool, n int64, elapsed time.Duration) string {
	s := "s"
	if n == 1 {
		s = ""
	}
	prefix := fmt.Sprintf("Query OK, %d row%s affected", n, s)
	if query {
		prefix = fmt.Sprintf("%d row%s in set", n, s)
	}
	return fmt.Sprintf("%s (%.2f sec)", prefix, elapsed.Seconds())
}
