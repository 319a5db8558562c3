package render

import (
	"bufio"
	"io"
	"strings"
)

// DefaultTabSize is the tab stop interval used when expanding cell text.
const DefaultTabSize = 8

// Box prints rows the way the MySQL client does:
//
//	+-------+-----+
//	| Name  | Age |
//	+-------+-----+
//	| Bob   | 10  |
//	+-------+-----+
//
// Cells containing newlines span several lines; nil prints as NULL.
type Box struct {
	Width   Width
	TabSize int
}

// Render writes header and rows to w.
func (b Box) Render(w io.Writer, header []string, rows [][]any) error {
	width := b.Width
	if width == nil {
		width = CodepointWidth{}
	}
	tabSize := b.TabSize
	if tabSize <= 0 {
		tabSize = DefaultTabSize
	}

	ncol := len(header)
	for _, row := range rows {
		if len(row) > ncol {
			ncol = len(row)
		}
	}

	widths := make([]int, ncol)
	split := func(values []string) [][]string {
		cells := make([][]string, ncol)
		for i := range cells {
			text := ""
			if i < len(values) {
				text = values[i]
			}
			lines := strings.Split(expandTabs(text, tabSize), "\n")
			for _, line := range lines {
				if n := width.StringWidth(line); n > widths[i] {
					widths[i] = n
				}
			}
			cells[i] = lines
		}
		return cells
	}

	head := split(header)
	body := make([][][]string, len(rows))
	for r, row := range rows {
		values := make([]string, len(row))
		for i, v := range row {
			values[i] = FormatValue(v)
		}
		body[r] = split(values)
	}

	bw := bufio.NewWriter(w)
	writeBorder(bw, widths)
	writeCells(bw, head, widths, width)
	writeBorder(bw, widths)
	if len(body) > 0 {
		for _, cells := range body {
			writeCells(bw, cells, widths, width)
		}
		writeBorder(bw, widths)
	}
	return bw.Flush()
}

func writeBorder(w *bufio.Writer, widths []int) {
	w.WriteString("+")
	for _, n := range widths {
		w.WriteString(strings.Repeat("-", n+2))
		w.WriteString("+")
	}
	w.WriteString("\n")
}

// writeCells writes one logical row, as tall as its tallest cell.
func writeCells(w *bufio.Writer, cells [][]string, widths []int, width Width) {
	height := 1
	for _, lines := range cells {
		if len(lines) > height {
			height = len(lines)
		}
	}

	for l := 0; l < height; l++ {
		w.WriteString("|")
		for i, lines := range cells {
			line := ""
			if l < len(lines) {
				line = lines[l]
			}
			w.WriteString(" ")
			w.WriteString(line)
			w.WriteString(strings.Repeat(" ", widths[i]-width.StringWidth(line)))
			w.WriteString(" |")
		}
		w.WriteString("\n")
	}
}

// expandTabs replaces each tab with spaces up to the next tab stop, counting
// columns from the start of each line.
func expandTabs(s string, tabSize int) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var b strings.Builder
	col := 0
	for _, r := range s {
		switch r {
		case '\t':
			n := tabSize - col%tabSize
			b.WriteString(strings.Repeat(" ", n))
			col += n
		case '\n', '\r':
			b.WriteRune(r)
			col = 0
		default:
			b.WriteRune(r)
			col++
		}
	}
	return b.String()
}
