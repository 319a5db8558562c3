package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoTable is returned when an import has no target table name.
	ErrNoTable = errors.New("no target table name")

	// ErrEmptySource is returned when a source holds no records at all.
	ErrEmptySource = errors.New("empty file: no records found")
)

// AmbiguousDelimiterError means no candidate delimiter produced at least two
// fields on any sampled line. It is fatal to the file.
type AmbiguousDelimiterError struct {
	Source     string
	Lines      int    // sampled non-empty lines
	Candidates []rune // delimiters that were tried
}

func (e *AmbiguousDelimiterError) Error() string {
	names := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		names[i] = DelimiterName(c)
	}
	msg := fmt.Sprintf("ambiguous delimiter: none of [%s] splits the %d sampled lines into 2 or more fields",
		strings.Join(names, " "), e.Lines)
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	return msg
}

// SchemaConflictError means the store already holds an object under the
// target name that the inferred schema cannot be loaded into.
type SchemaConflictError struct {
	Table  string
	Reason string
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("schema conflict on table %q: %s", e.Table, e.Reason)
}

// SourceReadError wraps an I/O failure of the underlying stream.
type SourceReadError struct {
	Source string
	Line   int // last line reached, 0 if unknown
	Err    error
}

func (e *SourceReadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("source read error: %s near line %d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("source read error: %s: %v", e.Source, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

// RowCoercionError describes one rejected row. It is reported as a
// diagnostic under the warn policy and returned as the import error under
// the fail policy.
type RowCoercionError struct {
	Source   string   `json:"source"`
	Line     int      `json:"line"`
	Row      int      `json:"row"`                // 1-based data row, header excluded
	Column   string   `json:"column,omitempty"`   // empty for field-count mismatches
	Expected string   `json:"expected,omitempty"` // column type, when a value failed to parse
	Value    string   `json:"value,omitempty"`
	Reason   string   `json:"reason"`
	Fields   []string `json:"-"`
	Err      error    `json:"-"`
}

func (e *RowCoercionError) Error() string {
	var b strings.Builder
	b.WriteString("invalid row: ")
	b.WriteString(e.Reason)
	if e.Column != "" {
		fmt.Fprintf(&b, " (column %s", e.Column)
		if e.Expected != "" {
			fmt.Fprintf(&b, ", expected %s", e.Expected)
		}
		b.WriteString(")")
	}
	fmt.Fprintf(&b, " (%s, line %d, row %d)", e.Source, e.Line, e.Row)
	return b.String()
}

func (e *RowCoercionError) Unwrap() error { return e.Err }
