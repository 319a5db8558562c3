package core

import (
	"fmt"
	"strings"
	"time"
)

// Type is an inferred column type. The values form a widening lattice:
// Integer < Real < Text.
type Type int

const (
	Integer Type = iota
	Real
	Text
)

func (t Type) String() string {
	switch t {
	case Integer:
		return "INTEGER"
	case Real:
		return "REAL"
	default:
		return "TEXT"
	}
}

// MarshalText lets Type appear by name in JSON output.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts the names written by MarshalText.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseType parses INTEGER, REAL or TEXT (case-insensitive).
func ParseType(s string) (Type, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INTEGER":
		return Integer, nil
	case "REAL":
		return Real, nil
	case "TEXT":
		return Text, nil
	}
	return Text, fmt.Errorf("unknown column type %q", s)
}

// Widen is the lattice join: the narrowest type that holds both.
func Widen(current, observed Type) Type {
	if observed > current {
		return observed
	}
	return current
}

// Holds reports whether a column of type t can store every value of type v.
func (t Type) Holds(v Type) bool {
	return Widen(t, v) == t
}

// WhitespaceRun is the delimiter sentinel for "one or more spaces or tabs".
const WhitespaceRun rune = -1

// Escape is how a quote character is written inside a quoted field.
type Escape int

const (
	EscapeDoubled   Escape = iota // ""
	EscapeBackslash               // \"
)

func (e Escape) String() string {
	if e == EscapeBackslash {
		return "backslash"
	}
	return "doubled"
}

// DelimiterProfile describes how one source splits into fields.
// It is chosen once per file and never changes afterwards.
type DelimiterProfile struct {
	Delimiter rune   `json:"-"`
	Quote     rune   `json:"-"`
	Escape    Escape `json:"-"`
}

// DelimiterName returns a readable name for the delimiter.
func (p DelimiterProfile) DelimiterName() string {
	return DelimiterName(p.Delimiter)
}

func (p DelimiterProfile) String() string {
	return fmt.Sprintf("delimiter=%s quote=%q escape=%s", p.DelimiterName(), p.Quote, p.Escape)
}

// Record is one logical input line after dequoting.
type Record struct {
	Fields []string
	Line   int // 1-based physical line the record starts on
}

// ColumnProfile is one column of a Schema.
type ColumnProfile struct {
	Name     string `json:"name"`
	Type     Type   `json:"type"`
	Nullable bool   `json:"nullable"`
}

// Schema is the ordered column list frozen after inference.
type Schema struct {
	Columns []ColumnProfile `json:"columns"`
}

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.Columns) }

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Types returns the column types in order.
func (s Schema) Types() []Type {
	types := make([]Type, len(s.Columns))
	for i, c := range s.Columns {
		types[i] = c.Type
	}
	return types
}

func (s Schema) String() string {
	parts := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		parts[i] = c.Name + ":" + c.Type.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// InvalidRowPolicy decides what happens to a row that fails validation.
type InvalidRowPolicy int

const (
	PolicyWarn InvalidRowPolicy = iota
	PolicyIgnore
	PolicyFail
)

func (p InvalidRowPolicy) String() string {
	switch p {
	case PolicyIgnore:
		return "ignore"
	case PolicyFail:
		return "fail"
	default:
		return "warn"
	}
}

// ParsePolicy parses warn, ignore or fail.
func ParsePolicy(s string) (InvalidRowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warn", "":
		return PolicyWarn, nil
	case "ignore":
		return PolicyIgnore, nil
	case "fail":
		return PolicyFail, nil
	}
	return PolicyWarn, fmt.Errorf("invalid row policy %q: must be warn, ignore or fail", s)
}

// IfExists decides what happens when the target table already exists.
type IfExists int

const (
	IfExistsAppend IfExists = iota
	IfExistsReplace
	IfExistsFail
)

func (e IfExists) String() string {
	switch e {
	case IfExistsReplace:
		return "replace"
	case IfExistsFail:
		return "fail"
	default:
		return "append"
	}
}

// ParseIfExists parses append, replace or fail.
func ParseIfExists(s string) (IfExists, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "append", "":
		return IfExistsAppend, nil
	case "replace":
		return IfExistsReplace, nil
	case "fail":
		return IfExistsFail, nil
	}
	return IfExistsAppend, fmt.Errorf("invalid if-exists policy %q: must be append, replace or fail", s)
}

// ImportPhase indicates the current stage of an import.
type ImportPhase string

const (
	PhaseQueued    ImportPhase = "queued"
	PhaseSniffing  ImportPhase = "sniffing"
	PhaseInferring ImportPhase = "inferring"
	PhaseLoading   ImportPhase = "loading"
	PhaseComplete  ImportPhase = "complete"
	PhaseFailed    ImportPhase = "failed"
	PhaseCancelled ImportPhase = "cancelled"
)

// Done reports whether the phase is terminal.
func (p ImportPhase) Done() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseCancelled
}

// ImportProgress is a point-in-time snapshot of a running import.
type ImportProgress struct {
	ImportID     string      `json:"import_id"`
	Table        string      `json:"table"`
	Source       string      `json:"source"`
	Phase        ImportPhase `json:"phase"`
	RowsLoaded   int64       `json:"rows_loaded"`
	RowsRejected int64       `json:"rows_rejected"`
	BytesRead    int64       `json:"bytes_read"`
	BytesTotal   int64       `json:"bytes_total,omitempty"`
	Error        string      `json:"error,omitempty"`
}

// Percent returns byte-based progress (0-100), or 0 when the size is unknown.
func (p ImportProgress) Percent() int {
	if p.BytesTotal <= 0 {
		return 0
	}
	pct := int(p.BytesRead * 100 / p.BytesTotal)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// ProgressCallback is called as an import moves through its phases and
// periodically while loading.
type ProgressCallback func(ImportProgress)

// ImportResult is the outcome of importing one source.
type ImportResult struct {
	ImportID     string             `json:"import_id"`
	Source       string             `json:"source"`
	Table        string             `json:"table"`
	RowsLoaded   int64              `json:"rows_loaded"`
	RowsRejected int64              `json:"rows_rejected"`
	Schema       Schema             `json:"schema"`
	Header       bool               `json:"header"`
	Delimiter    string             `json:"delimiter"`
	Profile      DelimiterProfile   `json:"-"`
	Diagnostics  []RowCoercionError `json:"diagnostics,omitempty"`
	Duration     time.Duration      `json:"duration_ns"`
}
