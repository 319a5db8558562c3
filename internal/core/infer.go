package core

// TypeInferencer tracks one running type per column over the sample window.
// Every column starts at Integer and only widens through Widen. Empty fields
// and missing trailing fields mark a column nullable without widening it.
type TypeInferencer struct {
	types    []Type
	seen     []bool
	nullable []bool
	rows     int
}

// NewTypeInferencer starts inference for a fixed number of columns.
func NewTypeInferencer(columns int) *TypeInferencer {
	return &TypeInferencer{
		types:    make([]Type, columns),
		seen:     make([]bool, columns),
		nullable: make([]bool, columns),
	}
}

// Observe folds one record into the running types. Extra fields are ignored.
func (ti *TypeInferencer) Observe(fields []string) {
	ti.rows++
	for i := range ti.types {
		if i >= len(fields) || IsEmpty(fields[i]) {
			ti.nullable[i] = true
			continue
		}
		ti.seen[i] = true
		if ti.types[i] == Text {
			continue
		}
		ti.types[i] = Widen(ti.types[i], Classify(fields[i]))
	}
}

// Rows returns the number of records observed.
func (ti *TypeInferencer) Rows() int { return ti.rows }

// Types returns the current type per column. A column that never held a
// value is Text.
func (ti *TypeInferencer) Types() []Type {
	out := make([]Type, len(ti.types))
	for i, t := range ti.types {
		if !ti.seen[i] {
			t = Text
		}
		out[i] = t
	}
	return out
}

// Schema freezes the observed types under the given column names.
func (ti *TypeInferencer) Schema(names []string) Schema {
	types := ti.Types()
	cols := make([]ColumnProfile, len(types))
	for i, t := range types {
		cols[i] = ColumnProfile{Name: names[i], Type: t, Nullable: ti.nullable[i] || !ti.seen[i]}
	}
	return Schema{Columns: cols}
}

// hasTypedColumn reports whether any observed column is narrower than Text.
func (ti *TypeInferencer) hasTypedColumn() bool {
	for i, t := range ti.types {
		if ti.seen[i] && t != Text {
			return true
		}
	}
	return false
}

// Inference is the outcome of examining the sample window.
type Inference struct {
	Schema Schema
	Header bool
}

// InferSchema decides whether the first record is a header and infers the
// column types from at most sampleSize data records of window. window should
// hold up to sampleSize+1 records so a header does not shrink the sample.
// Column names come from the header, or are positional defaults derived
// from table.
func InferSchema(window []Record, sampleSize int, table string) Inference {
	if len(window) == 0 {
		return Inference{}
	}

	header := detectHeader(window, sampleSize)
	columns := len(window[0].Fields)

	sample := window
	var headerFields []string
	if header {
		headerFields = window[0].Fields
		sample = window[1:]
	}
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}

	ti := NewTypeInferencer(columns)
	for _, rec := range sample {
		ti.Observe(rec.Fields)
	}

	return Inference{
		Schema: ti.Schema(ColumnNames(headerFields, columns, table)),
		Header: header,
	}
}

// detectHeader treats the first record as a header when none of its fields
// is numeric while the records after it infer at least one numeric column.
func detectHeader(window []Record, sampleSize int) bool {
	if len(window) < 2 {
		return false
	}
	first := window[0].Fields
	for _, f := range first {
		if !IsEmpty(f) && Classify(f) != Text {
			return false
		}
	}

	rest := window[1:]
	if len(rest) > sampleSize {
		rest = rest[:sampleSize]
	}
	ti := NewTypeInferencer(len(first))
	for _, rec := range rest {
		ti.Observe(rec.Fields)
	}
	return ti.hasTypedColumn()
}
