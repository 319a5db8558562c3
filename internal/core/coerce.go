package core

import "fmt"

// Coercer converts records into typed rows against a frozen Schema.
type Coercer struct {
	schema Schema
	source string
}

// NewCoercer returns a coercer for schema. source names the input in
// diagnostics.
func NewCoercer(schema Schema, source string) *Coercer {
	return &Coercer{schema: schema, source: source}
}

// Coerce parses every field of rec into its column's type. row is the
// 1-based data row number. The whole row is rejected on the first failure
// with a *RowCoercionError.
func (c *Coercer) Coerce(rec Record, row int) ([]any, error) {
	if len(rec.Fields) != c.schema.Len() {
		return nil, &RowCoercionError{
			Source: c.source,
			Line:   rec.Line,
			Row:    row,
			Reason: fmt.Sprintf("expected %d fields, got %d", c.schema.Len(), len(rec.Fields)),
			Fields: rec.Fields,
		}
	}

	values := make([]any, len(rec.Fields))
	for i, raw := range rec.Fields {
		col := c.schema.Columns[i]
		v, err := ParseValue(raw, col.Type)
		if err != nil {
			return nil, &RowCoercionError{
				Source:   c.source,
				Line:     rec.Line,
				Row:      row,
				Column:   col.Name,
				Expected: col.Type.String(),
				Value:    raw,
				Reason:   fmt.Sprintf("%q is %v", raw, err),
				Fields:   rec.Fields,
				Err:      err,
			}
		}
		values[i] = v
	}
	return values, nil
}
