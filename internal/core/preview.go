package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// PreviewSummary contains the row counts of a dry run.
type PreviewSummary struct {
	TotalRows int `json:"total_rows"`
	ValidRows int `json:"valid_rows"`
	ErrorRows int `json:"error_rows"`
}

// RowPreview is one row as it would be stored.
type RowPreview struct {
	LineNumber int               `json:"line_number"`
	Values     map[string]string `json:"values"`
}

// PreviewResponse is what an import would do, without writing anything.
type PreviewResponse struct {
	Source           string             `json:"source"`
	Table            string             `json:"table"`
	Delimiter        string             `json:"delimiter"`
	Header           bool               `json:"header"`
	Schema           Schema             `json:"schema"`
	TableExists      bool               `json:"table_exists"`
	Conflict         string             `json:"conflict,omitempty"`
	Summary          PreviewSummary     `json:"summary"`
	RowSamples       []RowPreview       `json:"row_samples"`
	ErrorSamples     []RowCoercionError `json:"error_samples"`
	ProcessingTimeMs int64              `json:"processing_time_ms"`
}

// Sample limits
const (
	maxRowSamples   = 10
	maxErrorSamples = 20
)

// Preview runs sniffing, inference and coercion over the whole source but
// writes nothing. When the target table exists it reports whether the
// inferred schema could be appended to it under opts.IfExists.
func (im *Importer) Preview(ctx context.Context, raw io.Reader, source string, opts Options) (*PreviewResponse, error) {
	startTime := time.Now()
	opts = opts.withDefaults()

	src, err := OpenSource(raw, opts.Size, opts.Encoding)
	if err != nil {
		return nil, &SourceReadError{Source: source, Err: err}
	}
	defer src.Close()

	br := bufio.NewReaderSize(src, 64*1024)
	sample, profile, err := sniffSource(br, source, opts)
	if err != nil {
		return nil, err
	}
	records := NewRecordReader(io.MultiReader(strings.NewReader(sample), br), profile, source)
	window, inference, err := inferWindow(records, source, opts)
	if err != nil {
		return nil, err
	}

	resp := &PreviewResponse{
		Source:    source,
		Table:     opts.Table,
		Delimiter: profile.DelimiterName(),
		Header:    inference.Header,
		Schema:    inference.Schema,
	}

	if opts.Table != "" && im.store != nil {
		if err := im.checkTarget(ctx, resp, opts); err != nil {
			return nil, err
		}
	}

	coercer := NewCoercer(inference.Schema, source)
	names := inference.Schema.Names()
	row := 0
	analyze := func(rec Record) error {
		row++
		if row%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		resp.Summary.TotalRows++

		values, err := coercer.Coerce(rec, row)
		if err != nil {
			var rowErr *RowCoercionError
			if !errors.As(err, &rowErr) {
				return err
			}
			resp.Summary.ErrorRows++
			if len(resp.ErrorSamples) < maxErrorSamples {
				resp.ErrorSamples = append(resp.ErrorSamples, *rowErr)
			}
			return nil
		}

		resp.Summary.ValidRows++
		if len(resp.RowSamples) < maxRowSamples {
			resp.RowSamples = append(resp.RowSamples, RowPreview{
				LineNumber: rec.Line,
				Values:     previewValues(names, values),
			})
		}
		return nil
	}

	for _, rec := range window {
		if err := analyze(rec); err != nil {
			return nil, err
		}
	}
	for {
		rec, err := records.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlankRecord(rec.Fields) {
			continue
		}
		if err := analyze(rec); err != nil {
			return nil, err
		}
	}

	resp.ProcessingTimeMs = time.Since(startTime).Milliseconds()
	return resp, nil
}

// checkTarget fills in what would happen to an existing target table.
func (im *Importer) checkTarget(ctx context.Context, resp *PreviewResponse, opts Options) error {
	existing, found, err := im.store.Columns(ctx, opts.Table)
	if err != nil {
		return fmt.Errorf("inspect table %q: %w", opts.Table, err)
	}
	resp.TableExists = found
	if !found {
		return nil
	}

	switch opts.IfExists {
	case IfExistsFail:
		resp.Conflict = "table already exists"
	case IfExistsAppend:
		if _, err := compatibleTable(opts.Table, existing, resp.Schema); err != nil {
			var conflict *SchemaConflictError
			if errors.As(err, &conflict) {
				resp.Conflict = conflict.Reason
			}
		}
	}
	return nil
}

func previewValues(names []string, values []any) map[string]string {
	out := make(map[string]string, len(names))
	for i, name := range names {
		out[name] = formatValueForPreview(values[i])
	}
	return out
}

// formatValueForPreview renders a coerced value; NULL stays empty.
func formatValueForPreview(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
