package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/csvsql/internal/logging"
)

// MaxResultDiagnostics caps the diagnostics kept on an ImportResult. The
// diagnostic sink still sees every rejected row.
const MaxResultDiagnostics = 1000

// Importer runs import sessions against one store. Sessions may run
// concurrently; their writes serialize through the gate.
type Importer struct {
	store Store
	gate  *WriteGate
}

// NewImporter returns an importer writing into store. gate may be nil when
// only one session runs at a time.
func NewImporter(store Store, gate *WriteGate) *Importer {
	return &Importer{store: store, gate: gate}
}

// Import runs one session: sniff, infer, create the table, then validate and
// load every record. source names the input in results and diagnostics.
//
// The returned result is non-nil once the table exists, even when err is
// not: rows committed before a failure stay in the store and are counted.
func (im *Importer) Import(ctx context.Context, raw io.Reader, source string, opts Options) (*ImportResult, error) {
	start := time.Now()
	opts = opts.withDefaults()
	if opts.Table == "" {
		return nil, ErrNoTable
	}

	s := &session{
		im:     im,
		opts:   opts,
		source: source,
		result: &ImportResult{
			ImportID: logging.ImportID(ctx),
			Source:   source,
			Table:    opts.Table,
		},
		log: logging.WithFields(ctx, "source", source, "table", opts.Table),
	}
	defer func() { s.result.Duration = time.Since(start) }()

	src, err := OpenSource(raw, opts.Size, opts.Encoding)
	if err != nil {
		return nil, &SourceReadError{Source: source, Err: err}
	}
	defer src.Close()
	s.src = src

	err = s.run(ctx)
	switch {
	case err == nil:
		s.report(PhaseComplete, "")
	case ctx.Err() != nil:
		s.report(PhaseCancelled, err.Error())
	default:
		s.report(PhaseFailed, err.Error())
	}

	if s.table == nil {
		return nil, err
	}
	return s.result, err
}

type session struct {
	im     *Importer
	opts   Options
	source string
	src    *Source
	result *ImportResult
	log    *slog.Logger

	table  *Table
	loader *Loader
	row    int
}

func (s *session) run(ctx context.Context) error {
	s.report(PhaseSniffing, "")

	br := bufio.NewReaderSize(s.src, 64*1024)
	sample, profile, err := sniffSource(br, s.source, s.opts)
	if err != nil {
		return err
	}
	s.result.Profile = profile
	s.result.Delimiter = profile.DelimiterName()
	s.log.Debug("delimiter sniffed", "profile", profile.String())

	s.report(PhaseInferring, "")
	records := NewRecordReader(io.MultiReader(strings.NewReader(sample), br), profile, s.source)
	window, inference, err := inferWindow(records, s.source, s.opts)
	if err != nil {
		return err
	}
	s.result.Schema = inference.Schema
	s.result.Header = inference.Header
	s.log.Info("schema inferred", "schema", inference.Schema.String(), "header", inference.Header)

	if err := s.im.gate.Lock(ctx); err != nil {
		return err
	}
	table, err := SchemaBuilder{Store: s.im.store, IfExists: s.opts.IfExists}.Build(ctx, s.opts.Table, inference.Schema)
	s.im.gate.Unlock()
	if err != nil {
		return err
	}
	s.table = &table

	s.report(PhaseLoading, "")
	s.loader = NewLoader(s.im.store, s.im.gate, table, s.opts.BatchSize)
	coercer := NewCoercer(inference.Schema, s.source)

	for _, rec := range window {
		if err := s.process(ctx, coercer, rec); err != nil {
			return s.stop(ctx, err)
		}
	}

	for {
		rec, err := records.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return s.stop(ctx, err)
		}
		if isBlankRecord(rec.Fields) {
			continue
		}
		if err := s.process(ctx, coercer, rec); err != nil {
			return s.stop(ctx, err)
		}
	}

	err = s.loader.Flush(ctx)
	s.result.RowsLoaded = s.loader.Loaded()
	return err
}

// sniffSource reads the sniff sample from br and picks the delimiter. The
// sample is returned so the caller can replay it ahead of the rest of br.
func sniffSource(br *bufio.Reader, source string, opts Options) (string, DelimiterProfile, error) {
	sample, err := readSample(br, opts.SniffLines, source)
	if err != nil {
		return "", DelimiterProfile{}, err
	}
	if strings.TrimSpace(sample) == "" {
		return "", DelimiterProfile{}, fmt.Errorf("%s: %w", source, ErrEmptySource)
	}

	profile, err := Sniff(sample, opts.Delimiters)
	if err != nil {
		var ambiguous *AmbiguousDelimiterError
		if errors.As(err, &ambiguous) {
			ambiguous.Source = source
		}
		return "", DelimiterProfile{}, err
	}
	return sample, profile, nil
}

// inferWindow buffers the inference window and freezes the schema. The
// returned records are the data records of the window, header removed,
// still to be loaded.
func inferWindow(records RecordReader, source string, opts Options) ([]Record, Inference, error) {
	window, err := readWindow(records, opts.SampleSize+1)
	if err != nil {
		return nil, Inference{}, err
	}
	if len(window) == 0 {
		return nil, Inference{}, fmt.Errorf("%s: %w", source, ErrEmptySource)
	}

	inference := InferSchema(window, opts.SampleSize, opts.Table)
	if inference.Header {
		window = window[1:]
	}
	return window, inference, nil
}

// readWindow buffers up to n non-blank records for inference.
func readWindow(records RecordReader, n int) ([]Record, error) {
	window := make([]Record, 0, n)
	for len(window) < n {
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
		window = append(window, rec)
	}
	return window, nil
}

// process validates and loads one record, applying the invalid-row policy.
func (s *session) process(ctx context.Context, coercer *Coercer, rec Record) error {
	s.row++
	if s.row%ContextCheckInterval == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.report(PhaseLoading, "")
	}

	values, err := coercer.Coerce(rec, s.row)
	if err == nil {
		err = s.loader.Add(ctx, values)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrRowInsert) {
			return err
		}
		err = &RowCoercionError{
			Source: s.source,
			Line:   rec.Line,
			Row:    s.row,
			Reason: err.Error(),
			Fields: rec.Fields,
			Err:    err,
		}
	}

	var rowErr *RowCoercionError
	if !errors.As(err, &rowErr) {
		return err
	}

	s.result.RowsRejected++
	switch s.opts.Policy {
	case PolicyIgnore:
		return nil
	case PolicyFail:
		s.keep(rowErr)
		return rowErr
	default:
		s.keep(rowErr)
		s.opts.Diagnostics.Reject(ctx, rowErr)
		return nil
	}
}

func (s *session) keep(rowErr *RowCoercionError) {
	if len(s.result.Diagnostics) < MaxResultDiagnostics {
		s.result.Diagnostics = append(s.result.Diagnostics, *rowErr)
	}
}

// stop ends the load early. Rows accepted so far are committed, also when
// the context is done: cancellation stops the load but keeps what it wrote.
func (s *session) stop(ctx context.Context, cause error) error {
	if err := s.loader.Flush(context.WithoutCancel(ctx)); err != nil {
		cause = errors.Join(cause, err)
	}
	s.result.RowsLoaded = s.loader.Loaded()
	return cause
}

func (s *session) report(phase ImportPhase, errMsg string) {
	if s.opts.Progress == nil {
		return
	}
	loaded := s.result.RowsLoaded
	if s.loader != nil && !phase.Done() {
		loaded = s.loader.Loaded() + s.loader.Pending()
	}
	var read, total int64
	if s.src != nil {
		read, total = s.src.BytesRead(), s.src.Total()
	}
	s.opts.Progress(ImportProgress{
		ImportID:     s.result.ImportID,
		Table:        s.result.Table,
		Source:       s.source,
		Phase:        phase,
		RowsLoaded:   loaded,
		RowsRejected: s.result.RowsRejected,
		BytesRead:    read,
		BytesTotal:   total,
		Error:        errMsg,
	})
}
