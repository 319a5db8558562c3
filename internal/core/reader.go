package core

// reader.go turns a text stream plus a DelimiterProfile into records.
//
// Plain single-character delimiters with double-quote quoting go through
// encoding/csv. Whitespace-run delimiters, single quotes and backslash
// escapes use a small rune scanner with the same contract: blank lines are
// skipped, quoted spans may hold delimiters and newlines, and I/O failures
// surface as *SourceReadError.

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// RecordReader yields records one at a time. Next returns io.EOF after the
// last record. A reader is single-pass; re-open the source to start over.
type RecordReader interface {
	Next() (Record, error)
}

// NewRecordReader returns the reader suited to profile.
func NewRecordReader(r io.Reader, profile DelimiterProfile, source string) RecordReader {
	if profile.Delimiter != WhitespaceRun && profile.Quote == '"' && profile.Escape == EscapeDoubled {
		cr := csv.NewReader(r)
		cr.Comma = profile.Delimiter
		cr.FieldsPerRecord = -1
		cr.LazyQuotes = true
		return &csvRecordReader{r: cr, source: source}
	}
	return &scanRecordReader{
		br:      bufio.NewReader(r),
		profile: profile,
		source:  source,
		line:    1,
	}
}

type csvRecordReader struct {
	r      *csv.Reader
	source string
}

func (c *csvRecordReader) Next() (Record, error) {
	fields, err := c.r.Read()
	if err == io.EOF {
		return Record{}, io.EOF
	}
	if err != nil {
		line := 0
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			line = pe.StartLine
		}
		return Record{}, &SourceReadError{Source: c.source, Line: line, Err: err}
	}
	line, _ := c.r.FieldPos(0)
	return Record{Fields: fields, Line: line}, nil
}

type scanRecordReader struct {
	br      *bufio.Reader
	profile DelimiterProfile
	source  string
	line    int
	eof     bool
}

func (s *scanRecordReader) Next() (Record, error) {
	for !s.eof {
		rec, ok, err := s.readRecord()
		if err != nil {
			return Record{}, err
		}
		if ok {
			return rec, nil
		}
	}
	return Record{}, io.EOF
}

// readRecord consumes one logical line. ok is false for blank lines.
func (s *scanRecordReader) readRecord() (rec Record, ok bool, err error) {
	var (
		start      = s.line
		fields     []string
		field      strings.Builder
		ws         = s.profile.Delimiter == WhitespaceRun
		quote      = s.profile.Quote
		inQuote    bool
		content    bool
		fieldStart = true
		pendingSep bool
	)

	flush := func() {
		fields = append(fields, field.String())
		field.Reset()
		fieldStart = true
	}

loop:
	for {
		r, _, rerr := s.br.ReadRune()
		if rerr == io.EOF {
			s.eof = true
			break
		}
		if rerr != nil {
			return Record{}, false, &SourceReadError{Source: s.source, Line: s.line, Err: rerr}
		}

		if inQuote {
			switch {
			case r == '\n':
				s.line++
				field.WriteRune(r)
			case s.profile.Escape == EscapeBackslash && r == '\\':
				next, _, nerr := s.br.ReadRune()
				if nerr != nil {
					field.WriteRune(r)
					continue
				}
				if next == '\n' {
					s.line++
				}
				field.WriteRune(next)
			case r == quote:
				if s.profile.Escape == EscapeDoubled {
					if next, _, nerr := s.br.ReadRune(); nerr == nil {
						if next == quote {
							field.WriteRune(quote)
							continue
						}
						_ = s.br.UnreadRune()
					}
				}
				inQuote = false
			default:
				field.WriteRune(r)
			}
			continue
		}

		switch {
		case r == '\r':
			continue
		case r == '\n':
			s.line++
			break loop
		case ws && (r == ' ' || r == '\t'):
			if content {
				pendingSep = true
			}
			continue
		case !ws && r == s.profile.Delimiter:
			flush()
			content = true
			continue
		}

		if pendingSep {
			flush()
			pendingSep = false
		}
		content = true
		if r == quote && fieldStart {
			inQuote = true
			fieldStart = false
			continue
		}
		fieldStart = false
		field.WriteRune(r)
	}

	if !content {
		return Record{}, false, nil
	}
	fields = append(fields, field.String())
	return Record{Fields: fields, Line: start}, true, nil
}

// readSample reads physical lines from br until n non-empty lines have been
// seen or the input ends, and returns the consumed text verbatim.
func readSample(br *bufio.Reader, n int, source string) (string, error) {
	var b strings.Builder
	seen := 0
	for seen < n {
		line, err := br.ReadString('\n')
		b.WriteString(line)
		if strings.TrimSpace(line) != "" {
			seen++
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", &SourceReadError{Source: source, Err: err}
		}
	}
	return b.String(), nil
}
