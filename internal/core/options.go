package core

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/csvsql/internal/config"
)

// Default tuning values, matching the config package defaults.
const (
	DefaultSniffLines = 20
	DefaultSampleSize = 50
	DefaultBatchSize  = 1000

	// ContextCheckInterval is how many records pass between cancellation checks.
	ContextCheckInterval = 100
)

// DefaultDelimiters is the candidate list in tie-break priority order.
var DefaultDelimiters = []rune{',', '\t', ';', '|', WhitespaceRun}

// Options is the explicit per-import configuration.
type Options struct {
	Table      string
	Policy     InvalidRowPolicy
	IfExists   IfExists
	SniffLines int
	SampleSize int
	Delimiters []rune
	BatchSize  int

	// Encoding is a WHATWG charset label; empty means UTF-8.
	Encoding string

	// Size is the source size in bytes when known, for progress reporting.
	Size int64

	// Diagnostics receives rejected rows under the warn policy.
	// Nil means log them through slog.
	Diagnostics DiagnosticSink

	// Progress, if set, receives phase changes and periodic load updates.
	Progress ProgressCallback
}

// DefaultOptions returns options for importing into table with default tuning.
func DefaultOptions(table string) Options {
	return Options{
		Table:      table,
		SniffLines: DefaultSniffLines,
		SampleSize: DefaultSampleSize,
		Delimiters: DefaultDelimiters,
		BatchSize:  DefaultBatchSize,
	}
}

// OptionsFromConfig builds import options from loaded configuration.
func OptionsFromConfig(cfg config.ImportConfig) (Options, error) {
	opts := DefaultOptions("")

	policy, err := ParsePolicy(cfg.InvalidPolicy)
	if err != nil {
		return opts, err
	}
	ifExists, err := ParseIfExists(cfg.IfExists)
	if err != nil {
		return opts, err
	}
	delims, err := ParseDelimiters(cfg.Delimiters)
	if err != nil {
		return opts, err
	}

	opts.Policy = policy
	opts.IfExists = ifExists
	opts.Delimiters = delims
	opts.SniffLines = cfg.SniffLines
	opts.SampleSize = cfg.SampleSize
	opts.BatchSize = cfg.BatchSize
	opts.Encoding = cfg.Encoding
	return opts.withDefaults(), nil
}

func (o Options) withDefaults() Options {
	if o.SniffLines <= 0 {
		o.SniffLines = DefaultSniffLines
	}
	if o.SampleSize <= 0 {
		o.SampleSize = DefaultSampleSize
	}
	if len(o.Delimiters) == 0 {
		o.Delimiters = DefaultDelimiters
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Diagnostics == nil {
		o.Diagnostics = SlogSink{}
	}
	return o
}

var delimiterNames = map[string]rune{
	"comma":      ',',
	"tab":        '\t',
	`\t`:         '\t',
	"semicolon":  ';',
	"pipe":       '|',
	"colon":      ':',
	"space":      WhitespaceRun,
	"ws":         WhitespaceRun,
	"whitespace": WhitespaceRun,
}

// ParseDelimiter accepts a delimiter name (comma, tab, semicolon, pipe,
// colon, space) or a single character.
func ParseDelimiter(s string) (rune, error) {
	if r, ok := delimiterNames[strings.ToLower(s)]; ok {
		return r, nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("invalid delimiter %q: use a name or a single character", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	switch r {
	case '"', '\'', '\r', '\n', utf8.RuneError:
		return 0, fmt.Errorf("invalid delimiter %q", s)
	case ' ':
		return WhitespaceRun, nil
	}
	return r, nil
}

// ParseDelimiters parses a candidate list, dropping duplicates.
func ParseDelimiters(names []string) ([]rune, error) {
	seen := make(map[rune]bool, len(names))
	out := make([]rune, 0, len(names))
	for _, n := range names {
		r, err := ParseDelimiter(n)
		if err != nil {
			return nil, err
		}
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no candidate delimiters")
	}
	return out, nil
}

// DelimiterName returns a readable name for a delimiter rune.
func DelimiterName(r rune) string {
	switch r {
	case ',':
		return "comma"
	case '\t':
		return "tab"
	case ';':
		return "semicolon"
	case '|':
		return "pipe"
	case ':':
		return "colon"
	case WhitespaceRun:
		return "whitespace"
	}
	return string(r)
}
