package core

import (
	"context"
	"log/slog"
	"sync"

	"github.com/JonMunkholm/csvsql/internal/logging"
)

// DiagnosticSink receives one event per rejected row under the warn policy.
type DiagnosticSink interface {
	Reject(ctx context.Context, d *RowCoercionError)
}

// SlogSink logs rejected rows at WARN through the context logger.
type SlogSink struct{}

func (SlogSink) Reject(ctx context.Context, d *RowCoercionError) {
	attrs := []any{
		"file", d.Source,
		"line", d.Line,
		"row", d.Row,
		"reason", d.Reason,
	}
	if d.Column != "" {
		attrs = append(attrs, "column", d.Column)
	}
	if d.Expected != "" {
		attrs = append(attrs, "expected", d.Expected, "value", d.Value)
	}
	logging.FromContext(ctx).Log(ctx, slog.LevelWarn, "row rejected", attrs...)
}

// CollectingSink keeps every diagnostic in memory. Safe for concurrent use.
type CollectingSink struct {
	mu   sync.Mutex
	rows []RowCoercionError
}

func (s *CollectingSink) Reject(_ context.Context, d *RowCoercionError) {
	s.mu.Lock()
	s.rows = append(s.rows, *d)
	s.mu.Unlock()
}

// Diagnostics returns a copy of everything collected so far.
func (s *CollectingSink) Diagnostics() []RowCoercionError {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RowCoercionError, len(s.rows))
	copy(out, s.rows)
	return out
}

// MultiSink fans diagnostics out to several sinks.
type MultiSink []DiagnosticSink

func (m MultiSink) Reject(ctx context.Context, d *RowCoercionError) {
	for _, s := range m {
		s.Reject(ctx, d)
	}
}
