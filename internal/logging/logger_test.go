package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"critical", slog.LevelError},
		{"", slog.LevelWarn},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "level %q", tt.in)
	}
}

func TestStep(t *testing.T) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)

	Step(level, 1)
	assert.Equal(t, slog.LevelInfo, level.Level())

	Step(level, 5)
	assert.Equal(t, slog.LevelDebug, level.Level())

	Step(level, -10)
	assert.Equal(t, slog.LevelError, level.Level())
}

func TestFromContext_AddsIDs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(NewHandler(&buf, "text", slog.LevelInfo)))
	defer slog.SetDefault(prev)

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	ctx = WithImportID(ctx, "imp-9")

	FromContext(ctx).Info("hello")

	out := buf.String()
	assert.Contains(t, out, "request_id=req-1")
	assert.Contains(t, out, "import_id=imp-9")
	assert.Equal(t, "imp-9", ImportID(ctx))
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(NewHandler(&buf, "json", slog.LevelInfo)))
	defer slog.SetDefault(prev)

	WithFields(context.Background(), "table", "people").Info("done")

	assert.Contains(t, buf.String(), `"table":"people"`)
}
