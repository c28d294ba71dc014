package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNew_Format(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	New(&buf, "text", "info").Info("hello", "k", "v")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("expected text output, got %q", buf.String())
	}

	buf.Reset()
	New(&buf, "", "info").Info("hello")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Fatalf("expected json output, got %q", buf.String())
	}

	buf.Reset()
	New(&buf, "json", "error").Info("suppressed")
	if buf.Len() != 0 {
		t.Fatalf("expected info record to be filtered at error level, got %q", buf.String())
	}
}

func TestContextWithLogger(t *testing.T) {
	t.Parallel()

	if got := FromContext(context.Background()); got != nil {
		t.Fatalf("expected nil logger on empty context")
	}

	logger := slog.Default()
	ctx := ContextWithLogger(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Fatalf("expected attached logger to be returned")
	}

	if got := ContextWithLogger(ctx, nil); got != ctx {
		t.Fatalf("expected nil logger to leave context untouched")
	}
}
