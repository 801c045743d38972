package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"dubmaster/internal/services"
)

func TestConsoleHandlerFormatsAttrs(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Info("stage started", String("stage", "extract"), Int("step", 1))

	line := buf.String()
	if !strings.Contains(line, "INFO") {
		t.Fatalf("missing level: %q", line)
	}
	if !strings.Contains(line, "stage started") {
		t.Fatalf("missing message: %q", line)
	}
	if !strings.Contains(line, "stage=extract") || !strings.Contains(line, "step=1") {
		t.Fatalf("missing attrs: %q", line)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Info("ignored")
	if buf.Len() != 0 {
		t.Fatalf("expected info suppressed, got %q", buf.String())
	}
	logger.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("expected warn emitted, got %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	ctx := services.WithJobID(context.Background(), "abcd1234")
	ctx = services.WithStage(ctx, "translate")
	WithContext(ctx, logger).Info("hello")

	line := buf.String()
	if !strings.Contains(line, "job_id=abcd1234") {
		t.Fatalf("missing job id: %q", line)
	}
	if !strings.Contains(line, "stage=translate") {
		t.Fatalf("missing stage: %q", line)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	logger.Error("nothing happens", Error(nil))
}
