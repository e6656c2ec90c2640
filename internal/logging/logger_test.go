package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		"  info ": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)
	logger := slog.New(newConsoleHandler(&buf, lvl, false))

	logger.Info("converted deck",
		String(FieldComponent, "pipeline"),
		Int(FieldSlides, 12),
		String(FieldSource, "quarterly review.pptx"),
	)

	line := buf.String()
	if !strings.Contains(line, "INFO") {
		t.Errorf("missing level label in %q", line)
	}
	if !strings.Contains(line, "pipeline: converted deck") {
		t.Errorf("component prefix missing in %q", line)
	}
	if !strings.Contains(line, `slide_count=12`) {
		t.Errorf("slide_count attr missing in %q", line)
	}
	if !strings.Contains(line, `source_file="quarterly review.pptx"`) {
		t.Errorf("expected quoted source attr in %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Errorf("component should render as prefix, not attr: %q", line)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, lvl, false))

	logger.Info("should be dropped")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Errorf("info record leaked through warn level: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("warn record missing: %q", out)
	}
}

func TestConsoleHandlerWithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelDebug)
	base := slog.New(newConsoleHandler(&buf, lvl, false))

	child := base.With(String("run", "abc123")).WithGroup("tool")
	child.Debug("step done", String("binary", "pdftoppm"))

	line := buf.String()
	if !strings.Contains(line, "run=abc123") {
		t.Errorf("inherited attr missing: %q", line)
	}
	if !strings.Contains(line, "tool.binary=pdftoppm") {
		t.Errorf("grouped attr not flattened: %q", line)
	}
}

func TestJSONHandlerKeys(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)
	logger := slog.New(newJSONHandler(&buf, lvl, false))

	logger.Info("hello", Int("n", 3))

	line := buf.String()
	for _, key := range []string{`"ts":`, `"level":"info"`, `"msg":"hello"`, `"n":3`} {
		if !strings.Contains(line, key) {
			t.Errorf("json output missing %s: %q", key, line)
		}
	}
}

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nested", "carousel.log")

	logger, err := New(Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("file sink works")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "file sink works") {
		t.Errorf("log file missing record: %q", string(data))
	}
}

func TestErrorAttr(t *testing.T) {
	attr := Error(errors.New("boom"))
	if attr.Key != FieldError || attr.Value.String() != "boom" {
		t.Errorf("unexpected attr %v", attr)
	}
	nilAttr := Error(nil)
	if nilAttr.Value.String() != "<nil>" {
		t.Errorf("nil error should stringify to <nil>, got %q", nilAttr.Value.String())
	}
}

func TestNewComponentLoggerNilBase(t *testing.T) {
	logger := NewComponentLogger(nil, "janitor")
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	// Must not panic and must stay silent.
	logger.Info("ignored")
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("nop logger should report disabled at every level")
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()

	oldPath := filepath.Join(dir, "carousel-20240101-000000.log")
	newPath := filepath.Join(dir, "carousel-20260101-000000.log")
	keepPath := filepath.Join(dir, "carousel.log")
	for _, p := range []string{oldPath, newPath, keepPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	stale := time.Now().AddDate(0, 0, -45)
	if err := os.Chtimes(oldPath, stale, stale); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(keepPath, stale, stale); err != nil {
		t.Fatal(err)
	}

	err := CleanupOldLogs([]RetentionTarget{{
		Dir:     dir,
		Pattern: "carousel-*.log",
		Exclude: map[string]struct{}{"carousel.log": {}},
	}}, 30)
	if err != nil {
		t.Fatalf("CleanupOldLogs: %v", err)
	}

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("stale run log should be removed")
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Error("recent run log should survive")
	}
	if _, err := os.Stat(keepPath); err != nil {
		t.Error("excluded pointer file should survive even when stale")
	}
}

func TestCleanupOldLogsZeroRetentionIsNoop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "carousel-old.log")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	stale := time.Now().AddDate(-1, 0, 0)
	if err := os.Chtimes(path, stale, stale); err != nil {
		t.Fatal(err)
	}
	if err := CleanupOldLogs([]RetentionTarget{{Dir: dir}}, 0); err != nil {
		t.Fatalf("CleanupOldLogs: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("zero retention must not delete anything")
	}
}
