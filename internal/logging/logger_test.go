package logging_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"linksort/internal/config"
	"linksort/internal/logging"
	"linksort/internal/services"
)

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
	logger.Info("hello")
	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, "linksort-cli.log")); err != nil {
		t.Fatalf("expected cli log file: %v", err)
	}
}

func readLog(t *testing.T, opts logging.Options, emit func(*slog.Logger)) string {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "out.log")
	opts.OutputPaths = []string{logPath}
	opts.ErrorOutputPaths = []string{logPath}
	logger, err := logging.New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	emit(logger)
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	content := readLog(t, logging.Options{Format: "console", Level: "info"}, func(l *slog.Logger) {
		l.Info("message without caller")
	})
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	content := readLog(t, logging.Options{Format: "console", Level: "debug"}, func(l *slog.Logger) {
		l.Info("message with caller")
	})
	if !strings.Contains(content, ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleHeaderShowsComponentAndJob(t *testing.T) {
	content := readLog(t, logging.Options{Format: "console", Level: "info"}, func(l *slog.Logger) {
		l = logging.NewComponentLogger(l, "organizer")
		l.Info("batch applied",
			logging.String(logging.FieldJobID, "0123456789abcdef"),
			logging.Int(logging.FieldBatch, 50),
			logging.Int("moved", 12),
		)
	})
	if !strings.Contains(content, "[organizer] Job 01234567 (batch 50) – batch applied") {
		t.Fatalf("unexpected header: %q", content)
	}
	if !strings.Contains(content, "batch applied | moved=12\n") {
		t.Fatalf("expected inline details, got %q", content)
	}
	if strings.Contains(content, "job_id") {
		t.Fatalf("job id should be folded into header: %q", content)
	}
}

func TestConsoleLoggerBlocksLongDetails(t *testing.T) {
	content := readLog(t, logging.Options{Format: "console", Level: "info"}, func(l *slog.Logger) {
		l.Info("batch applied",
			logging.Int("moved", 12),
			logging.Int("skipped", 1),
			logging.Int("errors", 0),
			logging.Int("created", 3),
			logging.Int("remaining", 40),
		)
	})
	if !strings.Contains(content, "batch applied\n    - moved: 12\n") {
		t.Fatalf("expected detail block, got %q", content)
	}
	if !strings.Contains(content, "    - remaining: 40\n") {
		t.Fatalf("expected last detail line, got %q", content)
	}
}

func TestJSONLoggerFieldNames(t *testing.T) {
	content := readLog(t, logging.Options{Format: "json", Level: "info"}, func(l *slog.Logger) {
		l.Info("json message", logging.String("k", "v"), logging.Duration("retry_in", 90*time.Second))
	})
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &entry); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, content)
	}
	if entry["msg"] != "json message" || entry["level"] != "info" || entry["k"] != "v" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, err := time.Parse(time.RFC3339, entry["ts"].(string)); err != nil {
		t.Fatalf("unexpected ts: %v", err)
	}
	if entry["retry_in"] != "1m30s" {
		t.Fatalf("expected string duration, got %v", entry["retry_in"])
	}
}

func TestConsoleLoggerQuotesMultiWordValues(t *testing.T) {
	content := readLog(t, logging.Options{Format: "console", Level: "info"}, func(l *slog.Logger) {
		l.Info("filed",
			logging.String("category", "Dev > Go"),
			logging.String(logging.FieldProvider, "openrouter"),
			logging.String(logging.FieldModel, "gpt-4o-mini"),
		)
	})
	if !strings.Contains(content, `category="Dev > Go"`) {
		t.Fatalf("expected quoted category, got %q", content)
	}
	if !strings.Contains(content, "via openrouter/gpt-4o-mini – filed") {
		t.Fatalf("expected provider in header, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	content := readLog(t, logging.Options{Format: "console", Level: "invalid"}, func(l *slog.Logger) {
		l.Debug("hidden")
		l.Info("shown")
	})
	if strings.Contains(content, "hidden") || !strings.Contains(content, "shown") {
		t.Fatalf("unexpected level filtering: %q", content)
	}
}

type captureHandler struct {
	attrs   []slog.Attr
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r)
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.attrs = append(h.attrs, attrs...)
	return h
}

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "job-1")
	ctx = services.WithBatch(ctx, 100)
	ctx = services.WithRequestID(ctx, "req-xyz")

	handler := &captureHandler{}
	logging.WithContext(ctx, slog.New(handler)).Info("contextual log")

	if len(handler.records) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(handler.records))
	}
	got := map[string]string{}
	for _, attr := range handler.attrs {
		got[attr.Key] = attr.Value.String()
	}
	want := map[string]string{
		logging.FieldJobID:         "job-1",
		logging.FieldBatch:         "100",
		logging.FieldCorrelationID: "req-xyz",
	}
	for key, value := range want {
		if got[key] != value {
			t.Fatalf("field %s = %q, want %q", key, got[key], value)
		}
	}
}

func TestFileFormatOverridesStreamFormat(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.log")
	second := filepath.Join(dir, "b.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		FileFormat:       "json",
		OutputPaths:      []string{first, second},
		ErrorOutputPaths: []string{first},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("mirrored", logging.String(logging.FieldJobID, "job-9"))

	for _, path := range []string{first, second} {
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		lines := strings.Split(strings.TrimSpace(string(content)), "\n")
		if len(lines) != 1 {
			t.Fatalf("expected one record in %s, got %q", path, content)
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
			t.Fatalf("expected json in %s: %v (%q)", path, err, content)
		}
		if entry["msg"] != "mirrored" || entry[logging.FieldJobID] != "job-9" {
			t.Fatalf("unexpected entry %v", entry)
		}
	}
}

func TestWarnWithContextFillsMissingFields(t *testing.T) {
	handler := &captureHandler{}
	logging.WarnWithContext(slog.New(handler), "slow", "provider_slow",
		logging.String(logging.FieldImpact, "batch delayed"))

	if len(handler.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(handler.records))
	}
	got := map[string]string{}
	handler.records[0].Attrs(func(a slog.Attr) bool {
		got[a.Key] = a.Value.String()
		return true
	})
	if got[logging.FieldEventType] != "provider_slow" || got[logging.FieldImpact] != "batch delayed" || got[logging.FieldErrorHint] == "" {
		t.Fatalf("unexpected attrs %v", got)
	}
}

func TestCleanupOldLogsRemovesExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "linksort-old.log")
	freshPath := filepath.Join(dir, "linksort-fresh.log")
	keepPath := filepath.Join(dir, "linksort-current.log")
	for _, p := range []string{oldPath, freshPath, keepPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	for _, p := range []string{oldPath, keepPath} {
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	logging.CleanupOldLogs(logging.NewNop(), 5, logging.RetentionTarget{
		Dir:     dir,
		Pattern: "linksort-*.log",
		Exclude: []string{keepPath},
	})

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	for _, p := range []string{freshPath, keepPath} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s kept: %v", p, err)
		}
	}
}
