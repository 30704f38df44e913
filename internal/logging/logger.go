package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"linksort/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level string
	// Format applies to stdout and stderr: "console" or "json".
	Format string
	// FileFormat applies to file destinations; empty means Format.
	FileFormat       string
	OutputPaths      []string
	ErrorOutputPaths []string
	Development      bool
}

// New builds a logger with one handler per distinct destination. Terminal
// streams use Format and files use FileFormat.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))
	addSource := opts.Development || level.Level() <= slog.LevelDebug

	streamFormat, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	fileFormat := streamFormat
	if strings.TrimSpace(opts.FileFormat) != "" {
		if fileFormat, err = normalizeFormat(opts.FileFormat); err != nil {
			return nil, err
		}
	}

	outputs := opts.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	errOutputs := opts.ErrorOutputPaths
	if len(errOutputs) == 0 {
		errOutputs = []string{"stderr"}
	}

	var handlers []slog.Handler
	for _, dest := range distinct(outputs, errOutputs) {
		w, format, err := openDestination(dest, streamFormat, fileFormat)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, newHandler(format, w, level, addSource))
	}
	if len(handlers) == 0 {
		handlers = append(handlers, newHandler(streamFormat, os.Stdout, level, addSource))
	}
	return slog.New(newFanoutHandler(handlers...)), nil
}

// NewFromConfig creates the CLI logger. Commands log to stderr so stdout
// stays clean for command output, and mirror into linksort-cli.log.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console", OutputPaths: []string{"stderr"}})
	}
	outputs := []string{"stderr"}
	if cfg.Paths.LogDir != "" {
		outputs = append(outputs, filepath.Join(cfg.Paths.LogDir, "linksort-cli.log"))
	}
	return New(Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		FileFormat:       cfg.Logging.FileFormat,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	})
}

func newHandler(format string, w io.Writer, level *slog.LevelVar, addSource bool) slog.Handler {
	if format == "json" {
		return newJSONHandler(w, level, addSource)
	}
	return newConsoleHandler(w, level, addSource)
}

func normalizeFormat(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "", "console":
		return "console", nil
	case "json":
		return "json", nil
	default:
		return "", fmt.Errorf("log format: unsupported value %q", format)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// distinct merges path lists, dropping blanks and duplicates in order.
func distinct(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, p := range list {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

func openDestination(dest, streamFormat, fileFormat string) (io.Writer, string, error) {
	switch dest {
	case "stdout":
		return os.Stdout, streamFormat, nil
	case "stderr":
		return os.Stderr, streamFormat, nil
	}
	if dir := filepath.Dir(dest); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, "", fmt.Errorf("ensure log directory: %w", err)
		}
	}
	file, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, "", fmt.Errorf("open log file %s: %w", dest, err)
	}
	return file, fileFormat, nil
}
