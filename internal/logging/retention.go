package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget specifies a directory and filename pattern to prune.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// CleanupOldLogs removes files matching the targets whose modification time is
// older than retentionDays. Zero or negative retention disables pruning.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) {
	if retentionDays <= 0 {
		return
	}
	if logger == nil {
		logger = NewNop()
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	excluded := exclusionSet(targets)
	for _, target := range targets {
		for _, path := range expiredFiles(target, cutoff, excluded) {
			if err := os.Remove(path); err != nil {
				logger.Warn("log retention remove failed; file remains",
					String("path", path),
					Error(err),
					String(FieldEventType, "log_retention_failed"),
					String(FieldErrorHint, "check permissions on log_dir"),
				)
				continue
			}
			logger.Debug("log pruned", String("path", path), String(FieldEventType, "log_pruned"))
		}
	}
}

func exclusionSet(targets []RetentionTarget) map[string]struct{} {
	out := make(map[string]struct{})
	for _, target := range targets {
		for _, path := range target.Exclude {
			trimmed := strings.TrimSpace(path)
			if trimmed == "" {
				continue
			}
			if abs, err := filepath.Abs(trimmed); err == nil {
				out[abs] = struct{}{}
			}
		}
	}
	return out
}

func expiredFiles(target RetentionTarget, cutoff time.Time, excluded map[string]struct{}) []string {
	dir := strings.TrimSpace(target.Dir)
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	pattern := strings.TrimSpace(target.Pattern)
	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if pattern != "" {
			if matched, err := filepath.Match(pattern, entry.Name()); err != nil || !matched {
				continue
			}
		}
		path := filepath.Join(dir, entry.Name())
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if _, skip := excluded[path]; skip {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		out = append(out, path)
	}
	return out
}
