package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// headerKeys are shown in the console header instead of the detail section.
var headerKeys = map[string]struct{}{
	FieldComponent:     {},
	FieldJobID:         {},
	FieldBatch:         {},
	FieldProvider:      {},
	FieldModel:         {},
	FieldCorrelationID: {},
}

const (
	inlineDetailLimit = 4
	inlineWidthLimit  = 72
)

// consoleHandler writes one header line per record. Up to four short fields
// follow the message inline; anything larger goes in an indented block.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     *slog.LevelVar
	fields    []field
	prefix    string
	addSource bool
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := make([]field, 0, len(h.fields)+record.NumAttrs())
	fields = append(fields, h.fields...)
	record.Attrs(func(a slog.Attr) bool {
		fields = appendAttr(fields, h.prefix, a)
		return true
	})
	fields = lastWins(fields)

	header := make(map[string]string, len(headerKeys))
	details := fields[:0:0]
	for _, f := range fields {
		if _, ok := headerKeys[f.key]; ok {
			header[f.key] = attrString(f.value)
			if record.Level >= slog.LevelInfo {
				continue
			}
		}
		details = append(details, f)
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	b.WriteString(formatTimestamp(ts))
	b.WriteByte(' ')
	b.WriteString(levelLabel(record.Level))
	if c := header[FieldComponent]; c != "" {
		b.WriteString(" [" + c + "]")
	}
	if s := formatSubject(header[FieldJobID], header[FieldBatch]); s != "" {
		b.WriteString(" " + s)
	}
	if via := joinNonEmpty("/", header[FieldProvider], header[FieldModel]); via != "" {
		b.WriteString(" via " + via)
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	b.WriteString(" – " + msg)

	rendered := make([]string, len(details))
	width := 0
	for i, f := range details {
		rendered[i] = f.key + "=" + formatValue(f.value)
		width += len(rendered[i]) + 1
	}
	inline := len(details) <= inlineDetailLimit && width <= inlineWidthLimit
	if inline && len(details) > 0 {
		b.WriteString(" | " + strings.Join(rendered, " "))
	}
	if h.addSource && record.PC != 0 {
		if src := record.Source(); src != nil {
			b.WriteString(" [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]")
		}
	}
	b.WriteByte('\n')
	if !inline {
		for _, f := range details {
			b.WriteString("    - " + f.key + ": " + formatValue(f.value) + "\n")
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.fields = append([]field(nil), h.fields...)
	for _, a := range attrs {
		clone.fields = appendAttr(clone.fields, h.prefix, a)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

// appendAttr flattens groups into dotted keys.
func appendAttr(dst []field, prefix string, a slog.Attr) []field {
	if a.Equal(slog.Attr{}) {
		return dst
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			dst = appendAttr(dst, inner, ga)
		}
		return dst
	}
	key := prefix + a.Key
	if a.Key == "" {
		key = strings.TrimSuffix(prefix, ".")
	}
	if key == "" {
		return dst
	}
	return append(dst, field{key: key, value: v})
}

// lastWins keeps the first position of each key with its latest value.
func lastWins(fields []field) []field {
	if len(fields) < 2 {
		return fields
	}
	index := make(map[string]int, len(fields))
	out := make([]field, 0, len(fields))
	for _, f := range fields {
		if i, ok := index[f.key]; ok {
			out[i].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

// formatSubject renders the job and batch part of the header.
func formatSubject(jobID, batch string) string {
	jobID = strings.TrimSpace(jobID)
	if len(jobID) > 8 {
		jobID = jobID[:8]
	}
	batch = strings.TrimSpace(batch)
	switch {
	case jobID != "" && batch != "":
		return "Job " + jobID + " (batch " + batch + ")"
	case jobID != "":
		return "Job " + jobID
	case batch != "":
		return "batch " + batch
	}
	return ""
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
