// Package logging assembles structured slog loggers for linksort.
//
// It owns the console and JSON handlers, level parsing, output routing, and
// helpers that tag log lines with job ids, batch cursors, and providers taken
// from the context. A no-op logger is provided for tests and wiring code.
package logging
