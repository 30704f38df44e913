package logging

import (
	"log/slog"

	slogmulti "github.com/samber/slog-multi"
)

// newFanoutHandler sends each record to every non-nil handler.
func newFanoutHandler(handlers ...slog.Handler) slog.Handler {
	filtered := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	switch len(filtered) {
	case 0:
		return NoopHandler{}
	case 1:
		return filtered[0]
	}
	return slogmulti.Fanout(filtered...)
}
