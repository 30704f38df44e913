package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"linksort/internal/jobstate"
	"linksort/internal/logging"
)

// Type names an orchestrator event.
type Type string

const (
	TypeStarted   Type = "started"
	TypeProgress  Type = "progress"
	TypeRetry     Type = "retry"
	TypeCompleted Type = "completed"
	TypeFailed    Type = "failed"
)

// BatchStats describes the batch that produced a progress event.
type BatchStats struct {
	Index          int
	Items          int
	Moved          int
	Errors         int
	Degraded       int
	FoldersCreated int
	Duration       time.Duration
	Provider       string
	Model          string
}

// Event is published by the orchestrator at job milestones.
type Event struct {
	Type    Type
	JobID   string
	At      time.Time
	Cursor  int
	Total   int
	Summary jobstate.Summary
	Batch   BatchStats
	Error   string
	// RetryIn is set on retry events.
	RetryIn time.Duration
	Attempt int
}

// Publisher receives events. Implementations must not block for long; the
// orchestrator publishes inline.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e Event)

func (f PublisherFunc) Publish(ctx context.Context, e Event) { f(ctx, e) }

// Fanout publishes to every non-nil publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, e)
		}
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// LogSink writes every event to a logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a LogSink tagged with the events component.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogSink{logger: logging.NewComponentLogger(logger, "events")}
}

func (s *LogSink) Publish(_ context.Context, e Event) {
	logger := s.logger
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "job_"+string(e.Type)),
		logging.String(logging.FieldJobID, e.JobID),
		logging.Int("cursor", e.Cursor),
		logging.Int("total", e.Total),
	}
	switch e.Type {
	case TypeStarted:
		logger.Info("organize job started", logging.Args(attrs...)...)
	case TypeProgress:
		attrs = append(attrs,
			logging.Int(logging.FieldBatch, e.Batch.Index),
			logging.Int("moved", e.Batch.Moved),
			logging.Int("errors", e.Batch.Errors),
			logging.Int("degraded", e.Batch.Degraded),
			logging.Int("folders_created", e.Batch.FoldersCreated),
			logging.Duration("duration", e.Batch.Duration))
		logger.Info("batch complete", logging.Args(attrs...)...)
	case TypeRetry:
		logging.WarnWithContext(logger, "batch exhausted every provider; retrying", "job_retry",
			append(attrs,
				logging.Int("attempt", e.Attempt),
				logging.Duration("retry_in", e.RetryIn),
				logging.String("error", e.Error),
				logging.String(logging.FieldErrorHint, "check provider status and rate limits"),
				logging.String(logging.FieldImpact, "job progress is delayed"))...)
	case TypeCompleted:
		attrs = append(attrs,
			logging.Int("processed", e.Summary.Processed),
			logging.Int("categorized", e.Summary.Categorized),
			logging.Int("errors", e.Summary.Errors),
			logging.Int("categories", e.Summary.Categories))
		logger.Info("organize job completed", logging.Args(attrs...)...)
	case TypeFailed:
		logging.ErrorWithContext(logger, "organize job failed", "job_failed",
			append(attrs,
				logging.String("error", e.Error),
				logging.Int("categorized", e.Summary.Categorized),
				logging.String(logging.FieldErrorHint, "items already moved stay moved; restore a snapshot to roll back"))...)
	}
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
