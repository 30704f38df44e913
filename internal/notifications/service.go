package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"linksort/internal/config"
	"linksort/internal/events"
	"linksort/internal/logging"
)

const userAgent = "linksort/0.1.0"

// Service pushes job events to ntfy. It satisfies events.Publisher; delivery
// failures are logged and never reach the job.
type Service struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
	enabled  map[events.Type]bool
}

// NewService builds a notifier from cfg. It returns nil when no topic is
// configured; events.Fanout skips nil publishers.
func NewService(cfg *config.Config, logger *slog.Logger) *Service {
	if cfg == nil {
		return nil
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return nil
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		logger:   logging.NewComponentLogger(logger, "notifications"),
		enabled: map[events.Type]bool{
			events.TypeStarted:   cfg.Notifications.Started,
			events.TypeProgress:  cfg.Notifications.Progress,
			events.TypeRetry:     cfg.Notifications.Progress,
			events.TypeCompleted: cfg.Notifications.Completed,
			events.TypeFailed:    cfg.Notifications.Failed,
		},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

// Publish sends e when its type is enabled.
func (s *Service) Publish(ctx context.Context, e events.Event) {
	if s == nil || !s.enabled[e.Type] {
		return
	}
	data, ok := format(e)
	if !ok {
		return
	}
	if err := s.send(ctx, data); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "notification delivery failed", "notification_failed",
			logging.String("notification_type", string(e.Type)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "job continues without push updates"))
	}
}

// Test sends a low-priority test message and returns the delivery error.
func (s *Service) Test(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("notifications disabled: no ntfy topic configured")
	}
	return s.send(ctx, payload{
		title:    "linksort - Test",
		message:  "Notification system test",
		tags:     []string{"linksort", "test"},
		priority: "low",
	})
}

func format(e events.Event) (payload, bool) {
	switch e.Type {
	case events.TypeStarted:
		return payload{
			title:   "linksort - Organizing",
			message: fmt.Sprintf("Organizing %d links", e.Total),
			tags:    []string{"linksort", "job", "started"},
		}, true
	case events.TypeProgress:
		return payload{
			title:    "linksort - Progress",
			message:  fmt.Sprintf("Processed %d of %d links (%d filed in this batch)", e.Cursor, e.Total, e.Batch.Moved),
			tags:     []string{"linksort", "job", "progress"},
			priority: "low",
		}, true
	case events.TypeRetry:
		return payload{
			title:   "linksort - Retrying Batch",
			message: fmt.Sprintf("Providers unavailable; retry %d in %s: %s", e.Attempt, e.RetryIn.Round(time.Second), strings.TrimSpace(e.Error)),
			tags:    []string{"linksort", "job", "retry"},
		}, true
	case events.TypeCompleted:
		sum := e.Summary
		title := "linksort - Organized"
		if sum.Errors > 0 {
			title = "linksort - Organized (with errors)"
		}
		return payload{
			title: title,
			message: fmt.Sprintf("Processed %d links: %d filed into %d categories, %d errors",
				sum.Processed, sum.Categorized, sum.Categories, sum.Errors),
			tags: []string{"linksort", "job", "completed"},
		}, true
	case events.TypeFailed:
		msg := strings.TrimSpace(e.Error)
		if msg == "" {
			msg = "unknown"
		}
		return payload{
			title:    "linksort - Job Failed",
			message:  fmt.Sprintf("Organize failed after %d of %d links: %s", e.Cursor, e.Total, msg),
			tags:     []string{"linksort", "error", "alert"},
			priority: "high",
		}, true
	default:
		return payload{}, false
	}
}

func (s *Service) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
