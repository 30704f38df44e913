package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"linksort/internal/logging"
)

// Alarm is a durable request to invoke a callback at or after FireAt.
type Alarm struct {
	ID     string
	FireAt time.Time
}

// AlarmStore persists alarms. Arming an id that already has an alarm replaces
// it, so at most one alarm exists per callback id.
type AlarmStore interface {
	ArmAlarm(ctx context.Context, id string, at time.Time) error
	GetAlarm(ctx context.Context, id string) (time.Time, bool, error)
	DueAlarms(ctx context.Context, now time.Time) ([]Alarm, error)
	// ClearAlarmIfAt deletes the alarm only when it still fires at the given
	// time, leaving alarms re-armed by the callback in place.
	ClearAlarmIfAt(ctx context.Context, id string, at time.Time) (bool, error)
	ClearAlarm(ctx context.Context, id string) error
}

// Handler is invoked when an alarm fires. Returning an error re-fires the
// alarm after the error retry interval unless the handler re-armed it itself.
type Handler func(ctx context.Context, alarm Alarm) error

// Scheduler fires due alarms from an AlarmStore. It keeps no state of its own
// across restarts: everything it needs is in the store.
type Scheduler struct {
	store      AlarmStore
	logger     *slog.Logger
	poll       time.Duration
	errorRetry time.Duration
	now        func() time.Time

	mu       sync.RWMutex
	handlers map[string]Handler
	kick     chan struct{}
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithPollInterval sets how often the store is checked for due alarms.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithErrorRetry sets the delay used to re-arm an alarm whose handler failed.
func WithErrorRetry(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.errorRetry = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Scheduler over store.
func New(store AlarmStore, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:      store,
		logger:     logging.NewComponentLogger(logger, "scheduler"),
		poll:       2 * time.Second,
		errorRetry: 10 * time.Second,
		now:        time.Now,
		handlers:   make(map[string]Handler),
		kick:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register associates a handler with a callback id.
func (s *Scheduler) Register(id string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[id] = h
}

// ArmAt durably schedules the callback id to fire at or after at.
func (s *Scheduler) ArmAt(ctx context.Context, id string, at time.Time) error {
	if id == "" {
		return errors.New("scheduler: callback id required")
	}
	if err := s.store.ArmAlarm(ctx, id, at.UTC()); err != nil {
		return fmt.Errorf("arm alarm %s: %w", id, err)
	}
	if !at.After(s.now()) {
		s.wake()
	}
	return nil
}

// Next returns the pending fire time for id, if any.
func (s *Scheduler) Next(ctx context.Context, id string) (time.Time, bool, error) {
	return s.store.GetAlarm(ctx, id)
}

// Cancel removes any pending alarm for id.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	return s.store.ClearAlarm(ctx, id)
}

func (s *Scheduler) wake() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// RunOnce fires every alarm due now, in fire-time order, and returns how many
// handlers ran.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	due, err := s.store.DueAlarms(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("load due alarms: %w", err)
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].FireAt.Before(due[j].FireAt) })

	fired := 0
	for _, alarm := range due {
		if err := ctx.Err(); err != nil {
			return fired, err
		}
		s.mu.RLock()
		handler := s.handlers[alarm.ID]
		s.mu.RUnlock()
		if handler == nil {
			s.logger.Debug("no handler for due alarm", logging.String("callback_id", alarm.ID))
			continue
		}
		fired++
		if err := s.fire(ctx, handler, alarm); err != nil {
			return fired, err
		}
	}
	return fired, nil
}

// fire leases the alarm for the error retry interval before invoking the
// handler. A handler that re-arms replaces the lease; one that returns nil has
// the lease cleared; one that fails or dies leaves the lease to fire later.
func (s *Scheduler) fire(ctx context.Context, handler Handler, alarm Alarm) error {
	lease := s.now().Add(s.errorRetry).UTC()
	if err := s.store.ArmAlarm(ctx, alarm.ID, lease); err != nil {
		return fmt.Errorf("lease alarm %s: %w", alarm.ID, err)
	}
	if handlerErr := handler(ctx, alarm); handlerErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.WarnWithContext(s.logger, "alarm handler failed; retrying", "alarm_handler_failed",
			logging.String("callback_id", alarm.ID),
			logging.Error(handlerErr),
			logging.Duration("retry_in", s.errorRetry),
			logging.String(logging.FieldErrorHint, "check the job log for the underlying failure"),
			logging.String(logging.FieldImpact, "job progress is delayed"),
		)
		return nil
	}
	if _, err := s.store.ClearAlarmIfAt(ctx, alarm.ID, lease); err != nil {
		return fmt.Errorf("clear alarm %s: %w", alarm.ID, err)
	}
	return nil
}

// Run fires due alarms until ctx is cancelled. Store errors are logged and
// retried after the error retry interval.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("scheduler pass failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "scheduler_pass_failed"),
				logging.String(logging.FieldErrorHint, "check job store connectivity"),
			)
			if !s.wait(ctx, s.errorRetry) {
				return nil
			}
			continue
		}
		if !s.wait(ctx, s.poll) {
			return nil
		}
	}
}

// RunUntil fires alarms until done reports true or ctx ends. It is used by
// foreground commands that wait for a job to finish.
func (s *Scheduler) RunUntil(ctx context.Context, done func(context.Context) (bool, error)) error {
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			return err
		}
		finished, err := done(ctx)
		if err != nil {
			return err
		}
		if finished {
			return nil
		}
		if !s.wait(ctx, s.poll) {
			return ctx.Err()
		}
	}
}

func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-s.kick:
		return true
	case <-timer.C:
		return true
	}
}
