package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"linksort/internal/logging"
	"linksort/internal/scheduler"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newScheduler(t *testing.T) (*scheduler.Scheduler, *scheduler.MemoryStore, *fakeClock) {
	t.Helper()
	store := scheduler.NewMemoryStore()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := scheduler.New(store, logging.NewNop(),
		scheduler.WithClock(clock.Now),
		scheduler.WithErrorRetry(30*time.Second),
		scheduler.WithPollInterval(time.Millisecond),
	)
	return s, store, clock
}

func TestRunOnceFiresOnlyDueAlarms(t *testing.T) {
	ctx := context.Background()
	s, store, clock := newScheduler(t)
	var fired []string
	for _, id := range []string{"a", "b"} {
		id := id
		s.Register(id, func(context.Context, scheduler.Alarm) error {
			fired = append(fired, id)
			return nil
		})
	}
	if err := s.ArmAt(ctx, "a", clock.now.Add(-time.Second)); err != nil {
		t.Fatalf("ArmAt: %v", err)
	}
	if err := s.ArmAt(ctx, "b", clock.now.Add(time.Minute)); err != nil {
		t.Fatalf("ArmAt: %v", err)
	}

	n, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 1 || len(fired) != 1 || fired[0] != "a" {
		t.Fatalf("expected only a to fire, got %v", fired)
	}
	if _, ok, _ := store.GetAlarm(ctx, "a"); ok {
		t.Fatal("expected fired alarm to be cleared")
	}
	if _, ok, _ := store.GetAlarm(ctx, "b"); !ok {
		t.Fatal("expected future alarm to remain")
	}
}

func TestArmReplacesExistingAlarm(t *testing.T) {
	ctx := context.Background()
	s, _, clock := newScheduler(t)
	first := clock.now.Add(time.Minute)
	second := clock.now.Add(2 * time.Minute)
	_ = s.ArmAt(ctx, "job", first)
	_ = s.ArmAt(ctx, "job", second)
	at, ok, err := s.Next(ctx, "job")
	if err != nil || !ok {
		t.Fatalf("Next: %v %v", ok, err)
	}
	if !at.Equal(second) {
		t.Fatalf("expected %v, got %v", second, at)
	}
}

func TestHandlerReArmKeepsNewAlarm(t *testing.T) {
	ctx := context.Background()
	s, store, clock := newScheduler(t)
	next := clock.now.Add(5 * time.Second)
	s.Register("job", func(ctx context.Context, _ scheduler.Alarm) error {
		return s.ArmAt(ctx, "job", next)
	})
	_ = s.ArmAt(ctx, "job", clock.now)
	if _, err := s.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	at, ok, _ := store.GetAlarm(ctx, "job")
	if !ok || !at.Equal(next) {
		t.Fatalf("expected re-armed alarm at %v, got %v (ok=%v)", next, at, ok)
	}
}

func TestHandlerErrorReArmsAfterRetryInterval(t *testing.T) {
	ctx := context.Background()
	s, store, clock := newScheduler(t)
	s.Register("job", func(context.Context, scheduler.Alarm) error {
		return errors.New("store unavailable")
	})
	_ = s.ArmAt(ctx, "job", clock.now)
	if _, err := s.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	at, ok, _ := store.GetAlarm(ctx, "job")
	if !ok || !at.Equal(clock.now.Add(30*time.Second)) {
		t.Fatalf("expected retry alarm, got %v (ok=%v)", at, ok)
	}
}

func TestCancelledHandlerLeavesLeasedAlarm(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, store, clock := newScheduler(t)
	s.Register("job", func(ctx context.Context, _ scheduler.Alarm) error {
		cancel()
		return ctx.Err()
	})
	_ = s.ArmAt(context.Background(), "job", clock.now)
	if _, err := s.RunOnce(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	at, ok, _ := store.GetAlarm(context.Background(), "job")
	if !ok || !at.Equal(clock.now.Add(30*time.Second)) {
		t.Fatalf("expected leased alarm to remain, got %v (ok=%v)", at, ok)
	}
}

func TestRunUntilStopsWhenDone(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, _, clock := newScheduler(t)
	calls := 0
	s.Register("job", func(ctx context.Context, _ scheduler.Alarm) error {
		calls++
		if calls < 3 {
			return s.ArmAt(ctx, "job", clock.now)
		}
		return nil
	})
	_ = s.ArmAt(ctx, "job", clock.now)
	err := s.RunUntil(ctx, func(context.Context) (bool, error) { return calls >= 3, nil })
	if err != nil {
		t.Fatalf("RunUntil: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 firings, got %d", calls)
	}
}
