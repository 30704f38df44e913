package redisstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"linksort/internal/redisstore"
)

func openTestStore(t *testing.T) *redisstore.Store {
	t.Helper()
	url := os.Getenv("LINKSORT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("LINKSORT_TEST_REDIS_URL not set")
	}
	s, err := redisstore.Open(context.Background(), redisstore.Config{
		URL:       url,
		KeyPrefix: "linksort-test-" + uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBlobCreateIsExclusive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	t.Cleanup(func() { _, _ = s.DeleteBlob(ctx, "job") })

	if ok, err := s.CreateBlob(ctx, "job", []byte("first")); err != nil || !ok {
		t.Fatalf("CreateBlob: %v %v", ok, err)
	}
	if ok, err := s.CreateBlob(ctx, "job", []byte("second")); err != nil || ok {
		t.Fatalf("second CreateBlob should be denied: %v %v", ok, err)
	}
	blob, ok, err := s.GetBlob(ctx, "job")
	if err != nil || !ok || string(blob) != "first" {
		t.Fatalf("GetBlob: %q %v %v", blob, ok, err)
	}
}

func TestBlobUpdateRequiresOwner(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	t.Cleanup(func() { _, _ = s.DeleteBlob(ctx, "job") })

	if ok, err := s.UpdateBlob(ctx, "job", "j1", []byte(`{"job_id":"j1"}`)); err != nil || ok {
		t.Fatalf("update of missing record: %v %v", ok, err)
	}
	if _, err := s.CreateBlob(ctx, "job", []byte(`{"job_id":"j1","cursor":0}`)); err != nil {
		t.Fatalf("CreateBlob: %v", err)
	}
	if ok, err := s.UpdateBlob(ctx, "job", "j1", []byte(`{"job_id":"j1","cursor":50}`)); err != nil || !ok {
		t.Fatalf("owner update: %v %v", ok, err)
	}
	if ok, err := s.UpdateBlob(ctx, "job", "j2", []byte(`{"job_id":"j2"}`)); err != nil || ok {
		t.Fatalf("foreign update: %v %v", ok, err)
	}
	if ok, err := s.DeleteOwnedBlob(ctx, "job", "j2"); err != nil || ok {
		t.Fatalf("foreign release: %v %v", ok, err)
	}
	blob, _, _ := s.GetBlob(ctx, "job")
	if string(blob) != `{"job_id":"j1","cursor":50}` {
		t.Fatalf("unexpected blob %s", blob)
	}
	if ok, err := s.DeleteOwnedBlob(ctx, "job", "j1"); err != nil || !ok {
		t.Fatalf("owner release: %v %v", ok, err)
	}
}

func TestAlarmsClearOnlyMatchingFireTime(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Minute).UTC().Truncate(time.Millisecond)
	t.Cleanup(func() { _ = s.ClearAlarm(ctx, "organize") })

	if err := s.ArmAlarm(ctx, "organize", base); err != nil {
		t.Fatalf("ArmAlarm: %v", err)
	}
	due, err := s.DueAlarms(ctx, time.Now())
	if err != nil || len(due) != 1 || !due[0].FireAt.Equal(base) {
		t.Fatalf("DueAlarms: %+v %v", due, err)
	}
	if cleared, _ := s.ClearAlarmIfAt(ctx, "organize", base.Add(time.Second)); cleared {
		t.Fatal("mismatched fire time must not clear")
	}
	if cleared, err := s.ClearAlarmIfAt(ctx, "organize", base); err != nil || !cleared {
		t.Fatalf("ClearAlarmIfAt: %v %v", cleared, err)
	}
	if _, ok, _ := s.GetAlarm(ctx, "organize"); ok {
		t.Fatal("expected alarm cleared")
	}
}
