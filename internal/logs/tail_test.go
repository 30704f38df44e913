package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"linksort/internal/logs"
)

func TestLastReturnsTrailingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linksort.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	snap, err := logs.Last(path, 2)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(snap.Lines) != 2 || snap.Lines[0] != "b" || snap.Lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", snap.Lines)
	}
	if snap.Offset != 6 {
		t.Fatalf("expected offset 6, got %d", snap.Offset)
	}
}

func TestLastMissingFileIsEmpty(t *testing.T) {
	snap, err := logs.Last(filepath.Join(t.TempDir(), "absent.log"), 10)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(snap.Lines) != 0 || snap.Offset != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestSinceSkipsPartialLineAndResetsAfterTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linksort.log")
	if err := os.WriteFile(path, []byte("one\ntw"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	snap, err := logs.Since(path, 0)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if len(snap.Lines) != 1 || snap.Lines[0] != "one" || snap.Offset != 4 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
		t.Fatalf("truncate log: %v", err)
	}
	snap, err = logs.Since(path, 40)
	if err != nil {
		t.Fatalf("Since after truncate: %v", err)
	}
	if len(snap.Lines) != 1 || snap.Lines[0] != "x" {
		t.Fatalf("expected restart from zero, got %+v", snap)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linksort.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	snap, err := logs.Last(path, 1)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var (
		mu  sync.Mutex
		got []string
	)
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, snap.Offset, 20*time.Millisecond, func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "later" {
		t.Fatalf("unexpected followed lines %#v", got)
	}
}
