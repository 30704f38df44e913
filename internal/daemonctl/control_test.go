package daemonctl

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"linksort/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	return &cfg
}

func TestProcessInfoWithoutDaemon(t *testing.T) {
	cfg := testConfig(t)
	running, pid, err := ProcessInfo(cfg)
	if err != nil || running || pid != 0 {
		t.Fatalf("expected not running, got running=%v pid=%d err=%v", running, pid, err)
	}
	if _, err := StopAndTerminate(cfg, time.Second); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestProcessInfoReadsPIDWhileLockHeld(t *testing.T) {
	cfg := testConfig(t)
	lock := flock.New(cfg.LockPath())
	if ok, err := lock.TryLock(); err != nil || !ok {
		t.Fatalf("take lock: ok=%v err=%v", ok, err)
	}
	defer lock.Unlock()
	if err := os.WriteFile(cfg.PIDPath(), []byte(strconv.Itoa(4242)+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	running, pid, err := ProcessInfo(cfg)
	if err != nil {
		t.Fatalf("ProcessInfo: %v", err)
	}
	if !running || pid != 4242 {
		t.Fatalf("expected running pid 4242, got running=%v pid=%d", running, pid)
	}
}

func TestStaleLockFileIsNotRunning(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(cfg.LockPath(), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if held, err := lockHeld(cfg.LockPath()); err != nil || held {
		t.Fatalf("expected unheld lock file, got held=%v err=%v", held, err)
	}
}

func TestReadPIDRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pid")
	if err := os.WriteFile(path, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readPID(path); err == nil {
		t.Fatal("expected invalid pid error")
	}
}

func TestLaunchRequiresExecutable(t *testing.T) {
	if err := Launch("  ", LaunchOptions{}); err == nil {
		t.Fatal("expected error for empty executable path")
	}
}
