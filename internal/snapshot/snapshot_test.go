package snapshot_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"linksort/internal/linkstore"
	"linksort/internal/services"
	"linksort/internal/snapshot"
)

type failingExporter struct{}

func (failingExporter) Export(context.Context) (linkstore.Tree, error) {
	return linkstore.Tree{}, errors.New("tree unavailable")
}

func TestCreateSnapshotWritesTree(t *testing.T) {
	ctx := context.Background()
	mem := linkstore.NewMemory()
	if _, err := mem.AddLink(ctx, "Go blog", "https://go.dev/blog", ""); err != nil {
		t.Fatalf("AddLink: %v", err)
	}
	dir := t.TempDir()
	svc := snapshot.NewService(dir, mem, nil)

	id, err := svc.CreateSnapshot(ctx, "Before organize", map[string]string{"job_id": "j1"})
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one snapshot file, got %v %v", entries, err)
	}
	name := entries[0].Name()
	if !strings.Contains(name, "before_organize") || !strings.HasSuffix(name, id+".json") {
		t.Fatalf("unexpected snapshot file name %q", name)
	}

	snap, err := svc.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Metadata["job_id"] != "j1" || len(snap.Tree.Items) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	infos, err := svc.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != id || infos[0].Items != 1 {
		t.Fatalf("unexpected list %+v", infos)
	}
}

func TestCreateSnapshotReportsExportFailure(t *testing.T) {
	svc := snapshot.NewService(t.TempDir(), failingExporter{}, nil)
	if _, err := svc.CreateSnapshot(context.Background(), "x", nil); !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
}

func TestLoadMissingSnapshot(t *testing.T) {
	svc := snapshot.NewService(filepath.Join(t.TempDir(), "none"), linkstore.NewMemory(), nil)
	if _, err := svc.Load("nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	infos, err := svc.List()
	if err != nil || len(infos) != 0 {
		t.Fatalf("expected empty list for missing dir, got %v %v", infos, err)
	}
}
