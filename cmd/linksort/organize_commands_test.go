package main

import (
	"context"
	"encoding/json"
	"testing"

	"linksort/internal/linkstore"
	"linksort/internal/snapshot"
)

func TestOrganizeWaitFilesLinksAndSnapshots(t *testing.T) {
	fp, srv := newFakeProvider(t, "Reading")
	env := setupCLITestEnv(t, srv.URL)

	links, err := linkstore.OpenFile(env.linksFile)
	if err != nil {
		t.Fatalf("open links: %v", err)
	}
	ctx := context.Background()
	for _, u := range []string{"https://a.example/1", "https://b.example/2", "https://c.example/3"} {
		if _, err := links.AddLink(ctx, u, u, linkstore.RootID); err != nil {
			t.Fatalf("add link: %v", err)
		}
	}

	out, _, err := runCLI(t, env, "organize", "--wait")
	if err != nil {
		t.Fatalf("organize --wait: %v\n%s", err, out)
	}
	requireContains(t, out, "Organize job")
	requireContains(t, out, "Completed: 3 processed, 3 filed into 1 categories, 0 errors")
	if fp.callCount() == 0 {
		t.Fatal("expected provider calls")
	}

	items, err := links.ListAll(ctx)
	if err != nil {
		t.Fatalf("list links: %v", err)
	}
	for _, it := range items {
		if it.Path != "Reading" {
			t.Fatalf("item %s left at %q", it.ID, it.Path)
		}
	}

	out, _, err = runCLI(t, env, "status", "--json")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var report statusReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if report.Job != nil {
		t.Fatalf("expected no job after completion, got %+v", report.Job)
	}

	out, _, err = runCLI(t, env, "snapshots", "--json")
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	var infos []snapshot.Info
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("decode snapshots: %v\n%s", err, out)
	}
	if len(infos) != 1 || infos[0].Items != 3 {
		t.Fatalf("expected one snapshot of 3 items, got %+v", infos)
	}
}

func TestOrganizeDiscardWithoutJob(t *testing.T) {
	env := setupCLITestEnv(t, "")
	out, _, err := runCLI(t, env, "organize", "discard")
	if err != nil {
		t.Fatalf("organize discard: %v", err)
	}
	requireContains(t, out, "No organize job in progress")

	out, _, err = runCLI(t, env, "organize", "resume")
	if err != nil {
		t.Fatalf("organize resume: %v", err)
	}
	requireContains(t, out, "No organize job in progress")
}

func TestCheckSkipProviders(t *testing.T) {
	env := setupCLITestEnv(t, "")
	out, _, err := runCLI(t, env, "check", "--skip-providers")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "Preflight")
}
